package entities

// PermissionResult is the outcome of one check in a bulk request. Reason is
// diagnostic only; callers must never branch on it.
type PermissionResult struct {
	Permission string `json:"permission"`
	Granted    bool   `json:"granted"`
	Reason     string `json:"reason,omitempty"`
}
