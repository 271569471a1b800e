package handlers

import (
	"encoding/json"
	"net/http"
)

// problemDetail is an RFC7807-style error body
type problemDetail struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondProblem sends a problem-details error response. Detail must never
// leak which scope or condition failed a check; denial reasons belong in
// logs only.
func respondProblem(w http.ResponseWriter, status int, title, detail string) {
	respondJSON(w, status, problemDetail{Title: title, Status: status, Detail: detail})
}

// decodeJSON decodes the request body into target, rejecting unknown fields
func decodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
