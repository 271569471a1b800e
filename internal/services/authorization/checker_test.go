package authorization

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lyceum-io/lyceum/internal/entities"
	"github.com/lyceum-io/lyceum/internal/services/registry"
	"github.com/lyceum-io/lyceum/pkg/cache/memorycache"
)

// mockStore serves canned assignments and counts fetches
type mockStore struct {
	assignments map[string][]*entities.UserRoleAssignment
	err         error
	calls       int
}

func (m *mockStore) GetActiveByUser(ctx context.Context, userID string) ([]*entities.UserRoleAssignment, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.assignments[userID], nil
}

func newTestChecker(t *testing.T, store *mockStore, withCache bool) *Checker {
	t.Helper()

	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default() error = %v", err)
	}

	cfg := &CheckerConfig{
		Registry: reg,
		Store:    store,
		CacheTTL: time.Minute,
	}
	if withCache {
		c, err := memorycache.New(&memorycache.Config{MaxEntries: 1000, DefaultTTL: time.Minute})
		if err != nil {
			t.Fatalf("memorycache.New() error = %v", err)
		}
		cfg.Cache = c
	}

	checker, err := NewChecker(cfg)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}
	return checker
}

func assignment(userID string, role entities.Role, deptID, instID string) *entities.UserRoleAssignment {
	return &entities.UserRoleAssignment{
		ID:            "assign-" + userID + "-" + string(role),
		UserID:        userID,
		Role:          role,
		Status:        entities.AssignmentActive,
		AssignedBy:    "admin-0",
		AssignedAt:    time.Now().Add(-time.Hour),
		DepartmentID:  deptID,
		InstitutionID: instID,
	}
}

func TestHasPermission(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		store      *mockStore
		userID     string
		permission string
		rc         *entities.ResourceContext
		want       bool
		wantErr    bool
	}{
		{
			name: "teacher can create classes",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"teacher-1": {assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1")},
			}},
			userID:     "teacher-1",
			permission: "class.create",
			want:       true,
		},
		{
			name: "student cannot create classes",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"student-1": {assignment("student-1", entities.RoleStudent, "dept-1", "inst-1")},
			}},
			userID:     "student-1",
			permission: "class.create",
			want:       false,
		},
		{
			name: "unknown permission denies without error",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"teacher-1": {assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1")},
			}},
			userID:     "teacher-1",
			permission: "class.explode",
			want:       false,
		},
		{
			name:       "user with no roles denies without error",
			store:      &mockStore{},
			userID:     "nobody",
			permission: "class.read",
			want:       false,
		},
		{
			name: "student reads own grade",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"student-1": {assignment("student-1", entities.RoleStudent, "dept-1", "inst-1")},
			}},
			userID:     "student-1",
			permission: "grade.read",
			rc:         &entities.ResourceContext{OwnerID: "student-1"},
			want:       true,
		},
		{
			name: "student cannot read another student's grade",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"student-1": {assignment("student-1", entities.RoleStudent, "dept-1", "inst-1")},
			}},
			userID:     "student-1",
			permission: "grade.read",
			rc:         &entities.ResourceContext{OwnerID: "student-2"},
			want:       false,
		},
		{
			name: "conjunctive conditions require both to hold",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				// teacher grade.update requires resource_owner AND department_match
				"teacher-1": {assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1")},
			}},
			userID:     "teacher-1",
			permission: "grade.update",
			rc:         &entities.ResourceContext{OwnerID: "teacher-1", DepartmentID: "dept-2"},
			want:       false,
		},
		{
			name: "conjunctive conditions grant when all hold",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"teacher-1": {assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1")},
			}},
			userID:     "teacher-1",
			permission: "grade.update",
			rc:         &entities.ResourceContext{OwnerID: "teacher-1", DepartmentID: "dept-1"},
			want:       true,
		},
		{
			name: "department admin denied outside their department",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"dadmin-1": {assignment("dadmin-1", entities.RoleDepartmentAdmin, "dept-1", "inst-1")},
			}},
			userID:     "dadmin-1",
			permission: "enrollment.approve",
			rc:         &entities.ResourceContext{DepartmentID: "dept-2"},
			want:       false,
		},
		{
			name: "system admin passes scoped checks without bindings",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"sadmin-1": {assignment("sadmin-1", entities.RoleSystemAdmin, "", "")},
			}},
			userID:     "sadmin-1",
			permission: "class.manage",
			rc:         &entities.ResourceContext{DepartmentID: "dept-7", InstitutionID: "inst-9"},
			want:       true,
		},
		{
			name: "missing context field resolves permissively",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"teacher-1": {assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1")},
			}},
			userID:     "teacher-1",
			permission: "class.create",
			rc:         &entities.ResourceContext{ResourceType: "class"},
			want:       true,
		},
		{
			name:       "store failure surfaces as error",
			store:      &mockStore{err: errors.New("connection refused")},
			userID:     "teacher-1",
			permission: "class.create",
			wantErr:    true,
		},
		{
			name:       "empty user ID is an error",
			store:      &mockStore{},
			userID:     "",
			permission: "class.create",
			wantErr:    true,
		},
		{
			name:       "empty permission is an error",
			store:      &mockStore{},
			userID:     "teacher-1",
			permission: "",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := newTestChecker(t, tt.store, false)
			got, err := checker.HasPermission(ctx, tt.userID, tt.permission, tt.rc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HasPermission() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("HasPermission() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHasPermissionSelfScopeBindsSystemAdmin(t *testing.T) {
	ctx := context.Background()

	// Self-scoped permissions stay tied to ownership even for system admins;
	// their universality covers department, institution, and system scope only
	reg, err := registry.New(
		[]*entities.Permission{
			{Name: "note.read", Category: entities.CategoryContent, Scope: entities.ScopeSelf},
		},
		[]*entities.RolePermission{
			{Role: entities.RoleSystemAdmin, Permission: "note.read"},
		},
	)
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}

	store := &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
		"sadmin-1": {assignment("sadmin-1", entities.RoleSystemAdmin, "", "")},
	}}
	checker, err := NewChecker(&CheckerConfig{Registry: reg, Store: store, CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}

	granted, err := checker.HasPermission(ctx, "sadmin-1", "note.read", &entities.ResourceContext{OwnerID: "student-7"})
	if err != nil {
		t.Fatalf("HasPermission() error = %v", err)
	}
	if granted {
		t.Error("HasPermission() = true for a resource owned by someone else")
	}

	granted, err = checker.HasPermission(ctx, "sadmin-1", "note.read", &entities.ResourceContext{OwnerID: "sadmin-1"})
	if err != nil {
		t.Fatalf("HasPermission() error = %v", err)
	}
	if !granted {
		t.Error("HasPermission() = false for the admin's own resource")
	}
}

func TestHasPermissionIdempotent(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
		"teacher-1": {assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1")},
	}}
	checker := newTestChecker(t, store, false)

	rc := &entities.ResourceContext{DepartmentID: "dept-1"}
	for i := 0; i < 5; i++ {
		got, err := checker.HasPermission(ctx, "teacher-1", "class.create", rc)
		if err != nil {
			t.Fatalf("HasPermission() error = %v", err)
		}
		if !got {
			t.Fatalf("HasPermission() = false on call %d", i+1)
		}
	}
}

func TestHasPermissionCaching(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
		"teacher-1": {assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1")},
	}}
	checker := newTestChecker(t, store, true)

	rc := &entities.ResourceContext{DepartmentID: "dept-1"}

	// First call hits the store, second is served from cache
	for i := 0; i < 2; i++ {
		granted, err := checker.HasPermission(ctx, "teacher-1", "class.create", rc)
		if err != nil {
			t.Fatalf("HasPermission() error = %v", err)
		}
		if !granted {
			t.Fatal("HasPermission() = false, want true")
		}
	}
	if store.calls != 1 {
		t.Errorf("store calls = %d, want 1", store.calls)
	}

	// Different context fingerprints never share a cache entry: the first
	// decision was a grant, this one is a denial for another department
	other := &entities.ResourceContext{DepartmentID: "dept-2"}
	granted, err := checker.HasPermission(ctx, "teacher-1", "class.create", other)
	if err != nil {
		t.Fatalf("HasPermission() error = %v", err)
	}
	if granted {
		t.Fatal("HasPermission() = true for another department")
	}
	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2 after a new fingerprint", store.calls)
	}
}

func TestInvalidateUserDropsCachedDecisions(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
		"teacher-1": {assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1")},
	}}
	checker := newTestChecker(t, store, true)

	if _, err := checker.HasPermission(ctx, "teacher-1", "class.create", nil); err != nil {
		t.Fatalf("HasPermission() error = %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("store calls = %d, want 1", store.calls)
	}

	// Simulate a revocation: the store changes, then the cache is dropped
	store.assignments["teacher-1"] = nil
	if err := checker.InvalidateUser(ctx, "teacher-1"); err != nil {
		t.Fatalf("InvalidateUser() error = %v", err)
	}

	granted, err := checker.HasPermission(ctx, "teacher-1", "class.create", nil)
	if err != nil {
		t.Fatalf("HasPermission() error = %v", err)
	}
	if granted {
		t.Error("stale grant served after invalidation")
	}
	if store.calls != 2 {
		t.Errorf("store calls = %d, want 2 after invalidation", store.calls)
	}
}

func TestCanAccessResource(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		store  *mockStore
		userID string
		action entities.Action
		rc     *entities.ResourceContext
		want   bool
	}{
		{
			name: "direct permission grants",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"teacher-1": {assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1")},
			}},
			userID: "teacher-1",
			action: entities.ActionUpdate,
			rc:     &entities.ResourceContext{ResourceType: "class", OwnerID: "teacher-1", DepartmentID: "dept-1"},
			want:   true,
		},
		{
			name: "manage covers delete",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				// dept admins hold class.manage, not class.delete
				"dadmin-1": {assignment("dadmin-1", entities.RoleDepartmentAdmin, "dept-1", "inst-1")},
			}},
			userID: "dadmin-1",
			action: entities.ActionDelete,
			rc:     &entities.ResourceContext{ResourceType: "class", DepartmentID: "dept-1"},
			want:   true,
		},
		{
			name: "manage does not leak across departments",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"dadmin-1": {assignment("dadmin-1", entities.RoleDepartmentAdmin, "dept-1", "inst-1")},
			}},
			userID: "dadmin-1",
			action: entities.ActionDelete,
			rc:     &entities.ResourceContext{ResourceType: "class", DepartmentID: "dept-2"},
			want:   false,
		},
		{
			name: "manage action is not satisfied by lesser grants",
			store: &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
				"teacher-1": {assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1")},
			}},
			userID: "teacher-1",
			action: entities.ActionManage,
			rc:     &entities.ResourceContext{ResourceType: "class", DepartmentID: "dept-1"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := newTestChecker(t, tt.store, false)
			got, err := checker.CanAccessResource(ctx, tt.userID, "res-1", tt.action, tt.rc)
			if err != nil {
				t.Fatalf("CanAccessResource() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CanAccessResource() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("missing resource type is an error", func(t *testing.T) {
		checker := newTestChecker(t, &mockStore{}, false)
		_, err := checker.CanAccessResource(ctx, "teacher-1", "res-1", entities.ActionRead, nil)
		if err == nil {
			t.Fatal("CanAccessResource() succeeded without a resource type")
		}
	})

	t.Run("unknown action is an error", func(t *testing.T) {
		checker := newTestChecker(t, &mockStore{}, false)
		_, err := checker.CanAccessResource(ctx, "teacher-1", "res-1", entities.Action("explode"),
			&entities.ResourceContext{ResourceType: "class"})
		if err == nil {
			t.Fatal("CanAccessResource() succeeded with an unknown action")
		}
	})
}

func TestGetUserPermissions(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
		"multi-1": {
			assignment("multi-1", entities.RoleStudent, "dept-1", "inst-1"),
			assignment("multi-1", entities.RoleTeacher, "dept-1", "inst-1"),
		},
	}}
	checker := newTestChecker(t, store, false)

	permissions, err := checker.GetUserPermissions(ctx, "multi-1")
	if err != nil {
		t.Fatalf("GetUserPermissions() error = %v", err)
	}

	names := make(map[string]int)
	for _, p := range permissions {
		names[p.Name]++
	}

	// class.read comes from both roles and must be deduplicated
	if names["class.read"] != 1 {
		t.Errorf("class.read appears %d times, want 1", names["class.read"])
	}
	if names["class.create"] != 1 {
		t.Error("teacher grant class.create missing")
	}
	if names["enrollment.create"] != 1 {
		t.Error("student grant enrollment.create missing")
	}

	// sorted by name
	for i := 1; i < len(permissions); i++ {
		if permissions[i-1].Name >= permissions[i].Name {
			t.Fatalf("permissions not sorted: %s before %s", permissions[i-1].Name, permissions[i].Name)
		}
	}

	t.Run("no roles yields empty listing", func(t *testing.T) {
		got, err := checker.GetUserPermissions(ctx, "nobody")
		if err != nil {
			t.Fatalf("GetUserPermissions() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("GetUserPermissions() = %d entries, want 0", len(got))
		}
	})
}

func TestCheckBulk(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
		"teacher-1": {assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1")},
	}}
	checker := newTestChecker(t, store, false)

	t.Run("mixed results with one store fetch", func(t *testing.T) {
		store.calls = 0
		results, err := checker.CheckBulk(ctx, "teacher-1", []BulkCheckRequest{
			{Permission: "class.create"},
			{Permission: "system.settings"},
			{Permission: "class.explode"},
			{Permission: ""},
		})
		if err != nil {
			t.Fatalf("CheckBulk() error = %v", err)
		}
		if len(results) != 4 {
			t.Fatalf("results = %d, want 4", len(results))
		}
		if !results[0].Granted {
			t.Error("class.create should be granted")
		}
		if results[1].Granted {
			t.Error("system.settings should be denied for a teacher")
		}
		if results[2].Granted || results[2].Reason == "" {
			t.Error("unknown permission should deny with a reason")
		}
		if results[3].Granted || results[3].Reason == "" {
			t.Error("empty permission should deny with a reason")
		}

		// Every result echoes the requested permission name, empty included
		for i, req := range []string{"class.create", "system.settings", "class.explode", ""} {
			if results[i].Permission != req {
				t.Errorf("results[%d].Permission = %q, want %q", i, results[i].Permission, req)
			}
		}
		if store.calls != 1 {
			t.Errorf("store calls = %d, want 1", store.calls)
		}
	})

	t.Run("limit exceeded", func(t *testing.T) {
		oversized := make([]BulkCheckRequest, DefaultBulkLimit+1)
		for i := range oversized {
			oversized[i] = BulkCheckRequest{Permission: "class.read"}
		}
		_, err := checker.CheckBulk(ctx, "teacher-1", oversized)
		if !errors.Is(err, ErrBulkLimitExceeded) {
			t.Fatalf("CheckBulk() error = %v, want ErrBulkLimitExceeded", err)
		}
	})

	t.Run("store failure aborts the batch", func(t *testing.T) {
		broken := newTestChecker(t, &mockStore{err: errors.New("connection refused")}, false)
		_, err := broken.CheckBulk(ctx, "teacher-1", []BulkCheckRequest{{Permission: "class.read"}})
		if err == nil {
			t.Fatal("CheckBulk() succeeded despite store failure")
		}
	})
}

func TestIsAdmin(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{assignments: map[string][]*entities.UserRoleAssignment{
		"dadmin-1": {assignment("dadmin-1", entities.RoleDepartmentAdmin, "dept-1", "inst-1")},
		"iadmin-1": {assignment("iadmin-1", entities.RoleInstitutionAdmin, "", "inst-1")},
		"sadmin-1": {assignment("sadmin-1", entities.RoleSystemAdmin, "", "")},
		"teacher-1": {
			assignment("teacher-1", entities.RoleTeacher, "dept-1", "inst-1"),
		},
	}}
	checker := newTestChecker(t, store, false)

	tests := []struct {
		name    string
		userID  string
		scope   entities.AdminScope
		scopeID string
		want    bool
	}{
		{"department admin in own department", "dadmin-1", entities.AdminScopeDepartment, "dept-1", true},
		{"department admin in other department", "dadmin-1", entities.AdminScopeDepartment, "dept-2", false},
		{"department admin without scope ID", "dadmin-1", entities.AdminScopeDepartment, "", true},
		{"department admin is not institution admin", "dadmin-1", entities.AdminScopeInstitution, "inst-1", false},
		{"institution admin at institution scope", "iadmin-1", entities.AdminScopeInstitution, "inst-1", true},
		{"institution admin at other institution", "iadmin-1", entities.AdminScopeInstitution, "inst-2", false},
		{"institution admin is not system admin", "iadmin-1", entities.AdminScopeSystem, "", false},
		{"system admin satisfies every scope", "sadmin-1", entities.AdminScopeDepartment, "dept-42", true},
		{"system admin at system scope", "sadmin-1", entities.AdminScopeSystem, "", true},
		{"teacher is no admin", "teacher-1", entities.AdminScopeDepartment, "dept-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.IsAdmin(ctx, tt.userID, tt.scope, tt.scopeID)
			if err != nil {
				t.Fatalf("IsAdmin() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("unknown scope is an error", func(t *testing.T) {
		_, err := checker.IsAdmin(ctx, "sadmin-1", entities.AdminScope("galaxy"), "")
		if err == nil {
			t.Fatal("IsAdmin() succeeded with unknown scope")
		}
	})
}
