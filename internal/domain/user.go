package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's system role. Drivers and parents act only on their own
// resources; school admins may read any driver in their school; super admins
// may read anything.
type Role string

const (
	RoleParent      Role = "parent"
	RoleDriver      Role = "driver"
	RoleSchoolAdmin Role = "schoolAdmin"
	RoleSuperAdmin  Role = "superAdmin"
)

// IsAdmin reports whether the role grants cross-driver read access.
func (r Role) IsAdmin() bool {
	return r == RoleSchoolAdmin || r == RoleSuperAdmin
}

// User is an account known to the system. FCMToken is the push registration
// token of the user's current device; empty when the user has no registered
// device.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	SchoolID  uuid.UUID `json:"school_id"`
	FCMToken  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity is the resolved caller of a request, extracted from the bearer
// token by the auth middleware. The role carried here comes from the token;
// authorization decisions that matter re-check the role against the users
// table.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}
