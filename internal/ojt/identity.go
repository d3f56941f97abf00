package ojt

import "ojtportal/internal/database"

// Caller is the resolved identity of the requester, established once by the
// access gate and threaded through every operation. There is no ambient
// "current user"; an operation only ever sees the Caller it was handed.
type Caller struct {
	ID   uint
	Role database.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool { return c.Role == database.RoleAdmin }

// Owns reports whether the caller may mutate a resource owned by userID.
// Admins own everything.
func (c Caller) Owns(userID uint) bool {
	return c.IsAdmin() || c.ID == userID
}
