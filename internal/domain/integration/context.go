package integration

import "slices"

// User is the acting user of a request
type User struct {
	ID          string   `json:"id"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the user holds permission
func (u *User) HasPermission(permission string) bool {
	return u != nil && slices.Contains(u.Permissions, permission)
}

// Business is the business a request acts for
type Business struct {
	ID   string       `json:"id"`
	Plan string       `json:"plan"`
	Size BusinessSize `json:"size,omitempty"`
}

// Context is the request-scoped evaluation context supplied by the caller.
// The registry replaces it wholesale and never mutates it.
type Context struct {
	User     *User     `json:"user,omitempty"`
	Business *Business `json:"business,omitempty"`
}
