package auth

// Caller is the identity of whoever sent the request. The zero value is the
// anonymous caller. It is built once by the auth middleware and passed by value.
type Caller struct {
	UserID string
	Role   string
	Staff  bool
}

func (c Caller) Authenticated() bool { return c.UserID != "" }

func CallerFromClaims(c *Claims) Caller {
	if c == nil {
		return Caller{}
	}
	return Caller{UserID: c.UID, Role: c.Role, Staff: c.Staff}
}
