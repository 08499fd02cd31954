package model

// Principal is the authenticated caller of an access-layer operation.
// A nil *Principal means the request is anonymous.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether p may view unpublished posts it does not own.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Owns reports whether p is the user identified by ownerID.
func (p *Principal) Owns(ownerID string) bool {
	return p != nil && p.UserID != "" && p.UserID == ownerID
}
