package model

import "github.com/google/uuid"

// Principal is the identity extracted from the access token. A zero UserID
// means no identity is available and mutations must be refused.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

func (p Principal) Known() bool {
	return p.UserID != uuid.Nil
}
