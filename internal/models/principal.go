package models

import "github.com/golang-jwt/jwt/v5"

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID int32  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// IsInRole reports whether the principal holds any of the given roles.
func (p *Principal) IsInRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

type TokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}
