package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the authenticated principal through the request context.
type JWTClaims struct {
	UserID     string   `json:"user_id"`
	Role       UserRole `json:"role"`
	Department string   `json:"department,omitempty"`
	jwt.RegisteredClaims
}
