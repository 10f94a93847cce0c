package models

import "github.com/golang-jwt/jwt/v5"

// UserRole identifies the caller's role as asserted by the identity provider.
type UserRole string

// Roles recognised by the advising API.
const (
	RoleAdmin     UserRole = "ADMIN"
	RoleRegistrar UserRole = "REGISTRAR"
	RoleAdviser   UserRole = "ADVISER"
	RoleStudent   UserRole = "STUDENT"
)

// JWTClaims represents the JWT payload for access tokens issued by the identity provider.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	StudentID string   `json:"student_id,omitempty"`
	FullName  string   `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// Staff reports whether the caller may act on any student.
func (c *JWTClaims) Staff() bool {
	if c == nil {
		return false
	}
	switch c.Role {
	case RoleAdmin, RoleRegistrar, RoleAdviser:
		return true
	}
	return false
}
