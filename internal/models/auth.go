package models

import "github.com/golang-jwt/jwt/v5"

// Role constants mirror the platform's access levels. The identity provider
// issues the tokens; this service only consumes the claims.
const (
	RoleAdmin             = "ADMIN"
	RoleComplianceOfficer = "COMPLIANCE_OFFICER"
	RoleSubject           = "SUBJECT"
)

// JWTClaims carries the authenticated principal through request handling.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// CanManageRequests reports whether the role may review and transition
// data-subject requests.
func (c *JWTClaims) CanManageRequests() bool {
	return c.Role == RoleAdmin || c.Role == RoleComplianceOfficer
}
