package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sekurigo/privacy-api/internal/middleware"
	"github.com/sekurigo/privacy-api/internal/models"
)

// claimsFromContext extracts the authenticated principal set by the JWT
// middleware. Returns nil on unauthenticated routes; services treat nil
// actors as unauthorized.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	if claims, ok := value.(*models.JWTClaims); ok {
		return claims
	}
	return nil
}
