package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/unioncase/unioncase-api/internal/middleware"
	"github.com/unioncase/unioncase-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// scopeFromContext derives the caller's access scope from JWT claims.
func scopeFromContext(c *gin.Context) (models.AccessScope, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.AccessScope{}, false
	}
	return models.AccessScope{UserID: claims.UserID, Role: claims.Role}, true
}
