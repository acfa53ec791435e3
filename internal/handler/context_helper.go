package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gms-api/internal/middleware"
	"github.com/noah-isme/gms-api/internal/models"
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

// actorFromClaims builds the acting user snapshot services operate on.
func actorFromClaims(claims *models.JWTClaims) *models.User {
	return &models.User{
		ID:       claims.UserID,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}
}
