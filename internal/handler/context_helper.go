package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/advising-api/internal/middleware"
	"github.com/noah-isme/advising-api/internal/models"
)

var queryValidator = validator.New()

type normalizer interface {
	Normalize()
}

// bindQuery binds query parameters into dst, normalises them and runs its validate tags.
func bindQuery(c *gin.Context, dst any) error {
	if err := c.ShouldBindQuery(dst); err != nil {
		return err
	}
	if n, ok := dst.(normalizer); ok {
		n.Normalize()
	}
	return queryValidator.Struct(dst)
}

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
