package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// Context keys for operator data
	ContextKeyOperatorID = "operator_id"
	ContextKeyName       = "operator_name"
	ContextKeyRole       = "operator_role"
	ContextKeyClaims     = "operator_claims"
)

// Middleware creates a JWT authentication middleware
func Middleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "invalid authorization header format",
			})
			return
		}

		claims, err := jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			authErr, ok := err.(AuthError)
			if !ok {
				authErr = ErrInvalidToken
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}

		c.Set(ContextKeyOperatorID, claims.OperatorID)
		c.Set(ContextKeyName, claims.Name)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyClaims, claims)

		c.Next()
	}
}

// RequireAdmin middleware ensures the operator holds the admin role.
// Approve, reject and mode changes go through this gate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextKeyRole)
		if !exists || role.(string) != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   ErrForbidden.Code,
				"message": "admin role required",
			})
			return
		}
		c.Next()
	}
}

// GetOperatorID extracts the operator id from the Gin context
func GetOperatorID(c *gin.Context) string {
	if id, exists := c.Get(ContextKeyOperatorID); exists {
		return id.(string)
	}
	return ""
}

// GetClaims extracts the full operator claims from the Gin context
func GetClaims(c *gin.Context) *OperatorClaims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		return claims.(*OperatorClaims)
	}
	return nil
}
