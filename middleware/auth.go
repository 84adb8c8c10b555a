package middleware

import (
	"net/http"
	"strings"

	"clinicvoice/config"
	"clinicvoice/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// CallSessionAuthMiddleware authenticates the dialogue engine. The bearer
// token issued at session start must name the session being operated on, so
// one call can never steer another.
func CallSessionAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		sessionID, err := utils.ValidateCallToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		if param := c.Param("sessionID"); param != "" && param != sessionID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Token does not match session"})
			return
		}

		c.Set("sessionID", sessionID)
		c.Next()
	}
}

// AdminAuthMiddleware gates the admin surface behind a shared key, compared
// against its bcrypt hash from configuration.
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := config.AppConfig.AdminKeyHash
		if hash == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin surface is disabled"})
			return
		}

		key := c.GetHeader("X-Admin-Key")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing admin key"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid admin key"})
			return
		}
		c.Next()
	}
}
