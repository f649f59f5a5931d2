package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tricykol/auth-backend/internal/service"
)

// Ключи gin.Context.
const (
	ContextUIDKey   = "uid"
	ContextPhoneKey = "phoneNumber"
)

// AuthMiddleware проверяет сессионный токен из заголовка Authorization.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authorization required"})
			return
		}

		uid, phoneNumber, err := tokens.Parse(strings.TrimPrefix(auth, "Bearer "))
		if err != nil || uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}

		c.Set(ContextUIDKey, uid)
		c.Set(ContextPhoneKey, phoneNumber)
		c.Next()
	}
}

// CurrentUID извлекает uid владельца токена из контекста запроса.
func CurrentUID(c *gin.Context) (string, bool) {
	raw, exists := c.Get(ContextUIDKey)
	if !exists {
		return "", false
	}

	uid, ok := raw.(string)
	if !ok || uid == "" {
		return "", false
	}

	return uid, true
}
