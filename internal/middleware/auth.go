// Package middleware contains the Gin middleware in front of uploadd's API.
// Middleware in Gin is a handler that runs before (or after) your route handler.
// It calls c.Next() to proceed or c.Abort() to stop the chain.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKeyAPIKey is where auth middleware stores the caller's key for
// downstream handlers (rate limiting, logging).
const ContextKeyAPIKey = "api_key"

// APIKeyAuth returns middleware that validates API keys. Admin keys are
// accepted too, so an operator doesn't need two keys.
// The key can be provided via X-API-Key header or api_key query param
// (query param is needed for <img src=".../raw?api_key=xxx"> in browsers).
func APIKeyAuth(validKeys []string, adminKeys ...string) gin.HandlerFunc {
	return requireKey(keySet(append(append([]string{}, validKeys...), adminKeys...)), "API key", http.StatusUnauthorized)
}

// AdminKeyAuth returns middleware that validates admin API keys.
// A wrong key is 403 here: the caller authenticated, just not as admin.
func AdminKeyAuth(adminKeys []string) gin.HandlerFunc {
	return requireKey(keySet(adminKeys), "admin API key", http.StatusForbidden)
}

// keySet builds a set for O(1) lookups. Go doesn't have a built-in Set type,
// so we use map[string]struct{} — struct{} takes zero bytes of memory.
func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

func requireKey(keys map[string]struct{}, what string, invalidStatus int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + what,
			})
			return
		}

		if _, ok := keys[key]; !ok {
			c.AbortWithStatusJSON(invalidStatus, gin.H{
				"error": "invalid " + what,
			})
			return
		}

		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}

func requestKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("api_key")
}
