package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// BotSecretHeader carries the shared secret the Telegram bot presents on
// every request to the bot endpoints.
const BotSecretHeader = "X-Bot-Secret-Key"

// BotAuth guards the bot endpoints with a shared secret. When no secret is
// configured the endpoints are disabled outright.
func BotAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "BOT_DISABLED",
					"message": "Bot endpoints are not configured",
				},
			})
			return
		}

		presented := c.GetHeader(BotSecretHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Invalid bot secret",
				},
			})
			return
		}

		c.Next()
	}
}
