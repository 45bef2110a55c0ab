package middleware

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionCookie = "cart_session"

// cookie lifetime in seconds; carts should survive reloads for a while.
const sessionCookieMaxAge = 30 * 24 * 60 * 60

// CartSession resolves the cart session key for the request: the user id
// for authenticated callers, otherwise a generated guest id kept in a
// cookie. The key lands in the context under "session".
func CartSession(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := userIDFromHeader(c.GetHeader("Authorization"), jwtSecret); err == nil && userID != nil {
			c.Set("userId", *userID)
			c.Set("session", userID.Hex())
			c.Next()
			return
		}

		if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
			c.Set("session", id)
			c.Next()
			return
		}

		id := uuid.NewString()
		c.SetCookie(sessionCookie, id, sessionCookieMaxAge, "/", "", false, true)
		log.Println("[HTTP] [INFO] guest cart session issued")
		c.Set("session", id)
		c.Next()
	}
}
