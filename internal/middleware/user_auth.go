package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserAuth validates user JWT tokens and injects the userId into the context.
func UserAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := userIDFromHeader(c.GetHeader("Authorization"), secret)
		if err != nil || userID == nil {
			log.Println("[AUTH] [ERROR] token validation failed:", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set("userId", *userID)
		c.Next()
	}
}

// userIDFromHeader parses a Bearer token and returns the userId claim.
// An empty header returns (nil, nil) so callers can treat auth as optional.
func userIDFromHeader(header, secret string) (*primitive.ObjectID, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errors.New("invalid token format")
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	userIDValue, ok := claims["userId"].(string)
	if !ok || strings.TrimSpace(userIDValue) == "" {
		return nil, errors.New("userId claim missing")
	}

	userID, err := primitive.ObjectIDFromHex(userIDValue)
	if err != nil {
		return nil, errors.New("invalid userId")
	}

	return &userID, nil
}
