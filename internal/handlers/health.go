package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// Health reports service and database status.
func Health(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "connected"
		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			status = "disconnected"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"database": status,
		})
	}
}
