package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/models"
)

// GetMenu lists the active dishes, grouped stable by category then name.
func GetMenu(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /menu"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("menu_items").Find(
			ctx,
			bson.M{"isActive": true},
			options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}}),
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "menu could not be fetched")
			return
		}
		defer cursor.Close(ctx)

		var items []models.MenuItem
		if err := cursor.All(ctx, &items); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "failed to parse menu")
			return
		}
		if items == nil {
			items = []models.MenuItem{}
		}

		c.JSON(http.StatusOK, items)
	}
}
