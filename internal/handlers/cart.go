package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/cart"
	"backend/internal/models"
)

type addCartItemRequest struct {
	ItemID string `json:"itemId" binding:"required"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func cartResponse(store *cart.Store) gin.H {
	lines := store.Lines()
	if lines == nil {
		lines = models.Cart{}
	}
	return gin.H{
		"lines":     lines,
		"itemCount": lines.ItemCount(),
		"subtotal":  lines.Subtotal(),
	}
}

// GetCart returns the session's current cart.
func GetCart(carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionFromContext(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no session"})
			return
		}

		store := carts.Session(c.Request.Context(), session)
		c.JSON(http.StatusOK, cartResponse(store))
	}
}

// AddCartItem adds one unit of a menu item to the cart. Name and price are
// resolved from the menu; client-sent prices are never trusted.
func AddCartItem(db *mongo.Database, carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart/items"
		defer handlePanic(c, route)

		session, ok := sessionFromContext(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no session"})
			return
		}

		var req addCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		itemID, err := primitive.ObjectIDFromHex(req.ItemID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid itemId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var item models.MenuItem
		err = db.Collection("menu_items").FindOne(ctx, bson.M{
			"_id":      itemID,
			"isActive": true,
		}).Decode(&item)
		if err == mongo.ErrNoDocuments {
			respondWithError(c, http.StatusNotFound, route, "menu item not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		store := carts.Session(c.Request.Context(), session)
		if err := store.AddItem(c.Request.Context(), item.ID.Hex(), item.Name, item.Price); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "cart could not be saved")
			return
		}

		c.JSON(http.StatusOK, cartResponse(store))
	}
}

// UpdateCartItem sets a line's quantity; zero or less removes the line.
func UpdateCartItem(carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /cart/items/:itemId"
		defer handlePanic(c, route)

		session, ok := sessionFromContext(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no session"})
			return
		}

		var req updateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		store := carts.Session(c.Request.Context(), session)
		if err := store.SetQuantity(c.Request.Context(), c.Param("itemId"), *req.Quantity); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "cart could not be saved")
			return
		}

		c.JSON(http.StatusOK, cartResponse(store))
	}
}

// RemoveCartItem drops a line from the cart. An absent item is a no-op.
func RemoveCartItem(carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart/items/:itemId"
		defer handlePanic(c, route)

		session, ok := sessionFromContext(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no session"})
			return
		}

		store := carts.Session(c.Request.Context(), session)
		if err := store.RemoveItem(c.Request.Context(), c.Param("itemId")); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "cart could not be saved")
			return
		}

		c.JSON(http.StatusOK, cartResponse(store))
	}
}

// ClearCart empties the session's cart.
func ClearCart(carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart"
		defer handlePanic(c, route)

		session, ok := sessionFromContext(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no session"})
			return
		}

		store := carts.Session(c.Request.Context(), session)
		if err := store.Clear(c.Request.Context()); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "cart could not be saved")
			return
		}

		c.JSON(http.StatusOK, cartResponse(store))
	}
}
