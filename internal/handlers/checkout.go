package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"backend/internal/cart"
	"backend/internal/ledger"
	"backend/internal/models"
)

type checkoutRequest struct {
	FullName    string `json:"fullName" binding:"required"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	OrderType   string `json:"orderType" binding:"required"`
	TableNumber string `json:"tableNumber"`
}

// Checkout finalizes the session's cart into a completed order.
func Checkout(orders *ledger.Ledger, carts *cart.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /checkout"
		defer handlePanic(c, route)

		session, ok := sessionFromContext(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no session"})
			return
		}

		var req checkoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		store := carts.Session(c.Request.Context(), session)
		order, err := orders.Finalize(c.Request.Context(), store, models.CustomerInfo{
			FullName:    req.FullName,
			PhoneNumber: req.PhoneNumber,
			OrderType:   req.OrderType,
			TableNumber: req.TableNumber,
		})
		if err != nil {
			var emptyErr ledger.EmptyCartError
			if errors.As(err, &emptyErr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
				return
			}
			var validationErr ledger.ValidationError
			if errors.As(err, &validationErr) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":   "validation failed",
					"details": validationErr.Fields,
				})
				return
			}
			log.Println("[LEDGER] [ERROR] finalize failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "order could not be saved")
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "order completed",
			"order":   order,
		})
	}
}

// GetOrders returns the full order ledger, oldest first.
func GetOrders(orders *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		list, err := orders.Orders(c.Request.Context())
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "orders could not be fetched")
			return
		}
		if list == nil {
			list = []models.CompletedOrder{}
		}

		c.JSON(http.StatusOK, list)
	}
}

// GetOrderReceipt returns one completed order for display. It is a pure
// read: printing a receipt must not touch the sales rollup again.
func GetOrderReceipt(orders *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:orderId"
		defer handlePanic(c, route)

		order, found, err := orders.Order(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "order could not be fetched")
			return
		}
		if !found {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		c.JSON(http.StatusOK, order)
	}
}
