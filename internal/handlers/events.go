package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"backend/internal/events"
)

type eventMessage struct {
	Name string
	Data any
}

// StreamEvents serves the change feed over server-sent events so any open
// view (header badge, cart page, dashboard) can re-read when state changes.
// Cart notifications are scoped to the caller's session; order and sales
// notifications go to everyone.
func StreamEvents(bus *events.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessionFromContext(c)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no session"})
			return
		}

		ch := make(chan eventMessage, 16)
		send := func(msg eventMessage) {
			select {
			case ch <- msg:
			default:
				// slow consumer; it will re-read everything on reconnect
			}
		}

		cancels := []func(){
			bus.Subscribe(events.TopicCartChanged, func(payload any) {
				ev, ok := payload.(events.CartChanged)
				if !ok || ev.Session != session {
					return
				}
				send(eventMessage{Name: "cartUpdated", Data: gin.H{}})
			}),
			bus.Subscribe(events.TopicOrderCompleted, func(payload any) {
				ev, ok := payload.(events.OrderCompleted)
				if !ok {
					return
				}
				send(eventMessage{Name: "orderPlaced", Data: gin.H{
					"orderId":     ev.OrderID,
					"orderAmount": ev.Total,
					"timestamp":   ev.Timestamp,
				}})
			}),
			bus.Subscribe(events.TopicSalesUpdated, func(payload any) {
				send(eventMessage{Name: "salesUpdated", Data: gin.H{}})
			}),
		}
		defer func() {
			for _, cancel := range cancels {
				cancel()
			}
		}()

		log.Println("[HTTP] [INFO] event stream opened")
		c.Stream(func(w io.Writer) bool {
			select {
			case <-c.Request.Context().Done():
				return false
			case msg := <-ch:
				c.SSEvent(msg.Name, msg.Data)
				return true
			}
		})
		log.Println("[HTTP] [INFO] event stream closed")
	}
}
