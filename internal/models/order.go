package models

import "time"

// Order types accepted at checkout.
const (
	OrderTypeDineIn   = "Dine-in"
	OrderTypeDelivery = "Delivery"
	OrderTypeTakeout  = "Takeout"
)

// CustomerInfo captures the checkout contact details attached to an order.
type CustomerInfo struct {
	FullName    string `bson:"fullName" json:"fullName"`
	PhoneNumber string `bson:"phoneNumber" json:"phoneNumber"`
	OrderType   string `bson:"orderType" json:"orderType"`
	TableNumber string `bson:"tableNumber,omitempty" json:"tableNumber,omitempty"`
}

// CompletedOrder is the immutable record of a finalized order. Amounts are
// minor currency units.
type CompletedOrder struct {
	OrderID    string       `bson:"orderId" json:"orderId"`
	Items      []CartLine   `bson:"items" json:"items"`
	Subtotal   int64        `bson:"subtotal" json:"subtotal"`
	Tax        int64        `bson:"tax" json:"tax"`
	ServiceFee int64        `bson:"serviceFee,omitempty" json:"serviceFee,omitempty"`
	Total      int64        `bson:"total" json:"total"`
	Customer   CustomerInfo `bson:"customer" json:"customer"`
	Timestamp  time.Time    `bson:"timestamp" json:"timestamp"`
}
