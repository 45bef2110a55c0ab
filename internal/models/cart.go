package models

// CartLine is one distinct menu item entry within a cart. A cart never holds
// two lines for the same itemId and a stored quantity is always >= 1.
type CartLine struct {
	ItemID    string `bson:"itemId" json:"itemId"`
	Name      string `bson:"name" json:"name"`
	UnitPrice int64  `bson:"unitPrice" json:"unitPrice"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

// Cart is the persisted snapshot of a session's in-progress selection.
// Line order follows insertion so listings stay stable across reloads.
type Cart []CartLine

// Find returns the index of the line with the given itemId, or -1.
func (c Cart) Find(itemID string) int {
	for i, line := range c {
		if line.ItemID == itemID {
			return i
		}
	}
	return -1
}

// ItemCount returns the total quantity across all lines.
func (c Cart) ItemCount() int {
	count := 0
	for _, line := range c {
		count += line.Quantity
	}
	return count
}

// Subtotal returns the cart value in minor currency units before tax.
func (c Cart) Subtotal() int64 {
	var sum int64
	for _, line := range c {
		sum += line.UnitPrice * int64(line.Quantity)
	}
	return sum
}
