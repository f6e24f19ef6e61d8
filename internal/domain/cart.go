package domain

// CartLine is one product in a cart. Quantity is always at least 1.
type CartLine struct {
	ProductID string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
}

func (l CartLine) Subtotal() int64 {
	return l.Price * int64(l.Quantity)
}

// Totals is the derived state of a cart.
type Totals struct {
	ItemCount  int   `json:"itemCount"`
	TotalPrice int64 `json:"totalPrice"`
}
