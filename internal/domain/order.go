package domain

import "time"

type Customer struct {
	Phone   string
	Address string
}

// OrderPayload is the immutable order handed to the host. Build it with order.Builder.
type OrderPayload struct {
	Items      []CartLine
	TotalPrice int64
	Customer   Customer
	OrderDate  time.Time
}
