package order

import (
	"encoding/json"
	"fmt"

	"github.com/ttwixxbot/telegram-shop/internal/domain"
)

// DateLayout matches what the mini-app host expects for orderDate.
const DateLayout = "2006-01-02T15:04:05.000Z"

type WireItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

type WireCustomer struct {
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// WirePayload is the JSON shape sent to the host.
type WirePayload struct {
	Items      []WireItem   `json:"items"`
	TotalPrice int64        `json:"totalPrice"`
	Customer   WireCustomer `json:"customer"`
	OrderDate  string       `json:"orderDate"`
}

func ToWire(p *domain.OrderPayload) WirePayload {
	items := make([]WireItem, 0, len(p.Items))
	for _, l := range p.Items {
		items = append(items, WireItem{
			ID:       l.ProductID,
			Name:     l.Name,
			Price:    l.Price,
			Quantity: l.Quantity,
		})
	}
	return WirePayload{
		Items:      items,
		TotalPrice: p.TotalPrice,
		Customer: WireCustomer{
			Phone:   p.Customer.Phone,
			Address: p.Customer.Address,
		},
		OrderDate: p.OrderDate.UTC().Format(DateLayout),
	}
}

func Marshal(p *domain.OrderPayload) ([]byte, error) {
	data, err := json.Marshal(ToWire(p))
	if err != nil {
		return nil, fmt.Errorf("marshal order payload failed: %w", err)
	}
	return data, nil
}
