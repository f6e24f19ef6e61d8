package order

import (
	"strings"
	"time"

	"github.com/ttwixxbot/telegram-shop/internal/domain"
)

type Builder struct {
	now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// NewBuilderWithClock is used where the order date must be deterministic.
func NewBuilderWithClock(now func() time.Time) *Builder {
	return &Builder{now: now}
}

// Build validates the snapshot and contact fields and returns a complete payload.
// The total is recomputed from the lines rather than taken from the cart.
func (b *Builder) Build(lines []domain.CartLine, phone, address string) (*domain.OrderPayload, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	phone = strings.TrimSpace(phone)
	address = strings.TrimSpace(address)
	if phone == "" || address == "" {
		return nil, ErrMissingContact
	}

	items := make([]domain.CartLine, len(lines))
	copy(items, lines)

	var total int64
	for _, l := range items {
		total += l.Subtotal()
	}

	return &domain.OrderPayload{
		Items:      items,
		TotalPrice: total,
		Customer: domain.Customer{
			Phone:   phone,
			Address: address,
		},
		OrderDate: b.now().UTC(),
	}, nil
}
