package cart

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/ttwixxbot/telegram-shop/internal/domain"
)

// Store owns a single cart. It is not safe for concurrent use; Sessions serializes
// access per user.
type Store struct {
	id          string
	revision    uint64 // bumped by every mutation
	lines       []domain.CartLine
	index       map[string]int // productID -> position in lines
	subscribers []func(domain.Totals)
}

func NewStore() *Store {
	return &Store{id: uuid.NewString(), index: make(map[string]int)}
}

// Revision identifies the current contents of this cart. It changes on every
// mutation and never repeats across carts.
func (s *Store) Revision() string {
	return s.id + "." + strconv.FormatUint(s.revision, 10)
}

// Subscribe registers fn to receive the derived totals after every mutation.
func (s *Store) Subscribe(fn func(domain.Totals)) {
	s.subscribers = append(s.subscribers, fn)
}

// AddItem increments the line for p, or appends a new line with quantity 1.
func (s *Store) AddItem(p domain.Product) domain.Totals {
	if i, ok := s.index[p.ID]; ok {
		s.lines[i].Quantity++
	} else {
		s.index[p.ID] = len(s.lines)
		s.lines = append(s.lines, domain.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  1,
		})
	}
	return s.changed()
}

// ChangeQuantity adds delta to the line for productID. A line whose quantity drops
// to zero or below is removed. Unknown ids are ignored.
func (s *Store) ChangeQuantity(productID string, delta int) domain.Totals {
	i, ok := s.index[productID]
	if !ok {
		return s.Totals()
	}

	q := s.lines[i].Quantity + delta
	if q <= 0 {
		s.removeAt(i)
	} else {
		s.lines[i].Quantity = q
	}
	return s.changed()
}

// Remove drops the line for productID regardless of its quantity.
func (s *Store) Remove(productID string) domain.Totals {
	i, ok := s.index[productID]
	if !ok {
		return s.Totals()
	}
	s.removeAt(i)
	return s.changed()
}

func (s *Store) Clear() domain.Totals {
	s.lines = nil
	s.index = make(map[string]int)
	return s.changed()
}

func (s *Store) TotalItemCount() int {
	n := 0
	for _, l := range s.lines {
		n += l.Quantity
	}
	return n
}

func (s *Store) TotalPrice() int64 {
	var total int64
	for _, l := range s.lines {
		total += l.Subtotal()
	}
	return total
}

func (s *Store) IsEmpty() bool {
	return len(s.lines) == 0
}

func (s *Store) Totals() domain.Totals {
	return domain.Totals{
		ItemCount:  s.TotalItemCount(),
		TotalPrice: s.TotalPrice(),
	}
}

// SnapshotLines returns a copy of the lines in insertion order. Later mutations
// do not affect it.
func (s *Store) SnapshotLines() []domain.CartLine {
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Store) removeAt(i int) {
	delete(s.index, s.lines[i].ProductID)
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	for j := i; j < len(s.lines); j++ {
		s.index[s.lines[j].ProductID] = j
	}
}

func (s *Store) changed() domain.Totals {
	s.revision++
	t := s.Totals()
	for _, fn := range s.subscribers {
		fn(t)
	}
	return t
}
