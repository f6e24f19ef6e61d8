package domain

// Product is a catalog entry. Price is in the smallest currency unit.
type Product struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Price       int64  `json:"price" validate:"gte=0"`
	Photo       string `json:"photo"`
}
