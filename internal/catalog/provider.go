package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/ttwixxbot/telegram-shop/internal/domain"
)

// Provider supplies the ordered product list.
type Provider interface {
	Products(ctx context.Context) ([]domain.Product, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses a catalog feed: a JSON array of products. Every record is validated
// and ids must be unique.
func Decode(r io.Reader) ([]domain.Product, error) {
	var products []domain.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := Validate(products); err != nil {
		return nil, err
	}
	return products, nil
}

func Validate(products []domain.Product) error {
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		if err := validate.Struct(p); err != nil {
			return fmt.Errorf("%w at index %d: %v", ErrInvalidProduct, i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w at index %d: duplicate id %q", ErrInvalidProduct, i, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Find returns the product with the given id.
func Find(products []domain.Product, id string) (domain.Product, error) {
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, ErrProductNotFound
}

// FileProvider reads a catalog.json from disk on every call.
type FileProvider struct {
	path string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (f *FileProvider) Products(context.Context) ([]domain.Product, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, &LoadError{Source: f.path, Err: err}
	}
	defer file.Close()

	products, err := Decode(file)
	if err != nil {
		return nil, &LoadError{Source: f.path, Err: err}
	}
	return products, nil
}
