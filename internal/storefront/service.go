package storefront

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ttwixxbot/telegram-shop/internal/bridge"
	"github.com/ttwixxbot/telegram-shop/internal/cart"
	"github.com/ttwixxbot/telegram-shop/internal/catalog"
	"github.com/ttwixxbot/telegram-shop/internal/checkout"
	"github.com/ttwixxbot/telegram-shop/internal/domain"
	"github.com/ttwixxbot/telegram-shop/pkg/logger"
)

// Branding is the shop header shown by the mini-app.
type Branding struct {
	Title        string `json:"title"`
	LogoPath     string `json:"logoPath"`
	PrimaryColor string `json:"primaryColor"`
}

type CartView struct {
	Lines  []domain.CartLine `json:"lines"`
	Totals domain.Totals     `json:"totals"`
}

// CatalogObserver is told about catalog loads that failed.
type CatalogObserver interface {
	CatalogLoadFailed(source string)
}

type nopCatalogObserver struct{}

func (nopCatalogObserver) CatalogLoadFailed(string) {}

type Service struct {
	sessions  *cart.Sessions
	catalog   catalog.Provider
	submitter *checkout.Submitter
	branding  Branding
	observer  CatalogObserver
}

func NewService(sessions *cart.Sessions, provider catalog.Provider, submitter *checkout.Submitter, branding Branding, observer CatalogObserver) *Service {
	if observer == nil {
		observer = nopCatalogObserver{}
	}
	return &Service{
		sessions:  sessions,
		catalog:   provider,
		submitter: submitter,
		branding:  branding,
		observer:  observer,
	}
}

// Bootstrap tells the host the app is ready and paints the header in the shop colour.
func (s *Service) Bootstrap(ctx context.Context, b bridge.Bridge) (Branding, error) {
	if err := b.Ready(ctx); err != nil {
		return Branding{}, fmt.Errorf("host ready: %w", err)
	}
	if s.branding.PrimaryColor != "" {
		if err := b.SetHeaderColor(ctx, s.branding.PrimaryColor); err != nil {
			logger.FromContext(ctx).Warn("set header color failed", zap.Error(err))
		}
	}
	return s.branding, nil
}

// Catalog returns the products in display order.
func (s *Service) Catalog(ctx context.Context) ([]domain.Product, error) {
	products, err := s.catalog.Products(ctx)
	if err != nil {
		var le *catalog.LoadError
		if errors.As(err, &le) {
			s.observer.CatalogLoadFailed(le.Source)
		}
		logger.FromContext(ctx).Error("catalog load failed", zap.Error(err))
		return nil, err
	}
	return products, nil
}

// AddToCart puts one unit of the product into the user's cart and gives light haptic
// feedback. The product must be in the current catalog.
func (s *Service) AddToCart(ctx context.Context, userID, productID string, b bridge.Bridge) (domain.Totals, error) {
	products, err := s.Catalog(ctx)
	if err != nil {
		return domain.Totals{}, err
	}
	product, err := catalog.Find(products, productID)
	if err != nil {
		return domain.Totals{}, err
	}

	var totals domain.Totals
	_ = s.sessions.With(userID, func(store *cart.Store) error {
		totals = store.AddItem(product)
		return nil
	})

	if err := b.ImpactOccurred(ctx, bridge.ImpactLight); err != nil {
		logger.FromContext(ctx).Debug("haptic feedback failed", zap.Error(err))
	}
	return totals, nil
}

func (s *Service) ChangeQuantity(_ context.Context, userID, productID string, delta int) domain.Totals {
	var totals domain.Totals
	_ = s.sessions.With(userID, func(store *cart.Store) error {
		totals = store.ChangeQuantity(productID, delta)
		return nil
	})
	return totals
}

func (s *Service) Remove(_ context.Context, userID, productID string) domain.Totals {
	var totals domain.Totals
	_ = s.sessions.With(userID, func(store *cart.Store) error {
		totals = store.Remove(productID)
		return nil
	})
	return totals
}

func (s *Service) Cart(_ context.Context, userID string) CartView {
	var view CartView
	_ = s.sessions.With(userID, func(store *cart.Store) error {
		view = CartView{Lines: store.SnapshotLines(), Totals: store.Totals()}
		return nil
	})
	return view
}

// Checkout submits the user's cart. A submitted order closes the host app, which ends
// the user's session; the cart is dropped before any other call for the user runs.
func (s *Service) Checkout(ctx context.Context, userID string, b bridge.Bridge, phone, address string) (checkout.Result, error) {
	var res checkout.Result
	err := s.sessions.WithEnd(userID, func(store *cart.Store) (bool, error) {
		var err error
		res, err = s.submitter.Submit(ctx, store, b, phone, address)
		if err != nil {
			return false, err
		}
		return res.Status == checkout.StatusSubmitted, nil
	})
	if err != nil {
		return checkout.Result{}, err
	}
	return res, nil
}
