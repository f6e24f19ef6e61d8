package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttwixxbot/telegram-shop/internal/bridge"
	"github.com/ttwixxbot/telegram-shop/internal/cart"
	"github.com/ttwixxbot/telegram-shop/internal/catalog"
	"github.com/ttwixxbot/telegram-shop/internal/checkout"
	"github.com/ttwixxbot/telegram-shop/internal/domain"
	"github.com/ttwixxbot/telegram-shop/internal/order"
)

type MockProvider struct {
	products []domain.Product
	err      error
}

func (m *MockProvider) Products(context.Context) ([]domain.Product, error) {
	return m.products, m.err
}

type MockSink struct {
	mu   sync.Mutex
	sent map[string][]byte
}

func (m *MockSink) Send(_ context.Context, userID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = make(map[string][]byte)
	}
	m.sent[userID] = data
	return nil
}

func (m *MockSink) Close() error { return nil }

type MockCatalogObserver struct {
	sources []string
}

func (m *MockCatalogObserver) CatalogLoadFailed(source string) {
	m.sources = append(m.sources, source)
}

var testProducts = []domain.Product{
	{ID: "tshirt", Name: "Футболка", Price: 1500},
	{ID: "mug", Name: "Кружка", Price: 600},
}

func newTestService(t *testing.T, provider catalog.Provider, obs CatalogObserver) *Service {
	t.Helper()
	sessions := cart.NewSessions(time.Hour, time.Hour)
	t.Cleanup(func() { _ = sessions.Close() })

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	submitter := checkout.NewSubmitter(order.NewBuilderWithClock(func() time.Time { return now }), nil)
	branding := Branding{Title: "Shop", LogoPath: "images/logo.png", PrimaryColor: "#ff0000"}

	return NewService(sessions, provider, submitter, branding, obs)
}

func TestService_Bootstrap(t *testing.T) {
	svc := newTestService(t, &MockProvider{products: testProducts}, nil)
	b := bridge.NewWebApp("1", bridge.Answer{}, &MockSink{})

	branding, err := svc.Bootstrap(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, "Shop", branding.Title)
	ins := b.Instructions()
	assert.True(t, ins.Ready)
	assert.Equal(t, "#ff0000", ins.HeaderColor)
}

func TestService_AddToCart(t *testing.T) {
	svc := newTestService(t, &MockProvider{products: testProducts}, nil)
	ctx := context.Background()
	b := bridge.NewWebApp("1", bridge.Answer{}, &MockSink{})

	totals, err := svc.AddToCart(ctx, "1", "tshirt", b)
	require.NoError(t, err)
	assert.Equal(t, domain.Totals{ItemCount: 1, TotalPrice: 1500}, totals)

	totals, err = svc.AddToCart(ctx, "1", "tshirt", b)
	require.NoError(t, err)
	assert.Equal(t, domain.Totals{ItemCount: 2, TotalPrice: 3000}, totals)

	assert.Equal(t, []bridge.Intensity{bridge.ImpactLight, bridge.ImpactLight}, b.Instructions().Haptics)

	view := svc.Cart(ctx, "1")
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 2, view.Lines[0].Quantity)
}

func TestService_AddToCart_UnknownProduct(t *testing.T) {
	svc := newTestService(t, &MockProvider{products: testProducts}, nil)
	b := bridge.NewWebApp("1", bridge.Answer{}, &MockSink{})

	_, err := svc.AddToCart(context.Background(), "1", "ghost", b)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Empty(t, b.Instructions().Haptics)
	assert.NotNil(t, svc.Cart(context.Background(), "1").Lines)
}

func TestService_CatalogFailureLeavesCart(t *testing.T) {
	provider := &MockProvider{products: testProducts}
	obs := &MockCatalogObserver{}
	svc := newTestService(t, provider, obs)
	ctx := context.Background()
	b := bridge.NewWebApp("1", bridge.Answer{}, &MockSink{})

	_, err := svc.AddToCart(ctx, "1", "mug", b)
	require.NoError(t, err)

	provider.err = &catalog.LoadError{Source: "http", Err: errors.New("timeout")}
	_, err = svc.AddToCart(ctx, "1", "mug", b)

	var le *catalog.LoadError
	assert.ErrorAs(t, err, &le)
	assert.Equal(t, []string{"http"}, obs.sources)
	assert.Equal(t, domain.Totals{ItemCount: 1, TotalPrice: 600}, svc.Cart(ctx, "1").Totals)
}

func TestService_ChangeQuantityAndRemove(t *testing.T) {
	svc := newTestService(t, &MockProvider{products: testProducts}, nil)
	ctx := context.Background()
	b := bridge.NewWebApp("1", bridge.Answer{}, &MockSink{})

	_, _ = svc.AddToCart(ctx, "1", "tshirt", b)
	_, _ = svc.AddToCart(ctx, "1", "mug", b)

	assert.Equal(t, domain.Totals{ItemCount: 4, TotalPrice: 3600}, svc.ChangeQuantity(ctx, "1", "tshirt", 2))
	assert.Equal(t, domain.Totals{ItemCount: 3, TotalPrice: 4500}, svc.ChangeQuantity(ctx, "1", "mug", -1))
	assert.Equal(t, domain.Totals{ItemCount: 3, TotalPrice: 4500}, svc.ChangeQuantity(ctx, "1", "ghost", 5))
	assert.Equal(t, domain.Totals{}, svc.Remove(ctx, "1", "tshirt"))
}

func TestService_CartsAreIsolatedPerUser(t *testing.T) {
	svc := newTestService(t, &MockProvider{products: testProducts}, nil)
	ctx := context.Background()

	_, _ = svc.AddToCart(ctx, "1", "tshirt", bridge.NewWebApp("1", bridge.Answer{}, &MockSink{}))

	assert.Equal(t, 1, svc.Cart(ctx, "1").Totals.ItemCount)
	assert.Equal(t, 0, svc.Cart(ctx, "2").Totals.ItemCount)
}

func TestService_Checkout(t *testing.T) {
	svc := newTestService(t, &MockProvider{products: testProducts}, nil)
	ctx := context.Background()
	sink := &MockSink{}

	_, _ = svc.AddToCart(ctx, "7", "mug", bridge.NewWebApp("7", bridge.Answer{}, sink))

	var token string
	t.Run("first request returns the popup", func(t *testing.T) {
		b := bridge.NewWebApp("7", bridge.Answer{}, sink)
		res, err := svc.Checkout(ctx, "7", b, "+7 900", "Lenina 1")
		require.NoError(t, err)

		assert.Equal(t, checkout.StatusAwaitingConfirmation, res.Status)
		require.NotNil(t, b.Instructions().Popup)
		token = b.Instructions().Popup.Token
		assert.NotEmpty(t, token)
		assert.Empty(t, sink.sent)
		assert.Equal(t, 1, svc.Cart(ctx, "7").Totals.ItemCount)
	})

	t.Run("missing contact is rejected", func(t *testing.T) {
		b := bridge.NewWebApp("7", bridge.Answer{Token: token}, sink)
		res, err := svc.Checkout(ctx, "7", b, "+7 900", "   ")
		require.NoError(t, err)

		assert.Equal(t, checkout.StatusRejected, res.Status)
		assert.Len(t, b.Instructions().Alerts, 1)
	})

	t.Run("confirmed request submits and ends the session", func(t *testing.T) {
		b := bridge.NewWebApp("7", bridge.Answer{Token: token}, sink)
		res, err := svc.Checkout(ctx, "7", b, "+7 900", "Lenina 1")
		require.NoError(t, err)

		assert.Equal(t, checkout.StatusSubmitted, res.Status)
		assert.True(t, b.Closed())

		var wire order.WirePayload
		require.NoError(t, json.Unmarshal(sink.sent["7"], &wire))
		assert.Equal(t, int64(600), wire.TotalPrice)
		assert.Equal(t, "Lenina 1", wire.Customer.Address)

		assert.Zero(t, svc.Cart(ctx, "7").Totals.ItemCount)
	})

	t.Run("token of the finished cart does not confirm a new one", func(t *testing.T) {
		_, _ = svc.AddToCart(ctx, "7", "mug", bridge.NewWebApp("7", bridge.Answer{}, sink))
		delete(sink.sent, "7")

		b := bridge.NewWebApp("7", bridge.Answer{Token: token}, sink)
		res, err := svc.Checkout(ctx, "7", b, "+7 900", "Lenina 1")
		require.NoError(t, err)

		assert.Equal(t, checkout.StatusAwaitingConfirmation, res.Status)
		assert.Empty(t, sink.sent)
	})
}

func TestService_CheckoutCartChangedAfterPopup(t *testing.T) {
	svc := newTestService(t, &MockProvider{products: testProducts}, nil)
	ctx := context.Background()
	sink := &MockSink{}

	_, _ = svc.AddToCart(ctx, "7", "mug", bridge.NewWebApp("7", bridge.Answer{}, sink))

	first := bridge.NewWebApp("7", bridge.Answer{}, sink)
	res, err := svc.Checkout(ctx, "7", first, "+7 900", "Lenina 1")
	require.NoError(t, err)
	require.Equal(t, checkout.StatusAwaitingConfirmation, res.Status)
	seen := first.Instructions().Popup
	require.NotNil(t, seen)
	assert.Contains(t, seen.Message, "1 шт.")

	// another tab grows the cart before the user presses the button
	_, _ = svc.AddToCart(ctx, "7", "tshirt", bridge.NewWebApp("7", bridge.Answer{}, sink))
	_, _ = svc.AddToCart(ctx, "7", "tshirt", bridge.NewWebApp("7", bridge.Answer{}, sink))

	second := bridge.NewWebApp("7", bridge.Answer{Token: seen.Token}, sink)
	res, err = svc.Checkout(ctx, "7", second, "+7 900", "Lenina 1")
	require.NoError(t, err)

	assert.Equal(t, checkout.StatusAwaitingConfirmation, res.Status)
	assert.Empty(t, sink.sent)
	fresh := second.Instructions().Popup
	require.NotNil(t, fresh)
	assert.NotEqual(t, seen.Token, fresh.Token)
	assert.Contains(t, fresh.Message, "3 шт.")
	assert.Equal(t, 3, svc.Cart(ctx, "7").Totals.ItemCount)
}

func TestService_CheckoutDeclined(t *testing.T) {
	svc := newTestService(t, &MockProvider{products: testProducts}, nil)
	ctx := context.Background()
	sink := &MockSink{}

	_, _ = svc.AddToCart(ctx, "7", "mug", bridge.NewWebApp("7", bridge.Answer{}, sink))

	b := bridge.NewWebApp("7", bridge.Answer{Declined: true}, sink)
	res, err := svc.Checkout(ctx, "7", b, "+7 900", "Lenina 1")
	require.NoError(t, err)

	assert.Equal(t, checkout.StatusCancelled, res.Status)
	assert.Nil(t, b.Instructions().Popup)
	assert.Empty(t, sink.sent)
	assert.Equal(t, 1, svc.Cart(ctx, "7").Totals.ItemCount)
}
