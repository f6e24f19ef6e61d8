package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ttwixxbot/telegram-shop/internal/domain"
	"github.com/ttwixxbot/telegram-shop/pkg/circuitbreaker"
)

const maxFeedSize = 10 << 20 // 10MB

// HTTPProvider fetches the catalog feed over HTTP. Calls go through a circuit breaker so
// a dead feed fails fast instead of holding every request for the full timeout.
type HTTPProvider struct {
	url     string
	client  *http.Client
	breaker *circuitbreaker.Breaker[[]domain.Product]
}

func NewHTTPProvider(url string, timeout time.Duration, cb circuitbreaker.Config, log *zap.Logger) *HTTPProvider {
	client := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return &HTTPProvider{
		url:     url,
		client:  client,
		breaker: circuitbreaker.New[[]domain.Product](cb, log),
	}
}

func (h *HTTPProvider) Products(ctx context.Context) ([]domain.Product, error) {
	products, err := h.breaker.Execute(ctx, h.fetch)
	if err != nil {
		return nil, &LoadError{Source: h.url, Err: err}
	}
	return products, nil
}

func (h *HTTPProvider) fetch(ctx context.Context) ([]domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	return Decode(io.LimitReader(resp.Body, maxFeedSize))
}
