package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ttwixxbot/telegram-shop/internal/bridge"
	"github.com/ttwixxbot/telegram-shop/internal/catalog"
	"github.com/ttwixxbot/telegram-shop/internal/checkout"
	"github.com/ttwixxbot/telegram-shop/internal/domain"
	"github.com/ttwixxbot/telegram-shop/internal/order"
	"github.com/ttwixxbot/telegram-shop/internal/storefront"
	"github.com/ttwixxbot/telegram-shop/pkg/logger"
)

const msgCatalogUnavailable = "Не удалось загрузить каталог. Попробуйте позже."

type ShopHandler struct {
	service  *storefront.Service
	sink     bridge.Sink
	timeout  time.Duration
	validate *validator.Validate
}

func NewShopHandler(service *storefront.Service, sink bridge.Sink, timeout time.Duration) *ShopHandler {
	return &ShopHandler{
		service:  service,
		sink:     sink,
		timeout:  timeout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
}

type ChangeQuantityRequestDTO struct {
	Delta int `json:"delta" validate:"required,min=-99,max=99"`
}

// CheckoutRequestDTO carries the user's answer to the popup of an earlier checkout
// call: ConfirmToken is the accepted popup's token, Declined a press on cancel.
type CheckoutRequestDTO struct {
	Phone        string `json:"phone" validate:"max=64"`
	Address      string `json:"address" validate:"max=512"`
	ConfirmToken string `json:"confirm_token,omitempty" validate:"max=128"`
	Declined     bool   `json:"declined,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type StorefrontResponse struct {
	Shop storefront.Branding `json:"shop"`
	Host bridge.Instructions `json:"host"`
}

type CatalogResponse struct {
	Products []domain.Product `json:"products"`
}

type TotalsResponse struct {
	Totals domain.Totals       `json:"totals"`
	Host   bridge.Instructions `json:"host"`
}

type CheckoutResponse struct {
	Status string              `json:"status"`
	Reason string              `json:"reason,omitempty"`
	Order  *order.WirePayload  `json:"order,omitempty"`
	Host   bridge.Instructions `json:"host"`
}

func (h *ShopHandler) Storefront(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, ok := userFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	b := h.newBridge(user, bridge.Answer{})
	shop, err := h.service.Bootstrap(ctx, b)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, StorefrontResponse{Shop: shop, Host: b.Instructions()})
}

func (h *ShopHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.service.Catalog(ctx)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, CatalogResponse{Products: products})
}

func (h *ShopHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	respondJSON(w, r, http.StatusOK, h.service.Cart(r.Context(), userKeyOf(user)))
}

func (h *ShopHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, ok := userFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	b := h.newBridge(user, bridge.Answer{})
	totals, err := h.service.AddToCart(ctx, userKeyOf(user), req.ProductID, b)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, TotalsResponse{Totals: totals, Host: b.Instructions()})
}

func (h *ShopHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req ChangeQuantityRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	totals := h.service.ChangeQuantity(r.Context(), userKeyOf(user), chi.URLParam(r, "product_id"), req.Delta)
	respondJSON(w, r, http.StatusOK, TotalsResponse{Totals: totals})
}

func (h *ShopHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	totals := h.service.Remove(r.Context(), userKeyOf(user), chi.URLParam(r, "product_id"))
	respondJSON(w, r, http.StatusOK, TotalsResponse{Totals: totals})
}

// Checkout answers 200 for a submitted, cancelled or unconfirmed order and 422 when
// validation rejected it. In every case host tells the client what to show. An
// unconfirmed order comes back with host.popup; the client shows it and repeats the
// call with the popup's token, or with declined set.
func (h *ShopHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, ok := userFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if !h.decode(w, r, &req) {
		return
	}

	b := h.newBridge(user, bridge.Answer{Token: req.ConfirmToken, Declined: req.Declined})
	res, err := h.service.Checkout(ctx, userKeyOf(user), b, req.Phone, req.Address)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := CheckoutResponse{
		Status: string(res.Status),
		Reason: string(res.Reason),
		Host:   b.Instructions(),
	}
	if res.Order != nil {
		wire := order.ToWire(res.Order)
		resp.Order = &wire
	}

	status := http.StatusOK
	if res.Status == checkout.StatusRejected {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, r, status, resp)
}

func (h *ShopHandler) newBridge(user TelegramUser, answer bridge.Answer) *bridge.WebApp {
	return bridge.NewWebApp(userKeyOf(user), answer, h.sink)
}

func (h *ShopHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return false
		}
		respondError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:   "request validation failed",
			Code:    "validation_failed",
			Details: err.Error(),
		})
		return false
	}
	return true
}

func (h *ShopHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var loadErr *catalog.LoadError
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, r, http.StatusNotFound, "product_not_found", "product not found")
	case errors.As(err, &loadErr):
		respondJSON(w, r, http.StatusServiceUnavailable, ErrorResponse{
			Error:   msgCatalogUnavailable,
			Code:    "catalog_unavailable",
			Details: loadErr.Source,
		})
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func userKeyOf(user TelegramUser) string {
	return strconv.FormatInt(user.ID, 10)
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
