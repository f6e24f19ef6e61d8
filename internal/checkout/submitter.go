package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ttwixxbot/telegram-shop/internal/bridge"
	"github.com/ttwixxbot/telegram-shop/internal/cart"
	"github.com/ttwixxbot/telegram-shop/internal/domain"
	"github.com/ttwixxbot/telegram-shop/internal/order"
	"github.com/ttwixxbot/telegram-shop/pkg/logger"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
	// StatusAwaitingConfirmation means the confirmation popup is with the user.
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
)

type Result struct {
	Status Status
	Order  *domain.OrderPayload // set when submitted
	Reason order.Reason         // set when rejected
}

// Observer is notified about checkout outcomes.
type Observer interface {
	OrderSubmitted(total int64)
	CheckoutRejected(reason order.Reason)
	CheckoutCancelled()
}

type nopObserver struct{}

func (nopObserver) OrderSubmitted(int64)          {}
func (nopObserver) CheckoutRejected(order.Reason) {}
func (nopObserver) CheckoutCancelled()            {}

type Submitter struct {
	builder  *order.Builder
	observer Observer
}

func NewSubmitter(builder *order.Builder, observer Observer) *Submitter {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Submitter{builder: builder, observer: observer}
}

// Submit builds an order from the cart and hands it to the host.
//
// A validation failure is shown as an alert and reported as StatusRejected with a nil
// error. A declined confirmation is StatusCancelled, an unanswered one
// StatusAwaitingConfirmation. In all three cases the cart is left as is and nothing is
// sent. The popup carries the cart revision, so an answer given for other cart contents
// does not confirm this one. After a successful hand-off the cart is cleared and the host is
// asked to close the app. An error is returned only if the hand-off itself failed.
func (s *Submitter) Submit(ctx context.Context, store *cart.Store, b bridge.Bridge, phone, address string) (Result, error) {
	log := logger.FromContext(ctx)

	payload, err := s.builder.Build(store.SnapshotLines(), phone, address)
	if err != nil {
		var ve *order.ValidationError
		if !errors.As(err, &ve) {
			return Result{}, fmt.Errorf("build order: %w", err)
		}
		if alertErr := b.ShowAlert(ctx, AlertMessage(ve.Reason)); alertErr != nil {
			log.Warn("show alert failed", zap.Error(alertErr))
		}
		s.observer.CheckoutRejected(ve.Reason)
		log.Info("checkout rejected", zap.String("reason", string(ve.Reason)))
		return Result{Status: StatusRejected, Reason: ve.Reason}, nil
	}

	popup := confirmPopup(store.TotalItemCount(), payload.TotalPrice)
	popup.Token = store.Revision()

	answer, err := b.ShowPopup(ctx, popup)
	if err != nil {
		return Result{}, fmt.Errorf("confirm order: %w", err)
	}
	switch answer {
	case bridge.Confirmed:
	case bridge.Pending:
		return Result{Status: StatusAwaitingConfirmation}, nil
	default:
		s.observer.CheckoutCancelled()
		log.Info("checkout cancelled by user")
		return Result{Status: StatusCancelled}, nil
	}

	data, err := order.Marshal(payload)
	if err != nil {
		return Result{}, err
	}
	if err := b.SendData(ctx, string(data)); err != nil {
		return Result{}, fmt.Errorf("hand order to host: %w", err)
	}

	store.Clear()
	s.observer.OrderSubmitted(payload.TotalPrice)
	log.Info("order submitted",
		zap.Int("lines", len(payload.Items)),
		zap.Int64("total_price", payload.TotalPrice))

	if err := b.Close(ctx); err != nil {
		log.Warn("close host session failed", zap.Error(err))
	}

	return Result{Status: StatusSubmitted, Order: payload}, nil
}
