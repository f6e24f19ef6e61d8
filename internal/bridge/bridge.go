package bridge

import (
	"context"
	"errors"
)

// PopupResult is the user's answer to a confirmation popup.
type PopupResult int

const (
	Cancelled PopupResult = iota
	Confirmed
	// Pending means the popup was handed to the client and the answer arrives with a
	// later call.
	Pending
)

func (r PopupResult) String() string {
	switch r {
	case Confirmed:
		return "confirmed"
	case Pending:
		return "pending"
	default:
		return "cancelled"
	}
}

type Intensity string

const ImpactLight Intensity = "light"

type PopupButton struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Popup struct {
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Buttons []PopupButton `json:"buttons"`
	// Token names the state the popup describes. A confirmation only counts for
	// the same token.
	Token string `json:"token,omitempty"`
}

// ConfirmButtonID is the id of the button that accepts a confirmation popup.
const ConfirmButtonID = "order"

var (
	ErrClosed      = errors.New("host session is closed")
	ErrAlreadySent = errors.New("data was already sent in this session")
)

// Bridge is the host application's API as seen by the shop.
type Bridge interface {
	Ready(ctx context.Context) error
	SetHeaderColor(ctx context.Context, color string) error
	ShowAlert(ctx context.Context, message string) error
	// ShowPopup returns the user's answer, or Pending when the host delivers it
	// with a later call.
	ShowPopup(ctx context.Context, popup Popup) (PopupResult, error)
	// SendData is a one-shot hand-off of the serialized order; there is no acknowledgement.
	SendData(ctx context.Context, data string) error
	Close(ctx context.Context) error
	ImpactOccurred(ctx context.Context, intensity Intensity) error
}

// Sink receives orders passed to SendData.
type Sink interface {
	Send(ctx context.Context, userID string, data []byte) error
	Close() error
}
