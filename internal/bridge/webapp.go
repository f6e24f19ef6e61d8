package bridge

import (
	"context"
	"fmt"
)

// Instructions is what the mini-app client must do on the host after a request.
type Instructions struct {
	Ready       bool        `json:"ready,omitempty"`
	HeaderColor string      `json:"headerColor,omitempty"`
	Alerts      []string    `json:"alerts,omitempty"`
	Popup       *Popup      `json:"popup,omitempty"`
	Haptics     []Intensity `json:"haptics,omitempty"`
	DataSent    bool        `json:"dataSent,omitempty"`
	Close       bool        `json:"close,omitempty"`
}

// Answer is the client's reply to a popup returned by an earlier request.
type Answer struct {
	Token    string // token of the popup the user accepted
	Declined bool
}

// WebApp is a Bridge scoped to one HTTP request from the mini-app. Host-side
// effects are recorded as Instructions for the client; popups are answered from
// the Answer the client sent with the request; orders go to the Sink.
// Not safe for concurrent use.
type WebApp struct {
	userID string
	answer Answer
	sink   Sink
	ins    Instructions
}

var _ Bridge = (*WebApp)(nil)

func NewWebApp(userID string, answer Answer, sink Sink) *WebApp {
	return &WebApp{userID: userID, answer: answer, sink: sink}
}

func (w *WebApp) Ready(context.Context) error {
	w.ins.Ready = true
	return nil
}

func (w *WebApp) SetHeaderColor(_ context.Context, color string) error {
	w.ins.HeaderColor = color
	return nil
}

func (w *WebApp) ShowAlert(_ context.Context, message string) error {
	w.ins.Alerts = append(w.ins.Alerts, message)
	return nil
}

// ShowPopup answers from the client's Answer. An acceptance counts only when its token
// matches the popup; otherwise the popup is recorded for the client to show and the
// result is Pending.
func (w *WebApp) ShowPopup(_ context.Context, popup Popup) (PopupResult, error) {
	if w.answer.Declined {
		return Cancelled, nil
	}
	if w.answer.Token != "" && w.answer.Token == popup.Token {
		return Confirmed, nil
	}
	p := popup
	w.ins.Popup = &p
	return Pending, nil
}

func (w *WebApp) SendData(ctx context.Context, data string) error {
	if w.ins.Close {
		return ErrClosed
	}
	if w.ins.DataSent {
		return ErrAlreadySent
	}
	if err := w.sink.Send(ctx, w.userID, []byte(data)); err != nil {
		return fmt.Errorf("send data: %w", err)
	}
	w.ins.DataSent = true
	return nil
}

func (w *WebApp) Close(context.Context) error {
	w.ins.Close = true
	return nil
}

func (w *WebApp) ImpactOccurred(_ context.Context, intensity Intensity) error {
	w.ins.Haptics = append(w.ins.Haptics, intensity)
	return nil
}

func (w *WebApp) Instructions() Instructions {
	return w.ins
}

// Closed reports whether Close was requested during the request.
func (w *WebApp) Closed() bool {
	return w.ins.Close
}
