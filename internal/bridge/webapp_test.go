package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockSink struct {
	err    error
	userID string
	sent   [][]byte
}

func (m *MockSink) Send(_ context.Context, userID string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.userID = userID
	m.sent = append(m.sent, data)
	return nil
}

func (m *MockSink) Close() error { return nil }

type MockWriter struct {
	err    error
	msgs   []kafka.Message
	closed bool
}

func (m *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *MockWriter) Close() error {
	m.closed = true
	return nil
}

func TestWebApp_RecordsInstructions(t *testing.T) {
	ctx := context.Background()
	w := NewWebApp("42", Answer{}, &MockSink{})

	require.NoError(t, w.Ready(ctx))
	require.NoError(t, w.SetHeaderColor(ctx, "#2481cc"))
	require.NoError(t, w.ShowAlert(ctx, "first"))
	require.NoError(t, w.ShowAlert(ctx, "second"))
	require.NoError(t, w.ImpactOccurred(ctx, ImpactLight))
	require.NoError(t, w.Close(ctx))

	ins := w.Instructions()
	assert.True(t, ins.Ready)
	assert.Equal(t, "#2481cc", ins.HeaderColor)
	assert.Equal(t, []string{"first", "second"}, ins.Alerts)
	assert.Equal(t, []Intensity{ImpactLight}, ins.Haptics)
	assert.True(t, ins.Close)
	assert.True(t, w.Closed())
}

func TestWebApp_PopupAnsweredFromClient(t *testing.T) {
	popup := Popup{
		Title:   "Confirm",
		Message: "Sure?",
		Buttons: []PopupButton{{ID: ConfirmButtonID, Type: "default"}, {Type: "cancel"}},
		Token:   "cart.3",
	}

	tests := []struct {
		name      string
		answer    Answer
		want      PopupResult
		showPopup bool
	}{
		{name: "no answer yet", answer: Answer{}, want: Pending, showPopup: true},
		{name: "matching token", answer: Answer{Token: "cart.3"}, want: Confirmed},
		{name: "stale token", answer: Answer{Token: "cart.2"}, want: Pending, showPopup: true},
		{name: "declined", answer: Answer{Declined: true}, want: Cancelled},
		{name: "declined wins over token", answer: Answer{Token: "cart.3", Declined: true}, want: Cancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWebApp("42", tt.answer, &MockSink{})

			res, err := w.ShowPopup(context.Background(), popup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)

			if tt.showPopup {
				require.NotNil(t, w.Instructions().Popup)
				assert.Equal(t, popup, *w.Instructions().Popup)
			} else {
				assert.Nil(t, w.Instructions().Popup)
			}
		})
	}

	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "confirmed", Confirmed.String())
}

func TestWebApp_SendDataIsOneShot(t *testing.T) {
	sink := &MockSink{}
	w := NewWebApp("42", Answer{}, sink)

	require.NoError(t, w.SendData(context.Background(), `{"totalPrice":1}`))
	assert.ErrorIs(t, w.SendData(context.Background(), `{"totalPrice":2}`), ErrAlreadySent)

	require.Len(t, sink.sent, 1)
	assert.Equal(t, "42", sink.userID)
	assert.True(t, w.Instructions().DataSent)
}

func TestWebApp_SendDataAfterClose(t *testing.T) {
	sink := &MockSink{}
	w := NewWebApp("42", Answer{}, sink)
	_ = w.Close(context.Background())

	assert.ErrorIs(t, w.SendData(context.Background(), "{}"), ErrClosed)
	assert.Empty(t, sink.sent)
}

func TestWebApp_SendDataSinkError(t *testing.T) {
	boom := errors.New("broker down")
	w := NewWebApp("42", Answer{}, &MockSink{err: boom})

	err := w.SendData(context.Background(), "{}")
	assert.ErrorIs(t, err, boom)
	assert.False(t, w.Instructions().DataSent)
}

func TestKafkaSink_Send(t *testing.T) {
	writer := &MockWriter{}
	sink := &KafkaSink{writer: writer, log: zap.NewNop()}

	require.NoError(t, sink.Send(context.Background(), "42", []byte(`{"totalPrice":250}`)))

	require.Len(t, writer.msgs, 1)
	msg := writer.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	assert.JSONEq(t, `{"totalPrice":250}`, string(msg.Value))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, EventTypeSubmitted, headers["event_type"])
	assert.NotEmpty(t, headers["order_id"])

	require.NoError(t, sink.Close())
	assert.True(t, writer.closed)
}

func TestKafkaSink_SendError(t *testing.T) {
	sink := &KafkaSink{writer: &MockWriter{err: errors.New("no leader")}, log: zap.NewNop()}

	err := sink.Send(context.Background(), "42", []byte("{}"))
	assert.ErrorContains(t, err, "kafka write failed")
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(zap.NewNop())
	assert.NoError(t, sink.Send(context.Background(), "42", []byte("{}")))
	assert.NoError(t, sink.Close())
}
