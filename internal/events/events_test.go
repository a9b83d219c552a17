package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("broker unavailable")
}

func (f *failingPublisher) Close() error { return nil }

func TestNew(t *testing.T) {
	a := New(TypeLoanBorrowed, map[string]any{"borrow_id": 1})
	b := New(TypeLoanBorrowed, nil)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, TypeLoanBorrowed, a.Type)
	assert.False(t, a.OccurredAt.IsZero())
}

func TestEmit(t *testing.T) {
	t.Run("records", func(t *testing.T) {
		rec := &Recorder{}
		Emit(context.Background(), rec, New(TypeLoanReturned, nil))
		Emit(context.Background(), rec, New(TypeAttendanceRecorded, nil))

		assert.Len(t, rec.Events(), 2)
		assert.Len(t, rec.OfType(TypeLoanReturned), 1)
	})

	t.Run("failure is swallowed", func(t *testing.T) {
		p := &failingPublisher{}
		assert.NotPanics(t, func() {
			Emit(context.Background(), p, New(TypeLoanOverdue, nil))
		})
		assert.Equal(t, 1, p.calls)
	})

	t.Run("nil publisher", func(t *testing.T) {
		assert.NotPanics(t, func() {
			Emit(context.Background(), nil, New(TypeLoanOverdue, nil))
		})
	})
}

func TestLogPublisher(t *testing.T) {
	assert.NoError(t, LogPublisher{}.Publish(context.Background(), New(TypeLoanBorrowed, map[string]int{"book_id": 4})))
}

func TestEncode(t *testing.T) {
	e := New(TypeLoanBorrowed, map[string]any{"book_id": 4})

	msg, err := encode(e)
	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, e.ID, msg.MessageId)
	assert.Equal(t, TypeLoanBorrowed, msg.Type)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, TypeLoanBorrowed, decoded["type"])
	assert.Equal(t, float64(4), decoded["payload"].(map[string]any)["book_id"])
}
