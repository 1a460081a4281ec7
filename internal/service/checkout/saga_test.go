package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestSagaRunsInReverseOrder(t *testing.T) {
	var order []string
	saga := NewSaga(zaptest.NewLogger(t), time.Second)

	for _, name := range []string{"customer", "record", "session"} {
		saga.Add(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	saga.Compensate(context.Background())

	assert.Equal(t, []string{"session", "record", "customer"}, order)
}

func TestSagaContinuesPastFailures(t *testing.T) {
	var ran []string
	saga := NewSaga(zaptest.NewLogger(t), time.Second)
	saga.Add("first", func(context.Context) error { ran = append(ran, "first"); return nil })
	saga.Add("second", func(context.Context) error { ran = append(ran, "second"); return errors.New("boom") })

	saga.Compensate(context.Background())
	assert.Equal(t, []string{"second", "first"}, ran)
}

func TestSagaIgnoresCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawErr error
	saga := NewSaga(zaptest.NewLogger(t), time.Second)
	saga.Add("step", func(ctx context.Context) error {
		sawErr = ctx.Err()
		return nil
	})
	saga.Compensate(ctx)

	assert.NoError(t, sawErr)
}
