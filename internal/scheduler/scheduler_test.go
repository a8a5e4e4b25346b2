package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/blu_rebalancer/utils"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskWithRecover(t *testing.T) {
	t.Run("sets a request id", func(t *testing.T) {
		var got string
		taskWithRecover(func(ctx context.Context) error {
			got = utils.GetRequestIDFromCtx(ctx)
			return nil
		}, "test")(context.Background())

		assert.NotEmpty(t, got)
	})

	t.Run("swallows errors", func(t *testing.T) {
		assert.NotPanics(t, func() {
			taskWithRecover(func(ctx context.Context) error {
				return errors.New("boom")
			}, "test")(context.Background())
		})
	})

	t.Run("recovers panics", func(t *testing.T) {
		assert.NotPanics(t, func() {
			taskWithRecover(func(ctx context.Context) error {
				panic("boom")
			}, "test")(context.Background())
		})
	})
}

func TestIntervalJobStartsImmediately(t *testing.T) {
	s := New(clockwork.NewRealClock())

	ran := make(chan struct{}, 1)
	s.NewIntervalJob("probe", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, time.Hour, true)

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		require.Fail(t, "job did not run")
	}
}
