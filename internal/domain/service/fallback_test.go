package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Badsnus/mediashare-bot/internal/domain/common/errorz"
	"github.com/stretchr/testify/assert"
)

func TestRunFallback(t *testing.T) {
	ctx := context.Background()
	errFirst := errors.New("first failed")
	errSecond := errors.New("second failed")

	t.Run("first succeeds", func(t *testing.T) {
		var calls []string
		outcome := RunFallback(ctx,
			FallbackStep{Name: "a", Do: func(context.Context) error { calls = append(calls, "a"); return nil }},
			FallbackStep{Name: "b", Do: func(context.Context) error { calls = append(calls, "b"); return nil }},
		)
		assert.True(t, outcome.OK())
		assert.Equal(t, "a", outcome.Succeeded)
		assert.Equal(t, []string{"a"}, calls)
		assert.NoError(t, outcome.Err())
	})

	t.Run("falls back", func(t *testing.T) {
		outcome := RunFallback(ctx,
			FallbackStep{Name: "a", Do: func(context.Context) error { return errFirst }},
			FallbackStep{Name: "b", Do: func(context.Context) error { return nil }},
		)
		assert.Equal(t, "b", outcome.Succeeded)
		assert.Len(t, outcome.Failures, 1)
		assert.NoError(t, outcome.Err())
	})

	t.Run("all fail", func(t *testing.T) {
		outcome := RunFallback(ctx,
			FallbackStep{Name: "a", Do: func(context.Context) error { return errFirst }},
			FallbackStep{Name: "b", Do: func(context.Context) error { return errSecond }},
		)
		assert.False(t, outcome.OK())
		err := outcome.Err()
		assert.ErrorIs(t, err, errorz.ErrAllFallbacksFailed)
		assert.ErrorIs(t, err, errFirst)
		assert.ErrorIs(t, err, errSecond)
	})
}
