package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/formbricks/insights/internal/huberrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTry(t *testing.T) {
	ctx := context.Background()

	t.Run("nil generator is disabled", func(t *testing.T) {
		res := Try(ctx, nil, Prompt{})
		assert.False(t, res.OK)
		assert.Equal(t, ReasonDisabled, res.Reason)
		assert.NoError(t, res.Err)
	})

	t.Run("error is unavailable", func(t *testing.T) {
		res := Try(ctx, Func(func(context.Context, Prompt) (string, error) {
			return "", errors.New("503")
		}), Prompt{})
		assert.False(t, res.OK)
		assert.Equal(t, ReasonUnavailable, res.Reason)
		assert.ErrorIs(t, res.Err, huberrors.ErrGeneration)
		assert.False(t, res.Cancelled())
	})

	t.Run("blank output is empty", func(t *testing.T) {
		res := Try(ctx, Func(func(context.Context, Prompt) (string, error) { return "  \n", nil }), Prompt{})
		assert.False(t, res.OK)
		assert.Equal(t, ReasonEmpty, res.Reason)
	})

	t.Run("success is trimmed", func(t *testing.T) {
		res := Try(ctx, Func(func(context.Context, Prompt) (string, error) { return " hello ", nil }), Prompt{})
		require.True(t, res.OK)
		assert.Equal(t, "hello", res.Text)
	})

	t.Run("cancellation is detectable", func(t *testing.T) {
		res := Try(ctx, Func(func(context.Context, Prompt) (string, error) {
			return "", context.Canceled
		}), Prompt{})
		assert.True(t, res.Cancelled())
	})
}

func TestRateLimited_ForwardsAndHonoursContext(t *testing.T) {
	calls := 0
	g := NewRateLimited(Func(func(context.Context, Prompt) (string, error) {
		calls++

		return "ok", nil
	}), 0, 1)

	out, err := g.Complete(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	slow := NewRateLimited(Func(func(context.Context, Prompt) (string, error) { return "ok", nil }), 0.001, 1)
	_, err = slow.Complete(context.Background(), Prompt{})
	require.NoError(t, err, "first call uses the burst token")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = slow.Complete(ctx, Prompt{})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
