package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("Should find the kind through wrapping", func(t *testing.T) {
		err := fmt.Errorf("normalize: %w", Retryablef("fx.fetch", "status %d", 503))
		assert.Equal(t, Retryable, KindOf(err))
		assert.True(t, IsRetryable(err))
		assert.False(t, IsPermanent(err))
	})

	t.Run("Should report Unknown for untagged errors", func(t *testing.T) {
		assert.Equal(t, Unknown, KindOf(errors.New("boom")))
		assert.Equal(t, Unknown, KindOf(nil))
	})
}

func TestError_Message(t *testing.T) {
	t.Run("Should join op, message and cause", func(t *testing.T) {
		err := Wrap(Retryable, "fx.fetch", context.DeadlineExceeded, "connection error")
		assert.Equal(t, "fx.fetch: connection error: context deadline exceeded", err.Error())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Should omit empty op", func(t *testing.T) {
		err := Permanentf("", "USD rate missing in FX response")
		assert.Equal(t, "USD rate missing in FX response", err.Error())
	})

	t.Run("Should keep nil as nil", func(t *testing.T) {
		assert.NoError(t, Wrap(Permanent, "op", nil, "msg"))
	})
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "validation", Validation.String())
	assert.Equal(t, "retryable", Retryable.String())
	assert.Equal(t, "permanent", Permanent.String())
	assert.Equal(t, "unknown", Unknown.String())
}
