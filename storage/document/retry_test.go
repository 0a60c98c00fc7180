package document

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails every operation until failures runs out.
type flakyStore struct {
	Store

	failures int
	calls    int
	err      error
}

func (s *flakyStore) Get(context.Context, string) (Document, error) {
	s.calls++
	if s.calls <= s.failures {
		return Document{}, s.err
	}
	return Document{Path: "sessions/ABC123"}, nil
}

func (s *flakyStore) Set(context.Context, string, map[string]interface{}) error {
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	return nil
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	transient := errors.New("connection reset")

	t.Run("recovers within budget", func(t *testing.T) {
		flaky := &flakyStore{failures: 2, err: transient}
		store := WithRetry(flaky, 3, time.Millisecond)

		doc, err := store.Get(ctx, "sessions/ABC123")
		require.NoError(t, err)
		assert.Equal(t, "sessions/ABC123", doc.Path)
		assert.Equal(t, 3, flaky.calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		flaky := &flakyStore{failures: 10, err: transient}
		store := WithRetry(flaky, 2, time.Millisecond)

		err := store.Set(ctx, "sessions/ABC123", nil)
		assert.Equal(t, transient, errors.Cause(err))
		assert.Equal(t, 3, flaky.calls) // initial attempt + 2 retries
	})

	t.Run("not found is final", func(t *testing.T) {
		flaky := &flakyStore{failures: 10, err: ErrNotFound}
		store := WithRetry(flaky, 3, time.Millisecond)

		_, err := store.Get(ctx, "sessions/ABC123")
		assert.Equal(t, ErrNotFound, errors.Cause(err))
		assert.Equal(t, 1, flaky.calls)
	})

	t.Run("cancellation is final", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		flaky := &flakyStore{failures: 10, err: transient}
		store := WithRetry(flaky, 3, time.Millisecond)

		_, err := store.Get(cctx, "sessions/ABC123")
		require.Error(t, err)
		assert.Equal(t, 1, flaky.calls)
	})

	t.Run("zero retries returns the store untouched", func(t *testing.T) {
		flaky := &flakyStore{}
		assert.Equal(t, Store(flaky), WithRetry(flaky, 0, time.Millisecond))
	})
}

func TestTimeEncoding(t *testing.T) {
	now := time.Date(2021, 3, 14, 15, 9, 26, 535897932, time.UTC)
	assert.Equal(t, now, DecodeTime(EncodeTime(now)))

	// fixed width keeps lexicographic order chronological
	earlier := EncodeTime(now.Add(-time.Nanosecond))
	assert.True(t, earlier < EncodeTime(now))

	assert.True(t, DecodeTime(nil).IsZero())
	assert.True(t, DecodeTime("not-a-time").IsZero())
	assert.True(t, DecodeTime(42).IsZero())
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "users/t1/notices", Collection("users/t1/notices/a1"))
	assert.Equal(t, "a1", Key("users/t1/notices/a1"))
	assert.Equal(t, "a1", Key("a1"))
	assert.Equal(t, "", Collection("a1"))
}
