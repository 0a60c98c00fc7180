package document

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// retryStore decorates a Store with a bounded retry policy for transient
// failures. Policy is injected so it can be tuned per environment and
// exercised in tests; see core.StoreConfig.
type retryStore struct {
	Store

	maxRetries int
	delay      time.Duration
}

// WithRetry wraps store so that failed operations are retried up to
// maxRetries times, waiting delay between attempts. ErrNotFound and context
// cancellation are never retried.
func WithRetry(store Store, maxRetries int, delay time.Duration) Store {
	if maxRetries <= 0 {
		return store
	}
	return &retryStore{Store: store, maxRetries: maxRetries, delay: delay}
}

func (s *retryStore) retry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.delay):
			}
		}
		if err = op(); err == nil {
			return nil
		}
		if errors.Cause(err) == ErrNotFound || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (s *retryStore) Get(ctx context.Context, path string) (Document, error) {
	var doc Document
	err := s.retry(ctx, func() (err error) {
		doc, err = s.Store.Get(ctx, path)
		return
	})
	return doc, err
}

func (s *retryStore) Set(ctx context.Context, path string, fields map[string]interface{}) error {
	return s.retry(ctx, func() error { return s.Store.Set(ctx, path, fields) })
}

func (s *retryStore) Update(ctx context.Context, path string, patch map[string]interface{}) error {
	return s.retry(ctx, func() error { return s.Store.Update(ctx, path, patch) })
}

func (s *retryStore) Delete(ctx context.Context, path string) error {
	return s.retry(ctx, func() error { return s.Store.Delete(ctx, path) })
}

func (s *retryStore) Query(ctx context.Context, collection string, opts QueryOpts) ([]Document, error) {
	var docs []Document
	err := s.retry(ctx, func() (err error) {
		docs, err = s.Store.Query(ctx, collection, opts)
		return
	})
	return docs, err
}

func (s *retryStore) RunTransaction(ctx context.Context, fn func(Tx) error) error {
	return s.retry(ctx, func() error { return s.Store.RunTransaction(ctx, fn) })
}
