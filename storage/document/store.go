// Package document defines the path-addressed document store the whole app
// persists into: per-path CRUD, ordered/limited collection queries, live
// subscriptions and multi-path transactions.
package document

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("document not found")

// TimeFormat is the canonical encoding of timestamps inside document fields.
// Fixed-width so that lexicographic ordering matches chronological ordering.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type (
	Document struct {
		Path      string
		Fields    map[string]interface{}
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Where is an equality filter on a single document field.
	Where struct {
		Field string
		Value interface{}
	}

	QueryOpts struct {
		OrderBy    string
		Descending bool
		Limit      int
		Where      []Where
	}

	EventType string

	// Event describes a committed change under a subscribed path prefix.
	Event struct {
		Type EventType
		Path string
		Doc  Document // zero for deletes
	}

	// Tx exposes the store's operations inside a transaction.
	// All ops are applied atomically on commit or not at all.
	Tx interface {
		Get(path string) (Document, error)
		Set(path string, fields map[string]interface{}) error
		Update(path string, patch map[string]interface{}) error
		Delete(path string) error
	}

	Store interface {
		Get(ctx context.Context, path string) (Document, error)
		// Set fully replaces the document at path, creating it if needed.
		Set(ctx context.Context, path string, fields map[string]interface{}) error
		// Update merges patch into the existing document; ErrNotFound if absent.
		Update(ctx context.Context, path string, patch map[string]interface{}) error
		Delete(ctx context.Context, path string) error
		// Query returns the direct children of a collection path.
		Query(ctx context.Context, collection string, opts QueryOpts) ([]Document, error)
		// Subscribe streams committed changes under pathPrefix until ctx is done
		// or the returned cancel func is called. Events are delivered in commit order.
		Subscribe(ctx context.Context, pathPrefix string) (<-chan Event, func(), error)
		RunTransaction(ctx context.Context, fn func(Tx) error) error
		Close() error
	}
)

const (
	EventSet    EventType = "set"
	EventDelete EventType = "delete"
)

// EncodeTime encodes t for storage inside document fields.
func EncodeTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// DecodeTime parses a field value written by EncodeTime; zero time on mismatch.
func DecodeTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(TimeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Collection returns the parent collection of a document path.
func Collection(path string) string {
	if i := strings.LastIndex(path, "/"); i > 0 {
		return path[:i]
	}
	return ""
}

// Key returns the last path segment.
func Key(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
