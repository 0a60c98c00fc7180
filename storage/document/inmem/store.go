// Package inmemstore is the in-memory document.Store used in dev mode and all
// through the test suites.
package inmemstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/ubao/storage/document"
)

type (
	entry struct {
		fields    map[string]interface{}
		createdAt time.Time
		updatedAt time.Time
	}

	subscriber struct {
		prefix string
		ch     chan document.Event
	}

	Store struct {
		mu   sync.RWMutex
		docs map[string]*entry

		subMu sync.Mutex
		subs  map[int]*subscriber
		subID int
	}
)

var _ document.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		docs: make(map[string]*entry),
		subs: make(map[int]*subscriber),
	}
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	cp := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return cp
}

func (s *Store) doc(path string, e *entry) document.Document {
	return document.Document{
		Path:      path,
		Fields:    copyFields(e.fields),
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}
}

func (s *Store) Get(_ context.Context, path string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.docs[path]
	if !ok {
		return document.Document{}, document.ErrNotFound
	}
	return s.doc(path, e), nil
}

func (s *Store) Set(_ context.Context, path string, fields map[string]interface{}) error {
	s.mu.Lock()
	now := time.Now().UTC()
	e, ok := s.docs[path]
	if !ok {
		e = &entry{createdAt: now}
		s.docs[path] = e
	}
	e.fields = copyFields(fields)
	e.updatedAt = now
	doc := s.doc(path, e)
	s.mu.Unlock()

	s.publish(document.Event{Type: document.EventSet, Path: path, Doc: doc})
	return nil
}

func (s *Store) Update(_ context.Context, path string, patch map[string]interface{}) error {
	s.mu.Lock()
	e, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return document.ErrNotFound
	}
	for k, v := range patch {
		e.fields[k] = v
	}
	e.updatedAt = time.Now().UTC()
	doc := s.doc(path, e)
	s.mu.Unlock()

	s.publish(document.Event{Type: document.EventSet, Path: path, Doc: doc})
	return nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	_, ok := s.docs[path]
	delete(s.docs, path)
	s.mu.Unlock()

	if ok {
		s.publish(document.Event{Type: document.EventDelete, Path: path})
	}
	return nil
}

func (s *Store) Query(_ context.Context, collection string, opts document.QueryOpts) ([]document.Document, error) {
	s.mu.RLock()
	prefix := collection + "/"
	docs := make([]document.Document, 0)
	for path, e := range s.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if strings.Contains(path[len(prefix):], "/") { // direct children only
			continue
		}
		doc := s.doc(path, e)
		if matches(doc, opts.Where) {
			docs = append(docs, doc)
		}
	}
	s.mu.RUnlock()

	if opts.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			if opts.Descending {
				return less(docs[j], docs[i], opts.OrderBy)
			}
			return less(docs[i], docs[j], opts.OrderBy)
		})
	}
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs, nil
}

func (s *Store) Subscribe(ctx context.Context, pathPrefix string) (<-chan document.Event, func(), error) {
	sub := &subscriber{prefix: pathPrefix, ch: make(chan document.Event, 64)}

	s.subMu.Lock()
	s.subID++
	id := s.subID
	s.subs[id] = sub
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(sub.ch)
		})
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return sub.ch, cancel, nil
}

func (s *Store) publish(ev document.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		if !strings.HasPrefix(ev.Path, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- ev:
		default: // slow subscriber; drop rather than block writers
		}
	}
}

func (s *Store) Close() error { return nil }

// transaction applies ops on an overlay; commit publishes them atomically.

type txOp struct {
	event document.EventType
	path  string
}

type tx struct {
	store   *Store
	overlay map[string]*entry // nil entry = deleted
	ops     []txOp
}

var _ document.Tx = (*tx)(nil)

func (s *Store) RunTransaction(_ context.Context, fn func(document.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s, overlay: make(map[string]*entry)}
	if err := fn(t); err != nil {
		return err
	}

	// commit
	events := make([]document.Event, 0, len(t.ops))
	for _, op := range t.ops {
		e := t.overlay[op.path]
		if op.event == document.EventDelete {
			delete(s.docs, op.path)
			events = append(events, document.Event{Type: document.EventDelete, Path: op.path})
			continue
		}
		s.docs[op.path] = e
		events = append(events, document.Event{Type: document.EventSet, Path: op.path, Doc: s.doc(op.path, e)})
	}

	go func() {
		for _, ev := range events {
			s.publish(ev)
		}
	}()
	return nil
}

func (t *tx) lookup(path string) (*entry, bool) {
	if e, ok := t.overlay[path]; ok {
		return e, e != nil
	}
	e, ok := t.store.docs[path]
	return e, ok
}

func (t *tx) Get(path string) (document.Document, error) {
	e, ok := t.lookup(path)
	if !ok {
		return document.Document{}, document.ErrNotFound
	}
	return t.store.doc(path, e), nil
}

func (t *tx) Set(path string, fields map[string]interface{}) error {
	now := time.Now().UTC()
	createdAt := now
	if e, ok := t.lookup(path); ok {
		createdAt = e.createdAt
	}
	t.overlay[path] = &entry{fields: copyFields(fields), createdAt: createdAt, updatedAt: now}
	t.ops = append(t.ops, txOp{event: document.EventSet, path: path})
	return nil
}

func (t *tx) Update(path string, patch map[string]interface{}) error {
	e, ok := t.lookup(path)
	if !ok {
		return document.ErrNotFound
	}
	fields := copyFields(e.fields)
	for k, v := range patch {
		fields[k] = v
	}
	t.overlay[path] = &entry{fields: fields, createdAt: e.createdAt, updatedAt: time.Now().UTC()}
	t.ops = append(t.ops, txOp{event: document.EventSet, path: path})
	return nil
}

func (t *tx) Delete(path string) error {
	t.overlay[path] = nil
	t.ops = append(t.ops, txOp{event: document.EventDelete, path: path})
	return nil
}

// query helpers

func matches(doc document.Document, where []document.Where) bool {
	for _, w := range where {
		if doc.Fields[w.Field] != w.Value {
			return false
		}
	}
	return true
}

func less(a, b document.Document, field string) bool {
	switch av := a.Fields[field].(type) {
	case string:
		bv, _ := b.Fields[field].(string)
		return av < bv
	case float64:
		bv, _ := b.Fields[field].(float64)
		return av < bv
	case int:
		bv, _ := b.Fields[field].(int)
		return av < bv
	case bool:
		bv, _ := b.Fields[field].(bool)
		return !av && bv
	}
	return false
}
