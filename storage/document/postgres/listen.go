package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/trezcool/ubao/storage/document"
)

// notifyPayload mirrors the JSON sent by the documents_notify trigger.
type notifyPayload struct {
	Op   string `json:"op"`
	Path string `json:"path"`
}

// Subscribe opens a dedicated LISTEN connection; Postgres delivers
// notifications in commit order, so subscribers observe writes in order.
func (s *Store) Subscribe(ctx context.Context, pathPrefix string) (<-chan document.Event, func(), error) {
	listener := pq.NewListener(s.dsn, 200*time.Millisecond, 10*time.Second, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Warn(fmt.Sprintf("document listener event %v: %v", ev, err), err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		return nil, nil, err
	}

	out := make(chan document.Event, 64)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = listener.Close()
		})
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil { // reconnect marker
					continue
				}
				var payload notifyPayload
				if err := json.Unmarshal([]byte(n.Extra), &payload); err != nil {
					s.logger.Warn(fmt.Sprintf("decoding document notification: %v", err), err)
					continue
				}
				if !strings.HasPrefix(payload.Path, pathPrefix) {
					continue
				}

				ev := document.Event{Path: payload.Path}
				if payload.Op == "DELETE" {
					ev.Type = document.EventDelete
				} else {
					ev.Type = document.EventSet
					doc, err := s.Get(ctx, payload.Path)
					if err != nil {
						continue // deleted since; the DELETE notification follows
					}
					ev.Doc = doc
				}

				select {
				case out <- ev:
				case <-ctx.Done():
					cancel()
					return
				}
			}
		}
	}()

	return out, cancel, nil
}
