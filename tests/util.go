package testutil

import (
	"context"
	"testing"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/content"
	"github.com/trezcool/ubao/core/session"
	"github.com/trezcool/ubao/storage/cache"
	inmemstore "github.com/trezcool/ubao/storage/document/inmem"
)

// NewConfig returns the app configuration with test mode forced on.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()

	conf := core.NewConfig()
	conf.TestMode = true
	return conf
}

// NewSessionService wires a session service on a fresh in-memory store.
func NewSessionService(t *testing.T, conf *core.Config) (*session.Service, *inmemstore.Store) {
	t.Helper()

	store := inmemstore.NewStore()
	return session.NewService(store, cache.NewMemCache(), conf, core.NewStdLogger(nil)), store
}

func CreateSession(t *testing.T, svc *session.Service, teacherID, teacherName, className string) session.Session {
	t.Helper()

	sess, err := svc.Create(context.Background(), teacherID, teacherName, session.NewSession{ClassName: className})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sess
}

func CreateItem(t *testing.T, svc *content.Service, teacherID string, kind content.Kind, title, body, url string) content.Item {
	t.Helper()

	item, err := svc.Create(context.Background(), teacherID, kind, content.NewItem{
		Title: title,
		Body:  body,
		URL:   url,
	})
	if err != nil {
		t.Fatalf("CreateItem() failed: %v", err)
	}
	return item
}
