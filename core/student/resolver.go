// Package student assembles the anonymous, read-only projection of a
// teacher's workspace behind a public session code.
package student

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/content"
	"github.com/trezcool/ubao/core/session"
)

type (
	// PublicSession is the session as students may see it; the owning
	// teacher's principal id never leaves the backend.
	PublicSession struct {
		Code        string           `json:"code"`
		TeacherName string           `json:"teacher_name"`
		ClassName   string           `json:"class_name"`
		Settings    session.Settings `json:"settings"`
	}

	// Item decorates a content item with a plain-text preview of its
	// Markdown body for list rendering.
	Item struct {
		content.Item
		Preview string `json:"preview,omitempty"`
	}

	// Bundle is the full student page payload, assembled per load.
	Bundle struct {
		Session       PublicSession `json:"session"`
		Notices       []Item        `json:"notices"`
		Links         []Item        `json:"links"`
		ClassContents []Item        `json:"class_contents"`
		BookContents  []Item        `json:"book_contents"`
	}

	Resolver struct {
		sessions *session.Service
		contents *content.Service
		pageSize int
		timeout  time.Duration
		logger   core.Logger
	}
)

func NewResolver(sessions *session.Service, contents *content.Service, conf *core.Config, logger core.Logger) *Resolver {
	return &Resolver{
		sessions: sessions,
		contents: contents,
		pageSize: conf.StudentPageSize,
		timeout:  conf.StudentLoadTimeout,
		logger:   logger,
	}
}

// Load turns a bare code into a filtered, read-only content bundle.
//
// Deactivated sessions fail closed before any content is read. A content
// kind whose read fails degrades to an empty list rather than failing the
// whole view; an anonymous student has no recovery path beyond reloading,
// so partial content beats an error page.
func (r *Resolver) Load(ctx context.Context, code string) (Bundle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sess, err := r.sessions.Resolve(ctx, code)
	if err != nil {
		return Bundle{}, err
	}
	if !sess.IsActive {
		return Bundle{}, session.ErrInactive
	}

	bundle := Bundle{
		Session: PublicSession{
			Code:        sess.Code,
			TeacherName: sess.TeacherName,
			ClassName:   sess.ClassName,
			Settings:    sess.Settings,
		},
		Notices:       []Item{},
		Links:         []Item{},
		ClassContents: []Item{},
		BookContents:  []Item{},
	}

	for _, kind := range content.StudentKinds {
		if !sess.Settings.Allows(kind) {
			continue
		}
		items, err := r.contents.ListActive(ctx, sess.TeacherID, kind, r.pageSize)
		if err != nil {
			// partial-failure tolerance: log and degrade to an empty list
			r.logger.Error(fmt.Sprintf("student view: loading %s content for %s: %v", kind, sess.Code, err), err)
			continue
		}
		bundle.set(kind, toItems(onlyActive(items)))
	}
	return bundle, nil
}

// Watch re-emits the bundle whenever the session record or the owning
// teacher's content changes. The stream ends once the session is no longer
// resolvable as active.
func (r *Resolver) Watch(ctx context.Context, code string) (<-chan Bundle, func(), error) {
	sess, err := r.sessions.Resolve(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if !sess.IsActive {
		return nil, nil, session.ErrInactive
	}
	bundle, err := r.Load(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	sessEvents, cancelSess, err := r.sessions.Subscribe(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	contentEvents, cancelContent, err := r.contents.SubscribeOwner(ctx, sess.TeacherID)
	if err != nil {
		cancelSess()
		return nil, nil, err
	}

	cancel := func() {
		cancelSess()
		cancelContent()
	}

	out := make(chan Bundle, 4)
	go func() {
		defer close(out)
		out <- bundle

		reload := func() bool {
			b, err := r.Load(ctx, code)
			if err != nil {
				return false // deactivated or gone; end the stream
			}
			select {
			case out <- b:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sessEvents:
				if !ok || !reload() {
					return
				}
			case _, ok := <-contentEvents:
				if !ok || !reload() {
					return
				}
			}
		}
	}()
	return out, cancel, nil
}

// set assigns the items list for a student-visible kind.
func (b *Bundle) set(kind content.Kind, items []Item) {
	switch kind {
	case content.KindNotice:
		b.Notices = items
	case content.KindLink:
		b.Links = items
	case content.KindClassContent:
		b.ClassContents = items
	case content.KindBookContent:
		b.BookContents = items
	}
}

// onlyActive drops inactive items; the query already excludes them,
// this is defense in depth against a store impl that does not.
func onlyActive(items []content.Item) []content.Item {
	active := make([]content.Item, 0, len(items))
	for _, it := range items {
		if it.IsActive {
			active = append(active, it)
		}
	}
	return active
}

const previewLen = 200

func toItems(items []content.Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		out = append(out, Item{Item: it, Preview: preview(it.Body)})
	}
	return out
}

// preview renders the body's first previewLen characters as plain text.
func preview(body string) string {
	text := content.PlainText(body)
	if runes := []rune(text); len(runes) > previewLen {
		return string(runes[:previewLen]) + "…"
	}
	return text
}
