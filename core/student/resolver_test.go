package student

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ubao/core"
	"github.com/trezcool/ubao/core/content"
	"github.com/trezcool/ubao/core/session"
	"github.com/trezcool/ubao/storage/cache"
	inmemstore "github.com/trezcool/ubao/storage/document/inmem"
)

func setup(t *testing.T) (*Resolver, *session.Service, *content.Service) {
	t.Helper()

	conf := core.NewConfig()
	conf.TestMode = true

	store := inmemstore.NewStore()
	logger := core.NewStdLogger(nil)
	sessions := session.NewService(store, cache.NewMemCache(), conf, logger)
	contents := content.NewService(store, logger)
	return NewResolver(sessions, contents, conf, logger), sessions, contents
}

func createItem(t *testing.T, contents *content.Service, teacherID string, kind content.Kind, title string) content.Item {
	t.Helper()

	ni := content.NewItem{Title: title, Body: "some body"}
	if kind == content.KindLink {
		ni.Body = ""
		ni.URL = "https://example.org"
	}
	item, err := contents.Create(context.Background(), teacherID, kind, ni)
	if err != nil {
		t.Fatalf("createItem() failed: %v", err)
	}
	return item
}

func TestResolver_load(t *testing.T) {
	resolver, sessions, contents := setup(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "t1", "Mr. Banza", session.NewSession{ClassName: "Form 2 Chemistry"})
	require.NoError(t, err)

	createItem(t, contents, "t1", content.KindNotice, "Exam week")
	createItem(t, contents, "t1", content.KindLink, "Syllabus")
	createItem(t, contents, "t1", content.KindClassContent, "Balancing equations")
	createItem(t, contents, "t1", content.KindBookContent, "Chapter 4 summary")
	// teacher-private kinds never reach students
	createItem(t, contents, "t1", content.KindEvent, "PTA meeting")
	// another teacher's content stays out
	createItem(t, contents, "t2", content.KindNotice, "not yours")

	bundle, err := resolver.Load(ctx, sess.Code)
	require.NoError(t, err)

	assert.Equal(t, sess.Code, bundle.Session.Code)
	assert.Equal(t, "Mr. Banza", bundle.Session.TeacherName)
	assert.Equal(t, "Form 2 Chemistry", bundle.Session.ClassName)

	require.Len(t, bundle.Notices, 1)
	assert.Equal(t, "Exam week", bundle.Notices[0].Title)
	require.Len(t, bundle.Links, 1)
	require.Len(t, bundle.ClassContents, 1)
	require.Len(t, bundle.BookContents, 1)
}

func TestResolver_load_neverLeaksTeacherID(t *testing.T) {
	resolver, sessions, _ := setup(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "t1", "Mr. Banza", session.NewSession{ClassName: "Form 2 Chemistry"})
	require.NoError(t, err)

	bundle, err := resolver.Load(ctx, sess.Code)
	require.NoError(t, err)
	assert.Equal(t, PublicSession{
		Code:        sess.Code,
		TeacherName: "Mr. Banza",
		ClassName:   "Form 2 Chemistry",
		Settings:    session.DefaultSettings(),
	}, bundle.Session)
}

func TestResolver_load_unknownCode(t *testing.T) {
	resolver, _, _ := setup(t)

	_, err := resolver.Load(context.Background(), "ZZZZZZ")
	assert.Equal(t, session.ErrNotFound, err)
}

func TestResolver_load_inactiveFailsClosed(t *testing.T) {
	resolver, sessions, contents := setup(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "t1", "Mr. Banza", session.NewSession{ClassName: "Form 2 Chemistry"})
	require.NoError(t, err)
	createItem(t, contents, "t1", content.KindNotice, "Exam week")

	_, err = sessions.SetActive(ctx, "t1", false)
	require.NoError(t, err)

	_, err = resolver.Load(ctx, sess.Code)
	assert.Equal(t, session.ErrInactive, err)

	// reactivation restores the same code without data loss
	_, err = sessions.SetActive(ctx, "t1", true)
	require.NoError(t, err)

	bundle, err := resolver.Load(ctx, sess.Code)
	require.NoError(t, err)
	assert.Len(t, bundle.Notices, 1)
}

func TestResolver_load_honorsSettings(t *testing.T) {
	resolver, sessions, contents := setup(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "t1", "Mr. Banza", session.NewSession{ClassName: "Form 2 Chemistry"})
	require.NoError(t, err)
	createItem(t, contents, "t1", content.KindNotice, "Exam week")
	createItem(t, contents, "t1", content.KindLink, "Syllabus")

	off := false
	_, err = sessions.UpdateSettings(ctx, "t1", session.SettingsPatch{AllowLinks: &off})
	require.NoError(t, err)

	bundle, err := resolver.Load(ctx, sess.Code)
	require.NoError(t, err)
	assert.Len(t, bundle.Notices, 1)
	assert.Empty(t, bundle.Links, "disallowed kinds resolve to empty lists")
}

func TestResolver_load_filtersInactiveItems(t *testing.T) {
	resolver, sessions, contents := setup(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "t1", "Mr. Banza", session.NewSession{ClassName: "Form 2 Chemistry"})
	require.NoError(t, err)
	keep := createItem(t, contents, "t1", content.KindNotice, "keep")
	hide := createItem(t, contents, "t1", content.KindNotice, "hide")
	_, err = contents.SetActive(ctx, "t1", content.KindNotice, hide.ID, false)
	require.NoError(t, err)

	bundle, err := resolver.Load(ctx, sess.Code)
	require.NoError(t, err)
	require.Len(t, bundle.Notices, 1)
	assert.Equal(t, keep.ID, bundle.Notices[0].ID)
}

func TestResolver_load_previews(t *testing.T) {
	resolver, sessions, contents := setup(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "t1", "Mr. Banza", session.NewSession{ClassName: "Form 2 Chemistry"})
	require.NoError(t, err)

	_, err = contents.Create(ctx, "t1", content.KindNotice, content.NewItem{
		Title: "Exam week",
		Body:  "# Heads up\n**Bring pencils** on Monday.",
	})
	require.NoError(t, err)

	bundle, err := resolver.Load(ctx, sess.Code)
	require.NoError(t, err)
	require.Len(t, bundle.Notices, 1)
	assert.Equal(t, "Heads up\nBring pencils on Monday.", bundle.Notices[0].Preview)
}

func TestResolver_load_oldCodeStaysDeadAfterRegenerate(t *testing.T) {
	resolver, sessions, _ := setup(t)
	ctx := context.Background()

	sess, err := sessions.Create(ctx, "t1", "Mr. Banza", session.NewSession{ClassName: "Form 2 Chemistry"})
	require.NoError(t, err)

	fresh, err := sessions.Regenerate(ctx, "t1")
	require.NoError(t, err)

	_, err = resolver.Load(ctx, sess.Code)
	assert.Equal(t, session.ErrInactive, err)

	bundle, err := resolver.Load(ctx, fresh.Code)
	require.NoError(t, err)
	assert.Equal(t, fresh.Code, bundle.Session.Code)
}

func TestResolver_watch(t *testing.T) {
	resolver, sessions, contents := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := sessions.Create(ctx, "t1", "Mr. Banza", session.NewSession{ClassName: "Form 2 Chemistry"})
	require.NoError(t, err)

	bundles, unsub, err := resolver.Watch(ctx, sess.Code)
	require.NoError(t, err)
	defer unsub()

	recv := func() (Bundle, bool) {
		select {
		case b, ok := <-bundles:
			return b, ok
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for bundle")
			return Bundle{}, false
		}
	}

	// initial snapshot
	b, ok := recv()
	require.True(t, ok)
	assert.Empty(t, b.Notices)

	// content edits re-emit the bundle
	createItem(t, contents, "t1", content.KindNotice, "Exam week")
	for {
		b, ok = recv()
		require.True(t, ok, "stream ended before the new notice appeared")
		if len(b.Notices) == 1 {
			break
		}
	}

	// deactivation ends the stream
	_, err = sessions.SetActive(ctx, "t1", false)
	require.NoError(t, err)
	for ok {
		_, ok = recv()
	}
}

func TestResolver_watch_unknownOrInactive(t *testing.T) {
	resolver, sessions, _ := setup(t)
	ctx := context.Background()

	_, _, err := resolver.Watch(ctx, "ZZZZZZ")
	assert.Equal(t, session.ErrNotFound, err)

	sess, err := sessions.Create(ctx, "t1", "Mr. Banza", session.NewSession{ClassName: "Form 2 Chemistry"})
	require.NoError(t, err)
	_, err = sessions.SetActive(ctx, "t1", false)
	require.NoError(t, err)

	_, _, err = resolver.Watch(ctx, sess.Code)
	assert.Equal(t, session.ErrInactive, err)
}
