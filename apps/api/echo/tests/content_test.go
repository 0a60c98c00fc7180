package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ubao/core/content"
)

var errNotFound = httpErr{Error: "not found"}

func decodeItem(t *testing.T, body []byte) content.Item {
	t.Helper()

	var item content.Item
	if err := json.Unmarshal(body, &item); err != nil {
		t.Fatalf("decodeItem() failed: %v", err)
	}
	return item
}

func Test_contentApi_authRequired(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{name: "list", method: http.MethodGet, path: "/api/content/notice"},
		{name: "create", method: http.MethodPost, path: "/api/content/notice"},
		{name: "retrieve", method: http.MethodGet, path: "/api/content/notice/abc"},
		{name: "update", method: http.MethodPut, path: "/api/content/notice/abc"},
		{name: "delete", method: http.MethodDelete, path: "/api/content/notice/abc"},
		{name: "set active", method: http.MethodPut, path: "/api/content/notice/abc/active"},
	}
	for _, tt := range tests {
		tt.wantCode = http.StatusUnauthorized
		tt.wantData = marchallObj(t, errMissingToken)

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_contentApi_unknownKind(t *testing.T) {
	app := setup(t)
	token := getToken(t, banza)

	tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
	req, rec := newAuthRequest(http.MethodGet, "/api/content/homework", token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

func Test_contentApi_create(t *testing.T) {
	app := setup(t)
	token := getToken(t, banza)

	tests := []httpTest{
		{
			name:     "title required",
			path:     "/api/content/notice",
			body:     []byte(`{"body": "no title"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name:     "body required for notices",
			path:     "/api/content/notice",
			body:     []byte(`{"title": "Exam week"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"body": "this field is required"}),
		},
		{
			name:     "url required for links",
			path:     "/api/content/link",
			body:     []byte(`{"title": "Syllabus"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"url": "this field is required"}),
		},
		{
			name:     "url must be valid",
			path:     "/api/content/link",
			body:     []byte(`{"title": "Syllabus", "url": "lol"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"url": "url must be a valid URL"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("ok", func(t *testing.T) {
		body := []byte(`{"title": "Exam week", "body": "Bring pencils.", "priority": "HIGH"}`)
		req, rec := newAuthRequest(http.MethodPost, "/api/content/notice", token, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		item := decodeItem(t, rec.Body.Bytes())
		assert.NotEmpty(t, item.ID)
		assert.Equal(t, content.KindNotice, item.Kind)
		assert.Equal(t, "Exam week", item.Title)
		assert.Equal(t, "high", item.Priority, "priority is normalized")
		assert.True(t, item.IsActive, "new items publish immediately")
	})
}

func Test_contentApi_crud(t *testing.T) {
	app := setup(t)
	token := getToken(t, banza)

	req, rec := newAuthRequest(http.MethodPost, "/api/content/notice", token, []byte(`{"title": "Exam week", "body": "Bring pencils."}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	item := decodeItem(t, rec.Body.Bytes())

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/content/notice/"+item.ID, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, item.ID, decodeItem(t, rec.Body.Bytes()).ID)
	})

	t.Run("kind scopes lookups", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
		req, rec := newAuthRequest(http.MethodGet, "/api/content/event/"+item.ID, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("update cannot strip the body", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"body": "this field is required"}),
		}
		req, rec := newAuthRequest(http.MethodPut, "/api/content/notice/"+item.ID, token, []byte(`{"body": ""}`))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/api/content/notice/"+item.ID, token, []byte(`{"body": "Bring pencils and a ruler."}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		updated := decodeItem(t, rec.Body.Bytes())
		assert.Equal(t, "Bring pencils and a ruler.", updated.Body)
		assert.Equal(t, "Exam week", updated.Title, "untouched fields keep their value")
	})

	t.Run("set active", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"is_active": "this field is required"}),
		}
		req, rec := newAuthRequest(http.MethodPut, "/api/content/notice/"+item.ID+"/active", token, []byte(`{}`))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)

		req, rec = newAuthRequest(http.MethodPut, "/api/content/notice/"+item.ID+"/active", token, []byte(`{"is_active": false}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeItem(t, rec.Body.Bytes()).IsActive)
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/content/notice", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var items []content.Item
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
		require.Len(t, items, 1, "teachers see unpublished items too")
		assert.Equal(t, item.ID, items[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/content/notice/"+item.ID, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}
		req, rec = newAuthRequest(http.MethodGet, "/api/content/notice/"+item.ID, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)

		req, rec = newAuthRequest(http.MethodDelete, "/api/content/notice/"+item.ID, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
