package tests

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/ubao/apps/api/echo"
	"github.com/trezcool/ubao/core/teacher"
	emailsvc "github.com/trezcool/ubao/services/email"
)

var (
	codeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)

	banza = teacher.Teacher{ID: "g-123", Name: "Mr. Banza", Email: "banza@example.org"}
)

func decodeSession(t *testing.T, body []byte) echoapi.SessionResponse {
	t.Helper()

	var res echoapi.SessionResponse
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decodeSession() failed: %v", err)
	}
	return res
}

func Test_sessionApi_authRequired(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{name: "get", method: http.MethodGet, path: "/api/session"},
		{name: "create", method: http.MethodPost, path: "/api/session"},
		{name: "set active", method: http.MethodPut, path: "/api/session/active"},
		{name: "update settings", method: http.MethodPut, path: "/api/session/settings"},
		{name: "regenerate", method: http.MethodPost, path: "/api/session/regenerate"},
		{name: "share", method: http.MethodPost, path: "/api/session/share"},
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

func Test_sessionApi_create(t *testing.T) {
	app := setup(t)
	token := getToken(t, banza)

	t.Run("class name required", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"class_name": "this field is required"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/api/session", token, []byte(`{}`))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/session", token, []byte(`{"class_name": "Form 2 Chemistry"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		res := decodeSession(t, rec.Body.Bytes())
		assert.Regexp(t, codeRegex, res.Code)
		assert.Equal(t, banza.ID, res.TeacherID)
		assert.Equal(t, "Mr. Banza", res.TeacherName)
		assert.Equal(t, "Form 2 Chemistry", res.ClassName)
		assert.True(t, res.IsActive)
		assert.True(t, strings.HasSuffix(res.StudentURL, "/student/"+res.Code), res.StudentURL)

		// current session round-trips
		req, rec = newAuthRequest(http.MethodGet, "/api/session", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, res.Code, decodeSession(t, rec.Body.Bytes()).Code)
	})

	t.Run("new session retires the previous code", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/session", token)
		app.ServeHTTP(rec, req)
		prev := decodeSession(t, rec.Body.Bytes())

		req, rec = newAuthRequest(http.MethodPost, "/api/session", token, []byte(`{"class_name": "Form 4 Physics"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		next := decodeSession(t, rec.Body.Bytes())
		assert.NotEqual(t, prev.Code, next.Code)

		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errInvalidCode)}
		req, rec = newRequest(http.MethodGet, "/api/student/"+prev.Code)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_sessionApi_noSessionYet(t *testing.T) {
	app := setup(t)
	token := getToken(t, banza)

	tests := []httpTest{
		{name: "get", method: http.MethodGet, path: "/api/session"},
		{name: "set active", method: http.MethodPut, path: "/api/session/active", body: []byte(`{"is_active": true}`)},
		{name: "update settings", method: http.MethodPut, path: "/api/session/settings", body: []byte(`{"allow_links": false}`)},
		{name: "regenerate", method: http.MethodPost, path: "/api/session/regenerate"},
		{name: "share", method: http.MethodPost, path: "/api/session/share", body: []byte(`{"email": "mom@example.org"}`)},
	}
	for _, tt := range tests {
		tt.wantCode = http.StatusNotFound
		tt.wantData = marchallObj(t, errNoSession)

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_sessionApi_setActive(t *testing.T) {
	app := setup(t)
	token := getToken(t, banza)

	req, rec := newAuthRequest(http.MethodPost, "/api/session", token, []byte(`{"class_name": "Form 2 Chemistry"}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decodeSession(t, rec.Body.Bytes())

	t.Run("flag required", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"is_active": "this field is required"}),
		}
		req, rec := newAuthRequest(http.MethodPut, "/api/session/active", token, []byte(`{}`))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("pause then resume", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/api/session/active", token, []byte(`{"is_active": false}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeSession(t, rec.Body.Bytes()).IsActive)

		// the student page fails closed while paused
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errInvalidCode)}
		req, rec = newRequest(http.MethodGet, "/api/student/"+sess.Code)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)

		req, rec = newAuthRequest(http.MethodPut, "/api/session/active", token, []byte(`{"is_active": true}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		resumed := decodeSession(t, rec.Body.Bytes())
		assert.True(t, resumed.IsActive)
		assert.Equal(t, sess.Code, resumed.Code, "the same code survives a pause")
	})
}

func Test_sessionApi_updateSettings(t *testing.T) {
	app := setup(t)
	token := getToken(t, banza)

	req, rec := newAuthRequest(http.MethodPost, "/api/session", token, []byte(`{"class_name": "Form 2 Chemistry"}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	req, rec = newAuthRequest(http.MethodPut, "/api/session/settings", token, []byte(`{"allow_links": false}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeSession(t, rec.Body.Bytes())
	assert.False(t, res.Settings.AllowLinks)
	assert.True(t, res.Settings.AllowNotices, "untouched flags keep their value")
}

func Test_sessionApi_regenerate(t *testing.T) {
	app := setup(t)
	token := getToken(t, banza)

	req, rec := newAuthRequest(http.MethodPost, "/api/session", token, []byte(`{"class_name": "Form 2 Chemistry"}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decodeSession(t, rec.Body.Bytes())

	req, rec = newAuthRequest(http.MethodPost, "/api/session/regenerate", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	fresh := decodeSession(t, rec.Body.Bytes())
	assert.Regexp(t, codeRegex, fresh.Code)
	assert.NotEqual(t, sess.Code, fresh.Code)
	assert.Equal(t, "Form 2 Chemistry", fresh.ClassName)

	// the retired code is gone for students
	tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errInvalidCode)}
	req, rec = newRequest(http.MethodGet, "/api/student/"+sess.Code)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}

func Test_sessionApi_share(t *testing.T) {
	app := setup(t)
	token := getToken(t, banza)

	req, rec := newAuthRequest(http.MethodPost, "/api/session", token, []byte(`{"class_name": "Form 2 Chemistry"}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decodeSession(t, rec.Body.Bytes())

	t.Run("email required", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/api/session/share", token, []byte(`{}`))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("ok", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/session/share", token, []byte(`{"email": "mom@example.org"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		// messages go out asynchronously
		var sent bool
		for i := 0; i < 50 && !sent; i++ {
			time.Sleep(10 * time.Millisecond)
			sent = len(emailsvc.GetSentMessages()) > 0
		}
		require.True(t, sent, "share email was never sent")

		msg := emailsvc.GetSentMessages()[0]
		assert.Equal(t, "mom@example.org", msg.To[0].Address)
		assert.Contains(t, msg.Subject, "Mr. Banza")
		assert.Contains(t, msg.TextContent, sess.Code)
		assert.Contains(t, msg.TextContent, "/student/"+sess.Code)
	})
}
