package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/ubao/apps/api/echo"
)

func Test_authApi_signInWithGoogle(t *testing.T) {
	app := setup(t)

	t.Run("id token required", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"id_token": "this field is required"}),
		}
		req, rec := newRequest(http.MethodPost, "/api/auth/google", []byte(`{}`))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("rejected token", func(t *testing.T) {
		verifier.err = errors.New("provider said no")
		defer func() { verifier.err = nil }()

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		}
		req, rec := newRequest(http.MethodPost, "/api/auth/google", []byte(`{"id_token": "bad-token"}`))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("ok", func(t *testing.T) {
		verifier.teacher = banza

		req, rec := newRequest(http.MethodPost, "/api/auth/google", []byte(`{"id_token": "good-token"}`))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res echoapi.SignInResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, banza, res.Teacher)

		// the issued token unlocks teacher endpoints
		req, rec = newAuthRequest(http.MethodPost, "/api/session", res.Token, []byte(`{"class_name": "Form 2 Chemistry"}`))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})
}

func Test_authApi_signOut(t *testing.T) {
	app := setup(t)

	req, rec := newRequest(http.MethodPost, "/api/auth/signout")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
