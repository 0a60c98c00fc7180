package aigen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ubao/core"
)

func newClient(t *testing.T, endpoint string) *Client {
	t.Helper()

	conf := core.NewConfig()
	conf.AI.Endpoint = endpoint
	return NewClient(conf, core.NewStdLogger(nil))
}

func TestClient_generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var payload generatePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "model-1", payload.Model)
		assert.Equal(t, "write a quiz", payload.Prompt)

		_ = json.NewEncoder(w).Encode(generateResponse{Text: "Question 1: ..."})
	}))
	defer srv.Close()

	text, err := newClient(t, srv.URL).Generate(context.Background(), Request{
		Prompt:  "write a quiz",
		ModelID: "model-1",
		APIKey:  "sk-test",
	})
	require.NoError(t, err)
	assert.Equal(t, "Question 1: ...", text)
}

func TestClient_generate_jsonOutputGetsRepaired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Text: "```json\n{\"q\": 1,}\n```"})
	}))
	defer srv.Close()

	text, err := newClient(t, srv.URL).Generate(context.Background(), Request{
		Prompt:     "p",
		ModelID:    "m",
		APIKey:     "k",
		JSONOutput: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"q": 1}`, text)
}

func TestClient_generate_errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		_, err := newClient(t, "").Generate(context.Background(), Request{Prompt: "p", ModelID: "m", APIKey: "k"})
		assert.Equal(t, ErrNotConfigured, err)
	})

	t.Run("upstream failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := newClient(t, srv.URL).Generate(context.Background(), Request{Prompt: "p", ModelID: "m", APIKey: "k"})
		assert.Equal(t, ErrGeneration, errors.Cause(err))
	})
}
