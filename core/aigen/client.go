// Package aigen adapts the third-party generative text endpoint used for
// AI-assisted document generation. The credential is supplied per request by
// the teacher and never stored.
package aigen

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ubao/core"
)

var (
	// errors
	ErrNotConfigured = errors.New("generation endpoint not configured")
	ErrGeneration    = errors.New("generation request failed")
)

type (
	// Request is one generation call. JSONOutput asks for the model's output
	// to be repaired into well-formed JSON before it is returned.
	Request struct {
		Prompt     string `json:"prompt" validate:"required,max=20000"`
		ModelID    string `json:"model_id" validate:"required,max=100"`
		APIKey     string `json:"api_key" validate:"required"`
		JSONOutput bool   `json:"json_output"`
	}

	Client struct {
		endpoint string
		http     *http.Client
		logger   core.Logger
	}

	generatePayload struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}

	generateResponse struct {
		Text string `json:"text"`
	}
)

func (r *Request) Validate(validate *validator.Validate) error {
	r.Prompt = core.CleanString(r.Prompt)
	r.ModelID = core.CleanString(r.ModelID)
	r.APIKey = core.CleanString(r.APIKey)
	return validate.Struct(r)
}

func NewClient(conf *core.Config, logger core.Logger) *Client {
	return &Client{
		endpoint: conf.AI.Endpoint,
		http:     &http.Client{Timeout: conf.AI.Timeout},
		logger:   logger,
	}
}

// Generate sends the prompt and returns the model's text output.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(generatePayload{Model: req.ModelID, Prompt: req.Prompt})
	if err != nil {
		return "", errors.Wrap(err, "encoding generation payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building generation request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	res, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "calling generation endpoint")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return "", errors.Wrapf(ErrGeneration, "status %d", res.StatusCode)
	}

	var out generateResponse
	if err = json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decoding generation response")
	}

	text := out.Text
	if req.JSONOutput {
		text = RepairJSON(text)
	}
	return text, nil
}
