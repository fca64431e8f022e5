// Package assistant is the client for the AI service that turns prompts into
// generated text. It speaks the Gemini generateContent REST API.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/promptcraft/internal/apperror"
)

const (
	// DefaultBaseURL is the public Generative Language API host.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "gemini-2.5-flash-lite"

	serviceName = "AI service"

	// maxResponseBytes caps how much of a response body we read.
	maxResponseBytes = 4 << 20
)

// errEmptyReply is returned when the API answers 200 without any text.
var errEmptyReply = errors.New("assistant: response contained no text")

// Config configures a Gemini client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // overridable for tests
}

// Gemini calls models/{model}:generateContent.
//
// The request deadline comes from the caller's context; the engine bounds
// every call with AI_TIMEOUT. The client never retries.
type Gemini struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string
}

// NewGemini creates a Gemini client.
func NewGemini(httpClient *http.Client, cfg Config, logger *slog.Logger) *Gemini {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Gemini{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     cfg.APIKey,
		endpoint:   fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, url.PathEscape(model)),
	}
}

// Wire format. Only the fields we read or write are declared.
type (
	part struct {
		Text string `json:"text"`
	}
	content struct {
		Parts []part `json:"parts"`
	}
	generateRequest struct {
		Contents []content `json:"contents"`
	}
	generateResponse struct {
		Candidates []struct {
			Content content `json:"content"`
		} `json:"candidates"`
	}
	errorResponse struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
)

// Complete sends prompt and returns the generated text of the first candidate.
//
// Errors are typed for the engine:
//   - HTTP 429 or status RESOURCE_EXHAUSTED → apperror.QuotaExhausted
//   - anything else (transport, non-2xx, malformed or empty body) → apperror.ExternalService
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("assistant: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("assistant: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", externalError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", externalError(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", g.statusError(resp.StatusCode, raw)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", externalError(fmt.Errorf("decoding response: %w", err))
	}

	text := firstText(out)
	if text == "" {
		return "", externalError(errEmptyReply)
	}
	return text, nil
}

// firstText concatenates the text parts of the first candidate.
func firstText(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func (g *Gemini) statusError(status int, raw []byte) error {
	var apiErr errorResponse
	_ = json.Unmarshal(raw, &apiErr) // best effort: the body may not be JSON

	if status == http.StatusTooManyRequests || apiErr.Error.Status == "RESOURCE_EXHAUSTED" {
		return quotaError()
	}

	g.logger.Error("AI service returned an error status",
		slog.Int("http_status", status),
		slog.String("api_status", apiErr.Error.Status),
		slog.String("api_message", apiErr.Error.Message),
	)
	return externalError(fmt.Errorf("status %d: %s", status, apiErr.Error.Message))
}

func externalError(cause error) error {
	return apperror.ExternalService(serviceName, cause)
}

func quotaError() error {
	return apperror.QuotaExhausted(serviceName)
}
