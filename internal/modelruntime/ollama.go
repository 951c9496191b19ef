package modelruntime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/Niruuu2005/ZenKnowledgeForge/internal/logging"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/pipelineerrors"
	"github.com/Niruuu2005/ZenKnowledgeForge/internal/security"
)

// redactor masks secret-shaped substrings out of error text before it is
// logged. A raw Ollama error can echo back parts of the request (the
// model name is often embedded in a 404 body); callers never log the
// unredacted form.
var redactor = security.NewSecretRedactor()

// OllamaConfig configures the Ollama-backed ModelRuntimeClient. Grounded
// on the teacher's client.OllamaConfig; trimmed to the fields the core
// contract in spec.md §6 actually recognizes.
type OllamaConfig struct {
	BaseURL     string        // default http://localhost:11434
	HTTPTimeout time.Duration // caps the underlying http.Client; per-call deadlines still apply via context
}

// OllamaClient is the default ModelRuntimeClient implementation, talking
// to a local Ollama-compatible runtime over HTTP.
type OllamaClient struct {
	raw *api.Client
}

// NewOllamaClient builds a ModelRuntimeClient against cfg. A TLS-enforcing
// HTTP client is used even though the default base URL is plaintext
// localhost, matching the teacher's posture of always routing outbound
// HTTP through internal/security.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 1800 * time.Second
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("modelruntime: invalid base url %q: %w", cfg.BaseURL, err)
	}

	httpClient, err := security.CreateDefaultHTTPClient()
	if err != nil {
		httpClient = &http.Client{}
	}
	httpClient.Timeout = cfg.HTTPTimeout

	return &OllamaClient{raw: api.NewClient(base, httpClient)}, nil
}

// Generate implements Client.
func (c *OllamaClient) Generate(ctx context.Context, modelID, promptText string, temperature float64, maxTokens, numCtx int, repeatPenalty float64, topK int, topP float64, deadline time.Time) (string, error) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:  modelID,
		Prompt: promptText,
		Stream: &stream,
		Options: map[string]any{
			"temperature":    temperature,
			"num_ctx":        numCtx,
			"num_predict":    maxTokens,
			"repeat_penalty": repeatPenalty,
			"top_k":          topK,
			"top_p":          topP,
		},
		KeepAlive: &api.Duration{Duration: 0},
	}

	var response strings.Builder
	err := c.raw.Generate(ctx, req, func(chunk api.GenerateResponse) error {
		response.WriteString(chunk.Response)
		return nil
	})
	if err != nil {
		logging.Warn("model generate failed", "model", modelID, "error", redactor.Redact(err.Error()))
		return "", classifyError(modelID, err, ctx)
	}

	logging.Debug("model generate completed", "model", modelID, "response_bytes", response.Len())
	return response.String(), nil
}

// EnsurePresent implements Client.
func (c *OllamaClient) EnsurePresent(ctx context.Context, modelID string, deadline time.Time) error {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	resp, err := c.raw.List(ctx)
	if err != nil {
		logging.Warn("model list failed", "model", modelID, "error", redactor.Redact(err.Error()))
		return classifyError(modelID, err, ctx)
	}

	for _, m := range resp.Models {
		if m.Name == modelID || m.Name == modelID+":latest" || strings.HasPrefix(m.Name, modelID+":") {
			return nil
		}
	}
	return &pipelineerrors.ModelAbsent{ModelID: modelID}
}

// Unload implements Client.
func (c *OllamaClient) Unload(ctx context.Context, modelID string, deadline time.Time) error {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:     modelID,
		Prompt:    "",
		Stream:    &stream,
		KeepAlive: &api.Duration{Duration: 0},
	}

	err := c.raw.Generate(ctx, req, func(api.GenerateResponse) error { return nil })
	if err != nil {
		// A not-found model is already effectively unloaded.
		var absent *pipelineerrors.ModelAbsent
		if classified := classifyError(modelID, err, ctx); errors.As(classified, &absent) {
			return nil
		}
		logging.Warn("model unload failed", "model", modelID, "error", redactor.Redact(err.Error()))
		return classifyError(modelID, err, ctx)
	}
	return nil
}

// classifyError maps a raw Ollama SDK error onto the taxonomy in
// internal/pipelineerrors, mirroring the teacher's
// isRetryableError/wrapOllamaError string- and status-code-based
// heuristics.
func classifyError(modelID string, err error, ctx context.Context) error {
	if err == nil {
		return nil
	}

	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &pipelineerrors.RuntimeTimeout{ModelID: modelID}
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusNotFound {
			return &pipelineerrors.ModelAbsent{ModelID: modelID}
		}
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return &pipelineerrors.RuntimeUnavailable{ModelID: modelID, Cause: err}
		}
		return &pipelineerrors.RuntimeError{ModelID: modelID, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &pipelineerrors.RuntimeTimeout{ModelID: modelID}
		}
		return &pipelineerrors.RuntimeUnavailable{ModelID: modelID, Cause: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "eof"):
		return &pipelineerrors.RuntimeUnavailable{ModelID: modelID, Cause: err}
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return &pipelineerrors.RuntimeTimeout{ModelID: modelID}
	case strings.Contains(msg, "not found") && strings.Contains(msg, "model"):
		return &pipelineerrors.ModelAbsent{ModelID: modelID}
	default:
		return &pipelineerrors.RuntimeError{ModelID: modelID, Cause: err}
	}
}
