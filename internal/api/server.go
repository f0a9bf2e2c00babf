package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"

	"github.com/samcharles93/strand/internal/generate"
)

const defaultMaxTokens = 128

// Server exposes the completion endpoints over a Completer.
type Server struct {
	service   Completer
	modelName string
	maxBatch  int
	limiter   *rate.Limiter
	clock     func() time.Time
}

type ServerConfig struct {
	ModelName string
	MaxBatch  int
	// RequestsPerSecond caps the accepted request rate; zero disables
	// limiting.
	RequestsPerSecond float64
	Burst             int
}

func NewServer(service Completer, cfg ServerConfig) *Server {
	s := &Server{
		service:   service,
		modelName: cfg.ModelName,
		maxBatch:  cfg.MaxBatch,
		clock:     time.Now,
	}
	if s.modelName == "" {
		s.modelName = "strand"
	}
	if s.maxBatch <= 0 {
		s.maxBatch = 1
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/completions", s.handleCompletions)
	e.GET("/v1/models", s.handleListModels)
	e.GET("/healthz", s.handleHealth)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListModels(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{
			{
				"id":       s.modelName,
				"object":   "model",
				"created":  s.clock().Unix(),
				"owned_by": "local",
			},
		},
	})
}

func (s *Server) handleCompletions(c *echo.Context) error {
	if s.limiter != nil && !s.limiter.Allow() {
		return writeError(c, http.StatusTooManyRequests, "rate_limit_error", "request rate limit exceeded", "", "")
	}
	if s.service == nil {
		return writeError(c, http.StatusInternalServerError, "server_error", "inference service not configured", "", "")
	}

	req, err := decodeJSON[CompletionRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	prompts, err := normalizePrompts(req.Prompt)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(prompts) == 0 {
		return writeBadRequest(c, "prompt is required and must not be empty")
	}
	if len(prompts) > s.maxBatch {
		return writeBadRequest(c, fmt.Sprintf("prompt count %d exceeds maximum batch size %d", len(prompts), s.maxBatch))
	}

	opts := generate.Options{
		Temperature:  0.8,
		TopP:         0.95,
		MaxNewTokens: defaultMaxTokens,
		Seed:         s.clock().UnixNano(),
	}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	if req.TopP != nil {
		opts.TopP = *req.TopP
	}
	if req.MaxTokens != nil {
		if *req.MaxTokens <= 0 {
			return writeBadRequest(c, "max_tokens must be positive")
		}
		opts.MaxNewTokens = *req.MaxTokens
	}
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}

	completionID := "cmpl-" + uuid.NewString()
	created := s.clock().Unix()
	model := req.Model
	if model == "" {
		model = s.modelName
	}

	result, err := s.service.Complete(c.Request().Context(), prompts, opts)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}

	choices := make([]CompletionChoice, len(result.Texts))
	for i, text := range result.Texts {
		reason := "length"
		if result.Finished[i] {
			reason = "stop"
		}
		choices[i] = CompletionChoice{
			Index:        i,
			Text:         text,
			FinishReason: &reason,
		}
	}

	return c.JSON(http.StatusOK, CompletionResponse{
		ID:      completionID,
		Object:  "text_completion",
		Created: created,
		Model:   model,
		Choices: choices,
		Usage: CompletionUsage{
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.Stats.TokensGenerated,
			TotalTokens:      result.PromptTokens + result.Stats.TokensGenerated,
		},
	})
}

// normalizePrompts accepts the OpenAI prompt field forms: a string or an
// array of strings.
func normalizePrompts(prompt any) ([]string, error) {
	switch v := prompt.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, raw := range v {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("prompt array elements must be strings")
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return v, nil
	default:
		return nil, fmt.Errorf("prompt must be a string or an array of strings")
	}
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
