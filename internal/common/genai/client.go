// Package genai is the OpenAI-compatible chat client with API key rotation on rate limiting.
package genai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
)

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

var (
	ErrAllKeysExhausted = stderrors.New("LLM_KEYS_EXHAUSTED")
	ErrNoAPIKeys        = stderrors.New("no API keys configured")
)

// ChatCompleter is what the pipeline stages depend on.
type ChatCompleter interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages []Message
	// Model overrides the client default, e.g. for the vision model.
	Model       string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
	// ImageURL is attached to the last user message as an image_url part.
	ImageURL string
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type Completion struct {
	Content  string `json:"content"`
	Model    string `json:"model"`
	Usage    Usage  `json:"usage"`
	KeyIndex int    `json:"keyIndex"`
	Attempts int    `json:"attempts"`
}

type Config struct {
	APIKeys        []string
	BaseURL        string
	Model          string
	Temperature    float64
	MaxTokens      int
	RequestTimeout time.Duration
}

// Client holds one go-openai client per key. The rotation cursor is shared by every
// concurrent caller and only moves forward through CompareAndSwap.
type Client struct {
	clients []*openai.Client
	cursor  atomic.Uint64
	config  Config
	tracer  trace.Tracer
	logger  logger.Logger
}

func New(cfg Config, httpClient openai.HTTPDoer, log logger.Logger) (*Client, error) {
	if len(cfg.APIKeys) == 0 {
		return nil, ErrNoAPIKeys
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	clients := make([]*openai.Client, len(cfg.APIKeys))
	for i, key := range cfg.APIKeys {
		oc := openai.DefaultConfig(key)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if httpClient != nil {
			oc.HTTPClient = httpClient
		}
		clients[i] = openai.NewClientWithConfig(oc)
	}

	return &Client{
		clients: clients,
		config:  cfg,
		tracer:  otel.Tracer("shopping-assistant/genai"),
		logger:  log.With(map[string]interface{}{"component": "genai"}),
	}, nil
}

// KeyIndex reports which key the next request will use.
func (c *Client) KeyIndex() int {
	return int(c.cursor.Load() % uint64(len(c.clients)))
}

// rotate advances the cursor past from. If another caller already moved it, their position wins.
func (c *Client) rotate(from uint64) uint64 {
	if c.cursor.CompareAndSwap(from, from+1) {
		metrics.LLMKeyRotations.Inc()
	}
	return c.cursor.Load()
}

// Complete sends one chat completion. A 429 rotates to the next key and retries, at most once per key.
// Other errors are returned without retry.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	ctx, span := c.tracer.Start(ctx, "genai.complete", trace.WithAttributes(
		attribute.String("llm.model", model),
		attribute.Bool("llm.json_mode", req.JSONMode),
		attribute.Bool("llm.vision", req.ImageURL != ""),
	))
	defer span.End()

	chatReq := c.buildRequest(model, req)
	n := len(c.clients)
	pos := c.cursor.Load()

	var lastErr error
	for attempt := 1; attempt <= n; attempt++ {
		keyIndex := int(pos % uint64(n))

		resp, err := c.call(ctx, keyIndex, chatReq)
		if err == nil {
			if len(resp.Choices) == 0 {
				metrics.LLMRequests.WithLabelValues("invalid").Inc()
				err := apperrors.NewLLMResponseInvalidError(stderrors.New("response has no choices"))
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			metrics.LLMRequests.WithLabelValues("success").Inc()
			span.SetAttributes(attribute.Int("llm.key_index", keyIndex), attribute.Int("llm.attempts", attempt))
			return &Completion{
				Content:  resp.Choices[0].Message.Content,
				Model:    resp.Model,
				KeyIndex: keyIndex,
				Attempts: attempt,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}, nil
		}

		if !IsRateLimited(err) {
			mapped := c.mapError(ctx, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, mapped.Error())
			return nil, mapped
		}

		metrics.LLMRequests.WithLabelValues("rate_limited").Inc()
		lastErr = apperrors.NewLLMRateLimitedError(keyIndex, err)
		c.logger.Warn("rate limited, rotating API key", map[string]interface{}{
			"keyIndex": keyIndex,
			"attempt":  attempt,
			"keys":     n,
			"error":    lastErr.Error(),
		})
		pos = c.rotate(pos)
	}

	metrics.LLMRequests.WithLabelValues("keys_exhausted").Inc()
	span.SetStatus(codes.Error, "all API keys exhausted")
	return nil, fmt.Errorf("%w: %w", ErrAllKeysExhausted, apperrors.NewLLMKeysExhaustedError(n, lastErr))
}

func (c *Client) call(ctx context.Context, keyIndex int, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	return c.clients[keyIndex].CreateChatCompletion(callCtx, req)
}

func (c *Client) buildRequest(model string, req Request) openai.ChatCompletionRequest {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.config.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}

	lastUser := -1
	if req.ImageURL != "" {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == RoleUser {
				lastUser = i
				break
			}
		}
	}

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		if i == lastUser {
			msgs[i] = openai.ChatCompletionMessage{
				Role: m.Role,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: m.Content},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    req.ImageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			}
			continue
		}
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	out := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
	}
	if req.JSONMode {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return out
}

func (c *Client) mapError(ctx context.Context, err error) error {
	switch {
	case stderrors.Is(ctx.Err(), context.Canceled):
		metrics.LLMRequests.WithLabelValues("cancelled").Inc()
		return apperrors.NewCancelledError(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		metrics.LLMRequests.WithLabelValues("timeout").Inc()
		return apperrors.NewLLMTimeoutError(err)
	default:
		metrics.LLMRequests.WithLabelValues("error").Inc()
		return apperrors.NewLLMRequestFailedError(err).WithMetadata("httpStatus", StatusCode(err))
	}
}

// StatusCode extracts the provider HTTP status from a go-openai error, or 0.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

// IsKeysExhausted reports whether every configured key was rate limited.
func IsKeysExhausted(err error) bool {
	return stderrors.Is(err, ErrAllKeysExhausted)
}

var fencePattern = regexp.MustCompile("```(?:json|JSON)?\\s*([\\s\\S]*?)\\s*```")

// StripCodeFences returns the body of the first fenced block, or the trimmed input when there is none.
func StripCodeFences(s string) string {
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// ExtractJSON strips fences and trims any prose around the outermost open...close pair.
func ExtractJSON(s string, open, close byte) string {
	s = StripCodeFences(s)
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
