// internal/workers/ai-conversation/detect-intent/handler.go
package detectintent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/genai"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
)

const (
	TaskType = "detect-shopping-intent"
)

var (
	ErrIntentParsingFailed = errors.New("INTENT_PARSING_FAILED")
	ErrNoLLM               = errors.New("no LLM configured")
)

// defaultLLMConfidence is used when the model omits a confidence.
const defaultLLMConfidence = 0.8

type Handler struct {
	config  *Config
	llm     genai.ChatCompleter
	complex *regexp.Regexp
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

// NewHandler builds the detector. llm may be nil, in which case every message takes the keyword path.
func NewHandler(config *Config, llm genai.ChatCompleter, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		llm:     llm,
		complex: phrasePattern(config.ComplexPhrases),
		errors:  apperrors.NewErrorHandler(scoped),
		logger:  scoped,
	}
}

func phrasePattern(phrases []string) *regexp.Regexp {
	if len(phrases) == 0 {
		return nil
	}
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(p))
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}
	if strings.TrimSpace(input.Message) == "" {
		h.failJob(client, job, apperrors.NewInvalidInputError("message is required"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output := h.execute(ctx, &input)
	h.completeJob(client, job, output)
}

// Detect never fails; LLM problems degrade to the keyword extractor.
func (h *Handler) Detect(ctx context.Context, message string) models.Intent {
	return h.execute(ctx, &Input{Message: message}).Intent
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	return h.execute(ctx, input), nil
}

func (h *Handler) execute(ctx context.Context, input *Input) *Output {
	message := strings.TrimSpace(input.Message)

	if h.IsSimpleQuery(message) {
		metrics.IntentPaths.WithLabelValues(SourceFastPath).Inc()
		return &Output{Intent: Extract(message), Source: SourceFastPath}
	}

	intent, err := h.askLLM(ctx, message)
	if err != nil {
		metrics.IntentPaths.WithLabelValues(SourceFallback).Inc()
		h.logger.Warn("intent detection degraded to keyword extractor", map[string]interface{}{
			"error": err.Error(),
		})
		return &Output{Intent: Extract(message), Source: SourceFallback}
	}

	metrics.IntentPaths.WithLabelValues(SourceLLM).Inc()
	h.logger.Debug("intent detected", map[string]interface{}{
		"intentType": intent.IntentType,
		"category":   intent.CategoryName(),
		"confidence": intent.Confidence,
	})
	return &Output{Intent: intent, Source: SourceLLM}
}

// IsSimpleQuery reports a plain lookup ("show me mice", "laptops under 40k") that needs no LLM.
func (h *Handler) IsSimpleQuery(message string) bool {
	s := strings.ToLower(strings.TrimSpace(message))
	if s == "" {
		return true
	}
	if h.complex != nil && h.complex.MatchString(s) {
		return false
	}
	for _, prefix := range h.config.SimplePrefixes {
		p := strings.ToLower(prefix)
		if s == p || strings.HasPrefix(s, p+" ") {
			return true
		}
	}
	_, ok := DetectCategory(strings.Fields(s)[0])
	return ok
}

func (h *Handler) askLLM(ctx context.Context, message string) (models.Intent, error) {
	if h.llm == nil {
		return models.Intent{}, ErrNoLLM
	}

	completion, err := h.llm.Complete(ctx, genai.Request{
		Messages: []genai.Message{
			{Role: genai.RoleSystem, Content: systemPrompt},
			{Role: genai.RoleUser, Content: message},
		},
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return models.Intent{}, err
	}

	return ParseIntent(completion.Content, message)
}

// ParseIntent decodes an LLM reply into an Intent, repairing the budget against the original message.
func ParseIntent(reply, message string) (models.Intent, error) {
	raw := genai.ExtractJSON(reply, '{', '}')
	if raw == "" {
		return models.Intent{}, fmt.Errorf("%w: no JSON object in reply", ErrIntentParsingFailed)
	}
	if err := intentSchema.ValidateJSON([]byte(raw)).Err(); err != nil {
		return models.Intent{}, fmt.Errorf("%w: %w", ErrIntentParsingFailed, err)
	}

	var fields models.IntentFields
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return models.Intent{}, fmt.Errorf("%w: %w", ErrIntentParsingFailed, err)
	}

	if fields.Confidence == 0 {
		fields.Confidence = defaultLLMConfidence
	}
	fields.Budget = repairBudget(fields.Budget, message)
	return models.NewIntent(fields), nil
}

// repairBudget keeps the LLM budget unless it named a budget type but lost the figure.
func repairBudget(b models.Budget, message string) models.Budget {
	normalized := b.Normalized()
	if b.Type != "" && normalized.IsEmpty() {
		return models.ParseBudget(message)
	}
	return normalized
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":     job.Key,
		"source":     output.Source,
		"intentType": output.Intent.IntentType,
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err *apperrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(err.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, err)
}
