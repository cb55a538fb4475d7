// internal/workers/data-access/query-elasticsearch/handler.go
package queryelasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
)

const (
	TaskType = "query-elasticsearch"
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
	ErrInvalidQueryType  = errors.New("INVALID_QUERY_TYPE")
	ErrEmptyQuery        = errors.New("query is required")
)

// FAQSource is satisfied by storefront.FAQIndex.
type FAQSource interface {
	Lookup(ctx context.Context, query string, limit int) ([]models.FAQ, string)
	Sync(ctx context.Context) (int, error)
}

type Handler struct {
	config *Config
	faqs   FAQSource
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, faqs FAQSource, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		faqs:   faqs,
		errors: apperrors.NewErrorHandler(scoped),
		logger: scoped,
	}
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

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, h.toStandardError(input.QueryType, err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	start := time.Now()
	switch input.QueryType {
	case QueryTypeFAQSearch:
		query := strings.TrimSpace(input.Query)
		if query == "" {
			return nil, ErrEmptyQuery
		}
		faqs, source := h.faqs.Lookup(ctx, query, clampLimit(input.Limit))
		return &Output{
			Data:      faqs,
			TotalHits: len(faqs),
			Source:    source,
			Took:      time.Since(start).Milliseconds(),
		}, nil

	case QueryTypeFAQSync:
		n, err := h.faqs.Sync(ctx)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrSearchTimeout
			}
			return nil, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
		}
		h.logger.Info("faq index synced", map[string]interface{}{"count": n})
		return &Output{
			Data:      []models.FAQ{},
			TotalHits: n,
			Source:    "index",
			Took:      time.Since(start).Milliseconds(),
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrInvalidQueryType, input.QueryType)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

func (h *Handler) toStandardError(queryType string, err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return apperrors.NewInvalidInputError(err.Error())
	case errors.Is(err, ErrInvalidQueryType):
		return apperrors.NewInvalidQueryTypeError(queryType)
	case errors.Is(err, ErrSearchTimeout):
		return apperrors.NewQueryTimeoutError(queryType)
	default:
		return apperrors.NewSearchQueryFailedError(queryType, err)
	}
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
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err *apperrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(err.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
