// internal/workers/catalog/match-products/handler.go
package matchproducts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/genai"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
)

const (
	TaskType = "match-products"
)

var (
	ErrCatalogUnavailable = errors.New("CATALOG_UNAVAILABLE")
)

type ReviewSource interface {
	ReviewStats(ctx context.Context, productID string) (models.ReviewStats, error)
}

type CatalogSource interface {
	ActiveProducts(ctx context.Context) ([]models.Product, error)
}

type Handler struct {
	config  *Config
	llm     genai.ChatCompleter
	reviews ReviewSource
	catalog CatalogSource
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

// NewHandler builds the matcher. llm, reviews and catalog may each be nil.
func NewHandler(config *Config, llm genai.ChatCompleter, reviews ReviewSource, catalog CatalogSource, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		llm:     llm,
		reviews: reviews,
		catalog: catalog,
		errors:  apperrors.NewErrorHandler(scoped),
		logger:  scoped,
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
		if stdErr, ok := apperrors.AsStandardError(err); ok {
			h.failJob(client, job, stdErr)
		} else {
			h.failJob(client, job, apperrors.NewCatalogUnavailableError(err))
		}
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	catalog := input.Products
	if len(catalog) == 0 {
		if h.catalog == nil {
			return nil, apperrors.NewCatalogUnavailableError(fmt.Errorf("%w: no catalog source", ErrCatalogUnavailable))
		}
		products, err := h.catalog.ActiveProducts(ctx)
		if err != nil {
			return nil, err
		}
		catalog = products
	}

	matches, strategy := h.match(ctx, models.NewIntent(input.Intent), catalog)
	if input.Limit > 0 && len(matches) > input.Limit {
		matches = matches[:input.Limit]
	}

	return &Output{
		Matches:  matches,
		Strategy: strategy,
		Count:    len(matches),
	}, nil
}

// Match ranks the catalog for intent. It never fails; scoring problems fall back to FallbackSearch.
func (h *Handler) Match(ctx context.Context, intent models.Intent, catalog []models.Product) []models.ProductMatch {
	matches, _ := h.match(ctx, intent, catalog)
	return matches
}

// IsSimpleSearch reports a category lookup, optionally with a budget, that needs no LLM ranking.
func IsSimpleSearch(intent models.Intent) bool {
	return intent.Category != nil && !intent.HasBrands() && !intent.HasFeatures()
}

func (h *Handler) match(ctx context.Context, intent models.Intent, catalog []models.Product) ([]models.ProductMatch, string) {
	if IsSimpleSearch(intent) || h.llm == nil {
		return h.FallbackSearch(ctx, intent, catalog), StrategyDeterministic
	}

	picked, err := h.scoreWithLLM(ctx, intent, catalog)
	if err != nil || len(picked) == 0 {
		fields := map[string]interface{}{"category": intent.CategoryName()}
		if err != nil {
			fields["error"] = err.Error()
		}
		h.logger.Warn("llm scoring unusable, using deterministic search", fields)
		return h.FallbackSearch(ctx, intent, catalog), StrategyLLMFallback
	}

	return h.enrich(ctx, picked), StrategyLLM
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
		"jobKey":   job.Key,
		"strategy": output.Strategy,
		"count":    output.Count,
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err *apperrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(err.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, err)
}
