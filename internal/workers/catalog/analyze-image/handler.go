// internal/workers/catalog/analyze-image/handler.go
package analyzeimage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/genai"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
)

const (
	TaskType = "analyze-product-image"
)

var (
	ErrNoVisionModel = errors.New("VISION_MODEL_UNAVAILABLE")
)

type CatalogSource interface {
	ActiveProducts(ctx context.Context) ([]models.Product, error)
}

type Handler struct {
	config  *Config
	llm     genai.ChatCompleter
	catalog CatalogSource
	tracer  trace.Tracer
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

// NewHandler builds the analyzer. catalog may be nil when callers always pass products.
func NewHandler(config *Config, llm genai.ChatCompleter, catalog CatalogSource, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		llm:     llm,
		catalog: catalog,
		tracer:  otel.Tracer("shopping-assistant/vision"),
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
			h.failJob(client, job, apperrors.NewVisionAnalysisFailedError(err))
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
	if h.llm == nil {
		return nil, apperrors.NewVisionAnalysisFailedError(ErrNoVisionModel)
	}

	img := ImageInput{URL: input.ImageURL, MimeType: input.MimeType}
	if img.URL == "" && input.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(input.ImageBase64)
		if err != nil {
			return nil, apperrors.NewInvalidInputError(fmt.Sprintf("imageBase64: %v", err))
		}
		img.Data = data
	}

	descriptor, err := h.Analyze(ctx, img, input.Hint)
	if err != nil {
		return nil, err
	}

	catalog := input.Products
	if len(catalog) == 0 && h.catalog != nil {
		products, err := h.catalog.ActiveProducts(ctx)
		if err != nil {
			// the descriptor alone is still useful to the caller
			h.logger.Warn("catalog unavailable, returning descriptor only", map[string]interface{}{
				"error": err.Error(),
			})
		}
		catalog = products
	}

	matches := MatchProducts(descriptor, catalog)
	h.logger.Debug("image analyzed", map[string]interface{}{
		"productType": descriptor.ProductType,
		"brand":       descriptor.Brand,
		"model":       descriptor.Model,
		"matches":     len(matches),
	})

	return &Output{Descriptor: descriptor, Matches: matches}, nil
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
		"jobKey":      job.Key,
		"productType": output.Descriptor.ProductType,
		"matches":     len(output.Matches),
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err *apperrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(err.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, err)
}
