// internal/workers/data-access/query-postgresql/handler.go
package querypostgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/workers/data-access/query-postgresql/queries"
)

const (
	TaskType = "query-postgresql"
)

var (
	ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")
	ErrQueryTimeout         = errors.New("QUERY_TIMEOUT")
	ErrInvalidQueryType     = errors.New("INVALID_QUERY_TYPE")
)

type Handler struct {
	config *Config
	db     queries.Querier
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, db queries.Querier, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		db:     db,
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

	queryType := models.QueryType(input.QueryType)
	if _, exists := queries.Registry[queryType]; !exists {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQueryType, input.QueryType)
	}

	params := make(map[string]interface{})
	if input.UserID != "" {
		params["userId"] = input.UserID
	}
	if input.ProductID != "" {
		params["productId"] = input.ProductID
	}
	if len(input.ProductIDs) > 0 {
		params["productIds"] = input.ProductIDs
	}
	if input.OrderNumber != "" {
		params["orderNumber"] = input.OrderNumber
	}
	if input.Limit > 0 {
		limit := input.Limit
		if h.config.MaxRows > 0 && limit > h.config.MaxRows {
			limit = h.config.MaxRows
		}
		params["limit"] = limit
	}

	data, rowCount, execTime, err := queries.Execute(ctx, h.db, queryType, params)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrQueryTimeout
		}
		if errors.Is(err, queries.ErrMissingParam) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryExecutionFailed, err)
	}

	h.logger.Info("query executed", map[string]interface{}{
		"queryType": queryType,
		"rowCount":  rowCount,
		"ms":        execTime,
	})

	return &Output{
		QueryType:          input.QueryType,
		Data:               data,
		RowCount:           rowCount,
		QueryExecutionTime: execTime,
	}, nil
}

func (h *Handler) toStandardError(queryType string, err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrQueryTimeout):
		return apperrors.NewQueryTimeoutError(queryType)
	case errors.Is(err, ErrInvalidQueryType):
		return apperrors.NewInvalidQueryTypeError(queryType)
	case errors.Is(err, queries.ErrMissingParam):
		return apperrors.NewInvalidInputError(err.Error())
	case errors.Is(err, queries.ErrOrderNotFound):
		return apperrors.NewOrderNotFoundError(queryType)
	default:
		return apperrors.NewQueryExecutionFailedError(queryType, err)
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
