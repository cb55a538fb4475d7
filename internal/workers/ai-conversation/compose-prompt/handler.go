// internal/workers/ai-conversation/compose-prompt/handler.go
package composeprompt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
)

const (
	TaskType = "compose-prompt"
)

type Handler struct {
	config *Config
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
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

	output, err := h.Execute(context.Background(), &input)
	if err != nil {
		h.failJob(client, job, apperrors.NewInvalidInputError(err.Error()))
		return
	}
	h.completeJob(client, job, output)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	in := ComposeInput{
		Products:    input.Products,
		Preferences: input.Preferences,
		Store:       input.Store,
		User:        input.User,
		FAQs:        input.FAQs,
		BuildMode:   input.BuildMode,
	}
	if input.Intent != nil {
		intent := models.NewIntent(*input.Intent)
		in.Intent = &intent
	}

	prompt := Compose(in)
	return &Output{Prompt: prompt, Length: len(prompt)}, nil
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
		"jobKey": job.Key,
		"length": output.Length,
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err *apperrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(err.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, err)
}
