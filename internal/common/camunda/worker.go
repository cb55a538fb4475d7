// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
)

type HandlerFunc func(client worker.JobClient, job entities.Job)

// JobRecorder receives per-job OTel measurements.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

// Instrument wraps a job handler with the active-jobs gauge, the duration histogram and the OTel recorder.
func Instrument(taskType string, handler HandlerFunc, recorder JobRecorder) HandlerFunc {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer func() {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			elapsed := time.Since(start)
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			if recorder != nil {
				recorder.RecordJobProcessed(context.Background(), taskType, "handled")
				recorder.RecordJobDuration(context.Background(), taskType, elapsed, "handled")
			}
		}()
		handler(client, job)
	}
}

// StartWorker opens a job worker for taskType unless the worker is disabled. It returns nil when disabled.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler HandlerFunc, recorder JobRecorder, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(Instrument(taskType, handler, recorder))).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jobWorker
}
