// internal/workers/ai-conversation/gather-user-signals/handler.go
package gatherusersignals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/fallback"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
)

const (
	TaskType = "gather-user-signals"
)

// SignalSource is satisfied by storefront.Store.
type SignalSource interface {
	PurchaseHistory(ctx context.Context, userID string) ([]models.Order, error)
	OwnedComponents(ctx context.Context, userID string) ([]models.Product, error)
	TrendingProducts(ctx context.Context) ([]models.Product, error)
	ActivePromotions(ctx context.Context) ([]models.Voucher, error)
	RecentlyViewed(ctx context.Context, userID string) ([]models.Product, error)
}

type Handler struct {
	config      *Config
	store       SignalSource
	redisClient *redis.Client
	errors      *apperrors.ErrorHandler
	logger      logger.Logger
}

// NewHandler builds the gatherer. redisClient may be nil to disable caching.
func NewHandler(config *Config, store SignalSource, redisClient *redis.Client, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:      config,
		store:       store,
		redisClient: redisClient,
		errors:      apperrors.NewErrorHandler(scoped),
		logger:      scoped,
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

	output, err := h.Execute(ctx, &input)
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
	if input.UserID == "" {
		return &Output{UserData: models.NewUserIntelligence()}, nil
	}

	if data, ok := h.cached(ctx, input.UserID); ok {
		return &Output{UserData: data, Cached: true}, nil
	}

	data := h.Gather(ctx, input.UserID)
	h.cache(ctx, input.UserID, data)
	return &Output{UserData: data}, nil
}

// Gather fetches every signal concurrently. Each source fails on its own: a broken
// source leaves its field empty and never touches the others.
func (h *Handler) Gather(ctx context.Context, userID string) models.UserIntelligence {
	data := models.NewUserIntelligence()
	if userID == "" || h.store == nil {
		return data
	}

	var wg sync.WaitGroup
	wg.Add(5)
	go func() {
		defer wg.Done()
		data.PurchaseHistory = fallback.Fetch(ctx, h.logger, "purchase_history", []models.Order{},
			func(ctx context.Context) ([]models.Order, error) { return h.store.PurchaseHistory(ctx, userID) })
	}()
	go func() {
		defer wg.Done()
		data.UserComponents = fallback.Fetch(ctx, h.logger, "owned_components", []models.Product{},
			func(ctx context.Context) ([]models.Product, error) { return h.store.OwnedComponents(ctx, userID) })
	}()
	go func() {
		defer wg.Done()
		data.PopularProducts = fallback.Fetch(ctx, h.logger, "trending_products", []models.Product{},
			h.store.TrendingProducts)
	}()
	go func() {
		defer wg.Done()
		data.ActivePromotions = fallback.Fetch(ctx, h.logger, "active_promotions", []models.Voucher{},
			h.store.ActivePromotions)
	}()
	go func() {
		defer wg.Done()
		data.RecentlyViewed = fallback.Fetch(ctx, h.logger, "recently_viewed", []models.Product{},
			func(ctx context.Context) ([]models.Product, error) { return h.store.RecentlyViewed(ctx, userID) })
	}()
	wg.Wait()

	// a source may legitimately answer nil; keep the arrays-not-null contract
	if data.PurchaseHistory == nil {
		data.PurchaseHistory = []models.Order{}
	}
	if data.UserComponents == nil {
		data.UserComponents = []models.Product{}
	}
	if data.PopularProducts == nil {
		data.PopularProducts = []models.Product{}
	}
	if data.ActivePromotions == nil {
		data.ActivePromotions = []models.Voucher{}
	}
	if data.RecentlyViewed == nil {
		data.RecentlyViewed = []models.Product{}
	}
	return data
}

func cacheKey(userID string) string {
	return "ai:signals:" + userID
}

func (h *Handler) cached(ctx context.Context, userID string) (models.UserIntelligence, bool) {
	if h.redisClient == nil {
		return models.UserIntelligence{}, false
	}
	val, err := h.redisClient.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.logger.Warn("signal cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return models.UserIntelligence{}, false
	}
	data := models.NewUserIntelligence()
	if err := json.Unmarshal(val, &data); err != nil {
		return models.UserIntelligence{}, false
	}
	return data, true
}

func (h *Handler) cache(ctx context.Context, userID string, data models.UserIntelligence) {
	if h.redisClient == nil || h.config.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := h.redisClient.Set(ctx, cacheKey(userID), raw, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("signal cache write failed", map[string]interface{}{"error": err.Error()})
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
