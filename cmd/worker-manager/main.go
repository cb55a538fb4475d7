// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shopping-assistant/internal/common/camunda"
	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/database"
	"shopping-assistant/internal/common/genai"
	commonhttp "shopping-assistant/internal/common/http"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/observability"
	"shopping-assistant/internal/storefront"
	chatturn "shopping-assistant/internal/workers/ai-conversation/chat-turn"
	composeprompt "shopping-assistant/internal/workers/ai-conversation/compose-prompt"
	detectintent "shopping-assistant/internal/workers/ai-conversation/detect-intent"
	gatherusersignals "shopping-assistant/internal/workers/ai-conversation/gather-user-signals"
	analyzeimage "shopping-assistant/internal/workers/catalog/analyze-image"
	matchproducts "shopping-assistant/internal/workers/catalog/match-products"
	queryelasticsearch "shopping-assistant/internal/workers/data-access/query-elasticsearch"
	querypostgresql "shopping-assistant/internal/workers/data-access/query-postgresql"
	"shopping-assistant/pkg/registry"
)

const serviceName = "shopping-assistant-workers"

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// workerTimeout is the handler deadline: the worker's configured timeout when present, otherwise def.
func workerTimeout(cfg *config.Config, taskType string, def time.Duration) time.Duration {
	if w, ok := cfg.Workers[taskType]; ok && w.Timeout > 0 {
		return config.GetDuration(w.Timeout)
	}
	return def
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog).With(map[string]interface{}{
		"service": serviceName,
		"version": cfg.App.Version,
	})

	zapLog.Info("Starting worker manager...", zap.String("environment", cfg.App.Environment))

	obs := observability.New(serviceName, 1.0, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Zeebe ---
	zc, err := camunda.Connect(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		ClientID:               cfg.Camunda.ClientID,
		ClientSecret:           cfg.Camunda.ClientSecret,
		AuthorizationServerURL: cfg.Camunda.AuthorizationServerURL,
		Audience:               cfg.Camunda.Audience,
	})
	if err != nil {
		zapLog.Fatal("zeebe client failed", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")
	if err := pg.CheckSchema(ctx, storefront.Tables...); err != nil {
		zapLog.Warn("storefront schema incomplete, affected queries will fail", zap.Error(err))
	}

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch ---
	// The FAQ index is optional: without it answers come from the store profile.
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Warn("elasticsearch unavailable, FAQ search uses the store profile", zap.Error(err))
		esClient = nil
	} else {
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Store profile and LLM ---
	profile, err := registry.LoadProfile(cfg.Assistant.StoreProfile)
	if err != nil {
		zapLog.Fatal("store profile load failed", zap.String("path", cfg.Assistant.StoreProfile), zap.Error(err))
	}
	if profile.Store.Currency == "" {
		profile.Store.Currency = cfg.Assistant.Currency
	}

	requestTimeout := config.GetDuration(cfg.Assistant.RequestTimeout)
	llm, err := genai.New(genai.Config{
		APIKeys:        cfg.Assistant.APIKeys,
		BaseURL:        cfg.Assistant.BaseURL,
		Model:          cfg.Assistant.Model,
		Temperature:    cfg.Assistant.Temperature,
		MaxTokens:      cfg.Assistant.MaxTokens,
		RequestTimeout: requestTimeout,
	}, commonhttp.NewClient(requestTimeout+5*time.Second, serviceName+"/"+cfg.App.Version), log)
	if err != nil {
		zapLog.Fatal("llm client init failed", zap.Error(err))
	}
	zapLog.Info("LLM client ready",
		zap.String("model", cfg.Assistant.Model),
		zap.String("visionModel", cfg.Assistant.VisionModel),
		zap.Int("apiKeys", len(cfg.Assistant.APIKeys)),
	)

	store := storefront.New(pg.DB, rdb.Client, storefront.Config{
		CatalogTTL: time.Duration(cfg.Assistant.CatalogTTL) * time.Second,
	}, log)

	var faqs *storefront.FAQIndex
	if esClient != nil {
		faqs = storefront.NewFAQIndex(esClient.Client, cfg.Database.Elasticsearch.FAQIndex, profile.FAQs, log)
		created, err := esClient.EnsureIndex(ctx, faqs.Index(), storefront.FAQMapping)
		if err != nil {
			zapLog.Warn("faq index unavailable", zap.String("index", faqs.Index()), zap.Error(err))
		} else if created {
			// a fresh index starts from the store profile
			if _, err := faqs.Sync(ctx); err != nil {
				zapLog.Warn("faq index seed failed", zap.Error(err))
			}
		}
	} else {
		faqs = storefront.NewFAQIndex(nil, cfg.Database.Elasticsearch.FAQIndex, profile.FAQs, log)
	}

	// --- Handlers ---
	qpCfg := querypostgresql.LoadConfig()
	qpCfg.Timeout = workerTimeout(cfg, querypostgresql.TaskType, qpCfg.Timeout)
	queryHandler := querypostgresql.NewHandler(qpCfg, pg.DB, log)

	qeCfg := queryelasticsearch.LoadConfig()
	qeCfg.Timeout = workerTimeout(cfg, queryelasticsearch.TaskType, qeCfg.Timeout)
	faqHandler := queryelasticsearch.NewHandler(qeCfg, faqs, log)

	diCfg := detectintent.LoadConfig()
	diCfg.Timeout = workerTimeout(cfg, detectintent.TaskType, diCfg.Timeout)
	intentHandler := detectintent.NewHandler(diCfg, llm, log)

	mpCfg := matchproducts.LoadConfig()
	mpCfg.Timeout = workerTimeout(cfg, matchproducts.TaskType, mpCfg.Timeout)
	mpCfg.Currency = profile.Store.Currency
	matchHandler := matchproducts.NewHandler(mpCfg, llm, store, store, log)

	gsCfg := gatherusersignals.LoadConfig()
	gsCfg.Timeout = workerTimeout(cfg, gatherusersignals.TaskType, gsCfg.Timeout)
	signalsHandler := gatherusersignals.NewHandler(gsCfg, store, rdb.Client, log)

	cpCfg := composeprompt.LoadConfig()
	cpCfg.Timeout = workerTimeout(cfg, composeprompt.TaskType, cpCfg.Timeout)
	promptHandler := composeprompt.NewHandler(cpCfg, log)

	aiCfg := analyzeimage.LoadConfig()
	aiCfg.Timeout = workerTimeout(cfg, analyzeimage.TaskType, aiCfg.Timeout)
	aiCfg.Model = cfg.Assistant.VisionModel
	aiCfg.Provider = cfg.Assistant.VisionProvider
	visionHandler := analyzeimage.NewHandler(aiCfg, llm, store, log)

	ctCfg := chatturn.LoadConfig().WithProfile(profile)
	ctCfg.Timeout = config.GetDuration(cfg.Assistant.TurnTimeout)
	ctCfg.Temperature = cfg.Assistant.Temperature
	ctCfg.MaxTokens = cfg.Assistant.MaxTokens
	ctCfg.HistoryTurns = cfg.Assistant.HistoryTurns
	chatHandler := chatturn.NewHandler(ctCfg, chatturn.Dependencies{
		LLM:     llm,
		Consent: store,
		Orders:  store,
		Catalog: store,
		FAQs:    faqs,
		Intents: intentHandler,
		Matcher: matchHandler,
		Signals: signalsHandler,
		Tracer:  obs.Tracer("shopping-assistant/chat"),
	}, log)

	// --- Workers ---
	handlers := []struct {
		taskType string
		handle   camunda.HandlerFunc
	}{
		{querypostgresql.TaskType, queryHandler.Handle},
		{queryelasticsearch.TaskType, faqHandler.Handle},
		{detectintent.TaskType, intentHandler.Handle},
		{matchproducts.TaskType, matchHandler.Handle},
		{gatherusersignals.TaskType, signalsHandler.Handle},
		{composeprompt.TaskType, promptHandler.Handle},
		{analyzeimage.TaskType, visionHandler.Handle},
		{chatturn.TaskType, chatHandler.Handle},
	}

	var workers []worker.JobWorker
	for _, h := range handlers {
		w := camunda.StartWorker(zc.GetClient(), h.taskType, config.GetWorkerConfig(cfg, h.taskType), h.handle, obs, log)
		if w != nil {
			workers = append(workers, w)
		}
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	stores := map[string]database.Pinger{
		"postgres": pg,
		"redis":    rdb,
		"zeebe":    zc,
	}
	if esClient != nil {
		stores["elasticsearch"] = esClient
	}

	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           newMux(cfg, stores),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}
	for _, w := range workers {
		w.AwaitClose()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zc.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func newMux(cfg *config.Config, stores map[string]database.Pinger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", "")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := database.PingAll(ctx, stores); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable", err.Error())
			return
		}
		writeStatus(w, http.StatusOK, "ready", "")
	})
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}

func writeStatus(w http.ResponseWriter, code int, status, detail string) {
	body := map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if detail != "" {
		body["error"] = detail
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
