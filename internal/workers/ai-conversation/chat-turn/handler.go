// internal/workers/ai-conversation/chat-turn/handler.go
package chatturn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/fallback"
	"shopping-assistant/internal/common/genai"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
	composeprompt "shopping-assistant/internal/workers/ai-conversation/compose-prompt"
	detectintent "shopping-assistant/internal/workers/ai-conversation/detect-intent"
	"shopping-assistant/pkg/registry"
)

const (
	TaskType = "chat-turn"
)

type ConsentSource interface {
	AIConsent(ctx context.Context, userID string) (*bool, error)
}

type OrderStore interface {
	FindOrder(ctx context.Context, userID, orderNumber string) (*models.Order, error)
	CancelOrder(ctx context.Context, userID string, order *models.Order) error
}

type CatalogSource interface {
	ActiveProducts(ctx context.Context) ([]models.Product, error)
}

// FAQSearcher is satisfied by storefront.FAQIndex.
type FAQSearcher interface {
	Search(ctx context.Context, query string, limit int) []models.FAQ
	Static() []models.FAQ
}

type IntentDetector interface {
	Detect(ctx context.Context, message string) models.Intent
}

type ProductMatcher interface {
	Match(ctx context.Context, intent models.Intent, catalog []models.Product) []models.ProductMatch
}

type SignalGatherer interface {
	Gather(ctx context.Context, userID string) models.UserIntelligence
}

// Dependencies wires the pipeline stages. Any of them may be nil: a missing stage is skipped,
// intents fall back to keyword extraction and a missing LLM fails the turn.
type Dependencies struct {
	LLM     genai.ChatCompleter
	Consent ConsentSource
	Orders  OrderStore
	Catalog CatalogSource
	FAQs    FAQSearcher
	Intents IntentDetector
	Matcher ProductMatcher
	Signals SignalGatherer
	// Tracer defaults to the global provider.
	Tracer trace.Tracer
}

type Handler struct {
	config  *Config
	llm     genai.ChatCompleter
	consent ConsentSource
	orders  OrderStore
	catalog CatalogSource
	faqs    FAQSearcher
	intents IntentDetector
	matcher ProductMatcher
	signals SignalGatherer
	tracer  trace.Tracer
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, deps Dependencies, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("shopping-assistant/chat")
	}
	return &Handler{
		config:  config,
		llm:     deps.LLM,
		consent: deps.Consent,
		orders:  deps.Orders,
		catalog: deps.Catalog,
		faqs:    deps.FAQs,
		intents: deps.Intents,
		matcher: deps.Matcher,
		signals: deps.Signals,
		tracer:  tracer,
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

	// failed turns complete the job too; the process branches on success
	result := h.Chat(context.Background(), input)
	h.completeJob(client, job, result)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	return h.Chat(ctx, *input), nil
}

// Chat runs one conversation turn. It never fails: every problem is reported inside the result.
func (h *Handler) Chat(ctx context.Context, req ChatRequest) *ChatResult {
	start := time.Now()
	turnID := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	ctx, span := h.tracer.Start(ctx, "chat.turn", trace.WithAttributes(
		attribute.String("chat.turn_id", turnID),
		attribute.Bool("chat.authenticated", req.UserID != ""),
	))
	defer span.End()

	result := h.chat(ctx, req)
	if result.MatchedProducts == nil {
		result.MatchedProducts = []models.ProductMatch{}
	}
	result.TurnID = turnID

	span.SetAttributes(attribute.String("chat.source", result.Source), attribute.Bool("chat.success", result.Success))
	if !result.Success {
		span.SetStatus(codes.Error, result.Error)
	}
	metrics.AssistantTurns.WithLabelValues(result.Source).Inc()
	h.logger.Info("chat turn finished", map[string]interface{}{
		"turnId":     turnID,
		"source":     result.Source,
		"success":    result.Success,
		"error":      result.Error,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return result
}

func (h *Handler) chat(ctx context.Context, req ChatRequest) *ChatResult {
	msgs := h.config.Messages

	if h.consentDenied(ctx, req.UserID) {
		refusal := apperrors.NewConsentDeniedError(req.UserID)
		h.logger.Info("turn refused", map[string]interface{}{
			"code":     refusal.Code,
			"category": apperrors.GetErrorCategory(refusal.Code),
			"details":  refusal.Details,
		})
		return h.failure(string(refusal.Code), msgs.ConsentRefusal, SourceConsent)
	}

	message, ok := models.LastUserMessage(req.Messages)
	if !ok {
		return h.failure(ErrorInvalidInput, msgs.InvalidInput, SourceError)
	}
	if cancelled(ctx) {
		return h.cancelledResult()
	}

	store := h.config.Store
	if req.StoreInfo != nil {
		store = *req.StoreInfo
	}

	faqs, early := h.preclassify(ctx, req.UserID, message, store)
	if early != nil {
		return early
	}
	if cancelled(ctx) {
		return h.cancelledResult()
	}

	intent := h.detectIntent(ctx, message)
	build := intent.IsBuildRequest() || isBuildMessage(message)

	user := h.gatherSignals(ctx, req.UserID)
	catalog, products := h.selectProducts(ctx, intent, build)
	if cancelled(ctx) {
		return h.cancelledResult()
	}

	prompt := composeprompt.Compose(composeprompt.ComposeInput{
		Products:    products,
		Preferences: req.UserPreferences,
		Store:       store,
		User:        &user,
		Intent:      &intent,
		FAQs:        faqs,
		BuildMode:   build,
	})

	completion, err := h.complete(ctx, prompt, req.Messages)
	if err != nil {
		return h.llmFailure(ctx, err, &intent, build, message, catalog, store)
	}

	var cards []models.ProductMatch
	if wantsCards(intent, build) {
		cards = products
		if h.config.MaxCards > 0 && len(cards) > h.config.MaxCards {
			cards = cards[:h.config.MaxCards]
		}
	}

	usage := completion.Usage
	return &ChatResult{
		Success:         true,
		Message:         strings.TrimSpace(completion.Content),
		Intent:          &intent,
		MatchedProducts: cards,
		Usage:           &usage,
		Source:          SourceAI,
	}
}

// consentDenied reports an explicit opt-out. A missing flag or an unreadable store means consent was not refused.
func (h *Handler) consentDenied(ctx context.Context, userID string) bool {
	if userID == "" || h.consent == nil {
		return false
	}
	ctx, span := h.tracer.Start(ctx, "chat.consent")
	defer span.End()

	consent, err := h.consent.AIConsent(ctx, userID)
	if err != nil {
		metrics.SourceFallbacks.WithLabelValues("ai_consent").Inc()
		h.logger.Warn("consent lookup failed, continuing", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return false
	}
	return consent != nil && !*consent
}

// preclassify answers FAQ and order messages that need no model. It returns the FAQs found for the prompt,
// or a finished result.
func (h *Handler) preclassify(ctx context.Context, userID, message string, store models.StoreInfo) ([]models.FAQ, *ChatResult) {
	ctx, span := h.tracer.Start(ctx, "chat.preclassify")
	defer span.End()

	if action, number := classifyOrder(message); action != orderNone {
		span.SetAttributes(attribute.String("chat.route", "order"))
		return nil, h.handleOrder(ctx, userID, action, number, store)
	}

	defect := isDefectReport(message)
	if h.faqs == nil || (!defect && !isFAQQuestion(message)) {
		return nil, nil
	}
	span.SetAttributes(attribute.String("chat.route", "faq"))

	if defect {
		if f, ok := registry.WarrantyFAQ(h.faqs.Static()); ok {
			return nil, &ChatResult{Success: true, Message: f.Answer, Source: SourceFAQ}
		}
	}

	found := h.faqs.Search(ctx, message, h.config.FAQLimit)
	if defect {
		if f, ok := registry.WarrantyFAQ(found); ok {
			return nil, &ChatResult{Success: true, Message: f.Answer, Source: SourceFAQ}
		}
	}
	return found, nil
}

func (h *Handler) detectIntent(ctx context.Context, message string) models.Intent {
	ctx, span := h.tracer.Start(ctx, "chat.intent")
	defer span.End()

	var intent models.Intent
	if h.intents != nil {
		intent = h.intents.Detect(ctx, message)
	} else {
		intent = detectintent.Extract(message)
	}
	span.SetAttributes(
		attribute.String("intent.type", string(intent.IntentType)),
		attribute.String("intent.category", intent.CategoryName()),
	)
	return intent
}

func (h *Handler) gatherSignals(ctx context.Context, userID string) models.UserIntelligence {
	if userID == "" || h.signals == nil {
		return models.NewUserIntelligence()
	}
	ctx, span := h.tracer.Start(ctx, "chat.signals")
	defer span.End()
	return h.signals.Gather(ctx, userID)
}

// selectProducts loads the catalog and picks what the prompt lists. A catalog failure leaves both empty.
func (h *Handler) selectProducts(ctx context.Context, intent models.Intent, build bool) ([]models.Product, []models.ProductMatch) {
	ctx, span := h.tracer.Start(ctx, "chat.products")
	defer span.End()

	catalog := []models.Product{}
	if h.catalog != nil {
		catalog = fallback.Fetch(ctx, h.logger, "catalog", []models.Product{}, h.catalog.ActiveProducts)
	}

	var products []models.ProductMatch
	switch {
	case build:
		products = BuildComponents(catalog, h.config.BuildPerCategory)
	case wantsCards(intent, false) && h.matcher != nil:
		products = h.matcher.Match(ctx, intent, catalog)
	default:
		products = firstProducts(catalog, h.config.GeneralProducts)
	}

	span.SetAttributes(attribute.Int("chat.catalog_size", len(catalog)), attribute.Int("chat.products", len(products)))
	return catalog, products
}

func (h *Handler) complete(ctx context.Context, prompt string, history []models.Message) (*genai.Completion, error) {
	ctx, span := h.tracer.Start(ctx, "chat.llm")
	defer span.End()

	if h.llm == nil {
		return nil, apperrors.NewLLMRequestFailedError(errors.New("no chat model configured"))
	}

	messages := []genai.Message{{Role: genai.RoleSystem, Content: prompt}}
	for _, m := range models.RecentTurns(history, h.config.HistoryTurns) {
		role := genai.RoleUser
		if m.Sender == models.SenderAssistant {
			role = genai.RoleAssistant
		}
		messages = append(messages, genai.Message{Role: role, Content: m.Text})
	}

	completion, err := h.llm.Complete(ctx, genai.Request{
		Messages:    messages,
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err == nil && strings.TrimSpace(completion.Content) == "" {
		err = apperrors.NewLLMResponseInvalidError(errors.New("empty reply"))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("llm.total_tokens", completion.Usage.TotalTokens))
	return completion, nil
}

func (h *Handler) llmFailure(ctx context.Context, err error, intent *models.Intent, build bool, message string, catalog []models.Product, store models.StoreInfo) *ChatResult {
	msgs := h.config.Messages

	if cancelled(ctx) {
		return h.cancelledResult()
	}

	if genai.IsKeysExhausted(err) {
		if build {
			listing := FallbackBuildListing(catalog, models.ParseBudget(message), h.config.FallbackPerCategory,
				msgs.BuildFallbackNote, newFormatter(store.Currency))
			if listing != "" {
				h.logger.Warn("all API keys rate limited, serving build listing", nil)
				return &ChatResult{Success: true, Message: listing, Intent: intent, Source: SourceFallback}
			}
		}
		h.logger.Warn("all API keys rate limited", map[string]interface{}{"error": err.Error()})
		res := h.failure(ErrorRateLimited, msgs.RateLimited, SourceError)
		res.Intent = intent
		return res
	}

	h.logger.Error("chat completion failed", map[string]interface{}{
		"error":     err.Error(),
		"errorCode": string(apperrors.CodeOf(err)),
	})
	res := h.failure(ErrorLLMFailed, msgs.GenericFailure, SourceError)
	res.Intent = intent
	return res
}

func (h *Handler) failure(code, message, source string) *ChatResult {
	return &ChatResult{Success: false, Message: message, Error: code, Source: source}
}

func (h *Handler) cancelledResult() *ChatResult {
	return h.failure(ErrorCancelled, h.config.Messages.CancelledTurn, SourceError)
}

// cancelled reports that the caller gave up on the turn; an expired turn deadline is not a cancellation.
func cancelled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
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
		"jobKey":  job.Key,
		"success": output.Success,
		"source":  output.Source,
	})
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err *apperrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(err.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, err)
}
