// internal/workers/ai-conversation/chat-turn/models.go
package chatturn

import (
	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/genai"
	"shopping-assistant/internal/models"
)

// Reply sources, also the label of metrics.AssistantTurns.
const (
	SourceAI       = "ai"
	SourceFAQ      = "faq"
	SourceOrder    = "order"
	SourceFallback = "fallback"
	SourceConsent  = "consent"
	SourceError    = "error"
)

const (
	ErrorConsentDenied = string(apperrors.ErrCodeConsentDenied)
	ErrorInvalidInput  = string(apperrors.ErrCodeInvalidInput)
	ErrorRateLimited   = "RATE_LIMITED"
	ErrorLLMFailed     = string(apperrors.ErrCodeLLMRequestFailed)
	ErrorCancelled     = string(apperrors.ErrCodeCancelled)
	ErrorOrderLookup   = string(apperrors.ErrCodeQueryExecutionFailed)
)

type ChatRequest struct {
	Messages        []models.Message        `json:"messages"`
	UserID          string                  `json:"userId,omitempty"`
	UserPreferences *models.UserPreferences `json:"userPreferences,omitempty"`
	// StoreInfo overrides the configured store profile for this turn.
	StoreInfo *models.StoreInfo `json:"storeInfo,omitempty"`
}

type ChatResult struct {
	Success         bool                  `json:"success"`
	Message         string                `json:"message"`
	Intent          *models.Intent        `json:"intent,omitempty"`
	MatchedProducts []models.ProductMatch `json:"matchedProducts"`
	Usage           *genai.Usage          `json:"usage,omitempty"`
	Error           string                `json:"error,omitempty"`
	Source          string                `json:"source"`
	TurnID          string                `json:"turnId"`
}

type Input = ChatRequest

type Output = ChatResult
