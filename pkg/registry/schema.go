// pkg/registry/schema.go
package registry

import "shopping-assistant/internal/models"

// StoreProfile is the static store description shipped with the deployment. Its FAQs back the
// assistant whenever the search index is unreachable.
type StoreProfile struct {
	Version     string            `json:"version"`
	LastUpdated string            `json:"lastUpdated"`
	Store       models.StoreInfo  `json:"store"`
	FAQs        []models.FAQ      `json:"faqs"`
	Messages    AssistantMessages `json:"messages"`
}

// AssistantMessages are the fixed customer-facing texts.
type AssistantMessages struct {
	ConsentRefusal    string `json:"consentRefusal"`
	RateLimited       string `json:"rateLimited"`
	GenericFailure    string `json:"genericFailure"`
	LoginRequired     string `json:"loginRequired"`
	AskOrderNumber    string `json:"askOrderNumber"`
	SupportRedirect   string `json:"supportRedirect"`
	RefundTimeline    string `json:"refundTimeline"`
	InvalidInput      string `json:"invalidInput"`
	CancelledTurn     string `json:"cancelledTurn"`
	BuildFallbackNote string `json:"buildFallbackNote"`
}
