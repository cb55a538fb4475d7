// internal/workers/catalog/match-products/models.go
package matchproducts

import "shopping-assistant/internal/models"

const (
	StrategyDeterministic = "deterministic"
	StrategyLLM           = "llm"
	StrategyLLMFallback   = "llm_fallback"
)

type Input struct {
	Intent models.IntentFields `json:"intent"`
	// Products is optional; the active catalog is loaded when it is empty.
	Products []models.Product `json:"products,omitempty"`
	Limit    int              `json:"limit,omitempty"`
}

type Output struct {
	Matches  []models.ProductMatch `json:"matches"`
	Strategy string                `json:"strategy"`
	Count    int                   `json:"count"`
}
