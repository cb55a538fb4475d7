// internal/workers/catalog/match-products/config.go
package matchproducts

import "time"

type Config struct {
	Timeout time.Duration
	// MaxLLMCandidates caps the catalog listing sent to the scoring model.
	MaxLLMCandidates int
	// ReviewConcurrency bounds parallel review lookups during enrichment.
	ReviewConcurrency int
	Temperature       float64
	MaxTokens         int
	Currency          string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:           30 * time.Second,
		MaxLLMCandidates:  50,
		ReviewConcurrency: 8,
		Temperature:       0.1,
		MaxTokens:         500,
		Currency:          "₱",
	}
}
