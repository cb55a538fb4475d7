// internal/workers/ai-conversation/detect-intent/config.go
package detectintent

import "time"

type Config struct {
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	// SimplePrefixes mark a message as a plain catalog lookup that skips the LLM.
	SimplePrefixes []string
	// ComplexPhrases force the LLM even when a simple prefix matched.
	ComplexPhrases []string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		Temperature: 0.1,
		MaxTokens:   400,
		SimplePrefixes: []string{
			"show", "do you have", "any", "available", "list",
		},
		ComplexPhrases: []string{
			"compare", "vs", "versus", "difference", "recommend", "suggest",
			"build", "best for", "which is better", "should i",
		},
	}
}
