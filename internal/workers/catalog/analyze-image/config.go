// internal/workers/catalog/analyze-image/config.go
package analyzeimage

import "time"

const (
	// MinMatchScore is the cutoff below which a product is not reported as a match.
	MinMatchScore = 30
	MaxMatches    = 10
)

type Config struct {
	Timeout     time.Duration
	Model       string
	Provider    string
	Temperature float64
	MaxTokens   int
	// MaxImageBytes bounds decoded uploads.
	MaxImageBytes int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       45 * time.Second,
		Provider:      "openai",
		Temperature:   0.2,
		MaxTokens:     500,
		MaxImageBytes: 8 << 20,
	}
}

// supportsJSONMode lists providers whose vision models accept response_format json_object.
func supportsJSONMode(provider string) bool {
	switch provider {
	case "openai", "groq":
		return true
	}
	return false
}
