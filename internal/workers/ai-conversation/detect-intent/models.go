// internal/workers/ai-conversation/detect-intent/models.go
package detectintent

import "shopping-assistant/internal/models"

const (
	SourceFastPath = "fast_path"
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

type Input struct {
	Message string `json:"message"`
}

type Output struct {
	Intent models.Intent `json:"intent"`
	Source string        `json:"source"`
}
