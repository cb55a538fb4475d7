// internal/workers/ai-conversation/chat-turn/config.go
package chatturn

import (
	"time"

	"shopping-assistant/internal/models"
	"shopping-assistant/pkg/registry"
)

type Config struct {
	// Timeout bounds a whole turn; each LLM call has its own, shorter deadline in the genai client.
	Timeout      time.Duration
	Temperature  float64
	MaxTokens    int
	HistoryTurns int

	MaxCards            int
	GeneralProducts     int
	BuildPerCategory    int
	FallbackPerCategory int
	FAQLimit            int

	Store    models.StoreInfo
	Messages registry.AssistantMessages
}

func LoadConfig() *Config {
	profile := registry.DefaultProfile()
	return &Config{
		Timeout:             60 * time.Second,
		Temperature:         0.7,
		MaxTokens:           1024,
		HistoryTurns:        6,
		MaxCards:            10,
		GeneralProducts:     20,
		BuildPerCategory:    5,
		FallbackPerCategory: 3,
		FAQLimit:            3,
		Store:               profile.Store,
		Messages:            profile.Messages,
	}
}

// WithProfile applies a loaded store profile.
func (c *Config) WithProfile(p *registry.StoreProfile) *Config {
	if p != nil {
		c.Store = p.Store
		c.Messages = p.Messages
	}
	return c
}
