// internal/workers/ai-conversation/compose-prompt/config.go
package composeprompt

import "time"

const (
	// MaxListedProducts caps the catalog listing handed to the model.
	MaxListedProducts = 50
	topRatedLimit     = 5
	alertLimit        = 10

	topRatedMinRating  = 4.0
	topRatedMinReviews = 5
	lowStockThreshold  = 5
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
