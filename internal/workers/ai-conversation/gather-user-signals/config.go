// internal/workers/ai-conversation/gather-user-signals/config.go
package gatherusersignals

import "time"

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  15 * time.Second,
		CacheTTL: time.Minute,
	}
}
