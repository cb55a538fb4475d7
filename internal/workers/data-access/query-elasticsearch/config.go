// internal/workers/data-access/query-elasticsearch/config.go
package queryelasticsearch

import "time"

const (
	DefaultLimit = 3
	MaxLimit     = 20
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
