// Package fallback applies the degrade-to-default contract to independent data sources.
package fallback

import (
	"context"
	"fmt"

	"shopping-assistant/internal/common/metrics"
)

type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// Fetch runs fn and returns its value, or def when fn fails or panics.
// The failure is logged at WARN and counted under source; it never reaches the caller.
func Fetch[T any](ctx context.Context, log Logger, source string, def T, fn func(ctx context.Context) (T, error)) (out T) {
	defer func() {
		if r := recover(); r != nil {
			degrade(log, source, fmt.Errorf("panic: %v", r))
			out = def
		}
	}()

	if err := ctx.Err(); err != nil {
		degrade(log, source, err)
		return def
	}

	val, err := fn(ctx)
	if err != nil {
		degrade(log, source, err)
		return def
	}
	return val
}

func degrade(log Logger, source string, err error) {
	metrics.SourceFallbacks.WithLabelValues(source).Inc()
	if log != nil {
		log.Warn("data source failed, using default", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
	}
}
