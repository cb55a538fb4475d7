// internal/common/database/health.go
package database

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Pinger is implemented by every backing store client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingAll pings the stores concurrently and returns the first failure.
func PingAll(ctx context.Context, stores map[string]Pinger) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, store := range stores {
		name, store := name, store
		g.Go(func() error {
			if err := store.Ping(gctx); err != nil {
				return &HealthError{Store: name, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

type HealthError struct {
	Store string
	Err   error
}

func (e *HealthError) Error() string {
	if cause := errors.Unwrap(e.Err); cause != nil {
		return e.Store + ": " + cause.Error()
	}
	return e.Store + ": " + e.Err.Error()
}

func (e *HealthError) Unwrap() error {
	return e.Err
}
