// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"shopping-assistant/internal/common/config"
	apperrors "shopping-assistant/internal/common/errors"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient backs the FAQ index.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 && cfg.GetURL() != "" {
		addresses = []string{cfg.GetURL()}
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticsearchClient{Client: es}, nil
}

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(fmt.Errorf("elasticsearch ping failed: %w", err))
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewDatabaseConnectionFailedError(fmt.Errorf("elasticsearch ping error: %s", res.Status()))
	}
	return nil
}

// EnsureIndex creates index with mapping unless it already exists. It reports whether it created it.
func (c *ElasticsearchClient) EnsureIndex(ctx context.Context, index, mapping string) (bool, error) {
	exists, err := esapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, c.Client)
	if err != nil {
		return false, fmt.Errorf("index check %s failed: %w", index, err)
	}
	exists.Body.Close()

	switch exists.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusNotFound:
	default:
		return false, fmt.Errorf("index check %s failed: %s", index, exists.Status())
	}

	res, err := esapi.IndicesCreateRequest{Index: index, Body: strings.NewReader(mapping)}.Do(ctx, c.Client)
	if err != nil {
		return false, fmt.Errorf("index create %s failed: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return false, fmt.Errorf("index create %s failed: %s", index, res.Status())
	}
	return true, nil
}
