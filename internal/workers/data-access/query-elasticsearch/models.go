// internal/workers/data-access/query-elasticsearch/models.go
package queryelasticsearch

import "shopping-assistant/internal/models"

const (
	QueryTypeFAQSearch = "faq_search"
	QueryTypeFAQSync   = "faq_sync"
)

type Input struct {
	QueryType string `json:"queryType"`
	Query     string `json:"query,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type Output struct {
	Data      []models.FAQ `json:"data"`
	TotalHits int          `json:"totalHits"`
	// Source is "index" or "profile" for searches and "index" for syncs.
	Source string `json:"source"`
	Took   int64  `json:"took"` // milliseconds
}
