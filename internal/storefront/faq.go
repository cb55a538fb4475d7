// internal/storefront/faq.go
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
)

const DefaultFAQIndex = "store_faqs"

// FAQMapping is the index definition the search query relies on.
const FAQMapping = `{
  "mappings": {
    "properties": {
      "id":       {"type": "keyword"},
      "question": {"type": "text"},
      "answer":   {"type": "text"},
      "category": {"type": "keyword"},
      "keywords": {"type": "text"}
    }
  }
}`

// FAQIndex searches store policies in Elasticsearch and falls back to the static profile FAQs.
type FAQIndex struct {
	es     *elasticsearch.Client
	index  string
	static []models.FAQ
	logger logger.Logger
}

func NewFAQIndex(es *elasticsearch.Client, index string, static []models.FAQ, log logger.Logger) *FAQIndex {
	if index == "" {
		index = DefaultFAQIndex
	}
	return &FAQIndex{
		es:     es,
		index:  index,
		static: static,
		logger: log.With(map[string]interface{}{"component": "faq_index"}),
	}
}

func (f *FAQIndex) Index() string {
	return f.index
}

func (f *FAQIndex) Static() []models.FAQ {
	return f.static
}

const (
	FAQSourceIndex   = "index"
	FAQSourceProfile = "profile"
)

// Search never fails: index errors degrade to matching the static FAQs.
func (f *FAQIndex) Search(ctx context.Context, query string, limit int) []models.FAQ {
	faqs, _ := f.Lookup(ctx, query, limit)
	return faqs
}

// Lookup is Search that also reports where the answers came from.
func (f *FAQIndex) Lookup(ctx context.Context, query string, limit int) ([]models.FAQ, string) {
	if limit <= 0 {
		limit = 3
	}
	if f.es != nil {
		faqs, err := f.searchIndex(ctx, query, limit)
		if err == nil && len(faqs) > 0 {
			return faqs, FAQSourceIndex
		}
		if err != nil {
			metrics.SourceFallbacks.WithLabelValues("faq_index").Inc()
			f.logger.Warn("faq index search failed, using store profile", map[string]interface{}{
				"error": err.Error(),
				"index": f.index,
			})
		}
	}
	return f.searchStatic(query, limit), FAQSourceProfile
}

// Sync bulk-indexes the profile FAQs, keyed by FAQ id, and returns how many were written.
func (f *FAQIndex) Sync(ctx context.Context) (int, error) {
	if f.es == nil {
		return 0, apperrors.NewSearchQueryFailedError(f.index, fmt.Errorf("no elasticsearch client"))
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	n := 0
	for _, faq := range f.static {
		if faq.ID == "" {
			continue
		}
		meta := map[string]interface{}{"index": map[string]interface{}{"_index": f.index, "_id": faq.ID}}
		if err := enc.Encode(meta); err != nil {
			return 0, err
		}
		if err := enc.Encode(faq); err != nil {
			return 0, err
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}

	req := esapi.BulkRequest{
		Body:    bytes.NewReader(body.Bytes()),
		Refresh: "true",
	}
	res, err := req.Do(ctx, f.es)
	if err != nil {
		return 0, apperrors.NewSearchQueryFailedError(f.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, apperrors.NewSearchQueryFailedError(f.index, fmt.Errorf("bulk index failed: %s", res.Status()))
	}
	var r struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, apperrors.NewSearchQueryFailedError(f.index, err)
	}
	if r.Errors {
		return 0, apperrors.NewSearchQueryFailedError(f.index, fmt.Errorf("bulk index reported item errors"))
	}

	f.logger.Info("faq index synced", map[string]interface{}{"index": f.index, "count": n})
	return n, nil
}

func (f *FAQIndex) searchIndex(ctx context.Context, query string, limit int) ([]models.FAQ, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"question^2", "answer", "keywords"},
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		},
	})

	req := esapi.SearchRequest{
		Index: []string{f.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, f.es)
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError(f.index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, apperrors.NewIndexNotFoundError(f.index)
	}
	if res.IsError() {
		return nil, apperrors.NewSearchQueryFailedError(f.index, fmt.Errorf("search failed: %s", res.Status()))
	}

	var r struct {
		Hits struct {
			Hits []struct {
				ID     string     `json:"_id"`
				Source models.FAQ `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(f.index, err)
	}

	faqs := make([]models.FAQ, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		faq := hit.Source
		if faq.ID == "" {
			faq.ID = hit.ID
		}
		faqs = append(faqs, faq)
	}
	return faqs, nil
}

// searchStatic ranks profile FAQs by how many message words hit their keywords, question or answer.
func (f *FAQIndex) searchStatic(query string, limit int) []models.FAQ {
	words := strings.Fields(strings.ToLower(query))

	type scored struct {
		faq   models.FAQ
		score int
	}
	var hits []scored
	for _, faq := range f.static {
		question := strings.ToLower(faq.Question)
		answer := strings.ToLower(faq.Answer)
		score := 0
		for _, kw := range faq.Keywords {
			if strings.Contains(strings.ToLower(query), strings.ToLower(kw)) {
				score += 3
			}
		}
		for _, w := range words {
			if len(w) < 4 {
				continue
			}
			if strings.Contains(question, w) {
				score += 2
			} else if strings.Contains(answer, w) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{faq, score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]models.FAQ, 0, limit)
	for i := 0; i < len(hits) && i < limit; i++ {
		out = append(out, hits[i].faq)
	}
	return out
}
