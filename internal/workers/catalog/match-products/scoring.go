// internal/workers/catalog/match-products/scoring.go
package matchproducts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"shopping-assistant/internal/common/genai"
	"shopping-assistant/internal/models"
)

var ErrScoringFailed = errors.New("PRODUCT_SCORING_FAILED")

const scoringInstructions = `You rank products for a computer hardware store.
Given the customer intent and a product listing (id | name | price | componentType | brand | stock),
return ONLY a JSON array of the ids of matching products, most relevant first, for example ["12", "7"].

Hard rules:
- The componentType MUST match the requested category. A laptop is never a RAM, GPU or SSD match even if
  its specs mention them, and a headset is never a laptop.
- Respect the budget: never include products priced above budget.max or below budget.min.
- Prefer in-stock products.
- Return [] when nothing matches.`

func (h *Handler) scoringPrompt(intent models.Intent, catalog []models.Product) string {
	limit := h.config.MaxLLMCandidates
	if limit <= 0 || limit > len(catalog) {
		limit = len(catalog)
	}

	var b strings.Builder
	intentJSON, _ := json.Marshal(intent)
	b.WriteString("Customer intent: ")
	b.Write(intentJSON)
	b.WriteString("\n\nProducts:\n")
	for _, p := range catalog[:limit] {
		fmt.Fprintf(&b, "%s | %s | %s%.2f | %s | %s | %d\n",
			p.ID, p.Name, h.config.Currency, p.Price, p.ComponentType, p.Brand, p.StockQuantity)
	}
	return b.String()
}

// scoreWithLLM returns the products the model picked, in the model's order.
func (h *Handler) scoreWithLLM(ctx context.Context, intent models.Intent, catalog []models.Product) ([]models.Product, error) {
	completion, err := h.llm.Complete(ctx, genai.Request{
		Messages: []genai.Message{
			{Role: genai.RoleSystem, Content: scoringInstructions},
			{Role: genai.RoleUser, Content: h.scoringPrompt(intent, catalog)},
		},
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	ids, err := ParseIDs(completion.Content)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}
	picked := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			picked = append(picked, p)
			delete(byID, id)
		}
	}
	return picked, nil
}

// ParseIDs reads a JSON array of ids, accepting strings and numbers.
func ParseIDs(reply string) ([]string, error) {
	raw := genai.ExtractJSON(reply, '[', ']')

	var values []interface{}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScoringFailed, err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		switch id := v.(type) {
		case string:
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		case json.Number:
			ids = append(ids, id.String())
		case float64:
			ids = append(ids, strconv.FormatFloat(id, 'f', -1, 64))
		case map[string]interface{}:
			// some models answer [{"id": 3}, ...]
			if inner, ok := id["id"]; ok {
				ids = append(ids, strings.TrimSpace(fmt.Sprint(inner)))
			}
		}
	}
	return ids, nil
}
