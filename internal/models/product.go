// internal/models/product.go
package models

import (
	"encoding/json"
	"sort"
	"strings"
)

const (
	ProductStatusActive = "active"
)

// Product is the read-only catalog projection the assistant works on.
type Product struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	Price          float64                `json:"price"`
	OriginalPrice  float64                `json:"originalPrice,omitempty"`
	StockQuantity  int                    `json:"stockQuantity"`
	Brand          string                 `json:"brand,omitempty"`
	Category       string                 `json:"category,omitempty"`
	CategorySlug   string                 `json:"categorySlug,omitempty"`
	ComponentType  string                 `json:"componentType,omitempty"`
	Specifications map[string]interface{} `json:"specifications,omitempty"`
	ImageURL       string                 `json:"imageUrl,omitempty"`
	Status         string                 `json:"status,omitempty"`
}

func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

func (p Product) HasDiscount() bool {
	return p.OriginalPrice > p.Price && p.Price > 0
}

func (p Product) DiscountPercent() int {
	if !p.HasDiscount() {
		return 0
	}
	return int((p.OriginalPrice - p.Price) / p.OriginalPrice * 100)
}

// SpecText flattens the specification map in key order.
func (p Product) SpecText() string {
	if len(p.Specifications) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p.Specifications))
	for k := range p.Specifications {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := p.Specifications[k]
		b.WriteString(k)
		b.WriteByte(' ')
		if s, ok := v.(string); ok {
			b.WriteString(s)
		} else if raw, err := json.Marshal(v); err == nil {
			b.Write(raw)
		}
		b.WriteByte(' ')
	}
	return b.String()
}

// ProductMatch annotates a product for one turn. The embedded Product is never modified.
type ProductMatch struct {
	Product
	AIScore     float64 `json:"aiScore,omitempty"`
	AvgRating   float64 `json:"avgRating"`
	ReviewCount int     `json:"reviewCount"`
	MatchScore  float64 `json:"matchScore,omitempty"`
}

func AsMatches(products []Product) []ProductMatch {
	out := make([]ProductMatch, len(products))
	for i, p := range products {
		out[i] = ProductMatch{Product: p}
	}
	return out
}

func Products(matches []ProductMatch) []Product {
	out := make([]Product, len(matches))
	for i, m := range matches {
		out[i] = m.Product
	}
	return out
}

var componentTypeKeys = []string{"component_type", "componentType", "type", "category", "name"}

// DeriveComponentType reads the nested component-selection JSON stored with a product.
// It accepts an object, an array of objects or a bare string and falls back to category.
func DeriveComponentType(selectedComponents []byte, category string) string {
	if len(selectedComponents) == 0 {
		return category
	}
	var raw interface{}
	if err := json.Unmarshal(selectedComponents, &raw); err != nil {
		return category
	}
	if t := componentTypeOf(raw); t != "" {
		return t
	}
	return category
}

func componentTypeOf(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []interface{}:
		for _, item := range val {
			if t := componentTypeOf(item); t != "" {
				return t
			}
		}
	case map[string]interface{}:
		for _, key := range componentTypeKeys {
			field, ok := val[key]
			if !ok {
				continue
			}
			switch f := field.(type) {
			case string:
				if s := strings.TrimSpace(f); s != "" {
					return s
				}
			case map[string]interface{}:
				if name, ok := f["name"].(string); ok && strings.TrimSpace(name) != "" {
					return strings.TrimSpace(name)
				}
			}
		}
	}
	return ""
}
