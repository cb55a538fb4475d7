// internal/workers/catalog/match-products/search.go
package matchproducts

import (
	"context"
	"sort"
	"strings"
	"sync"

	"shopping-assistant/internal/common/fallback"
	"shopping-assistant/internal/models"
)

var pluralCategories = map[string]string{
	"laptops":        "laptop",
	"notebooks":      "laptop",
	"gpus":           "gpu",
	"graphics card":  "gpu",
	"graphics cards": "gpu",
	"video card":     "gpu",
	"video cards":    "gpu",
	"cpus":           "cpu",
	"processor":      "cpu",
	"processors":     "cpu",
	"rams":           "ram",
	"memory":         "ram",
	"ssds":           "ssd",
	"hdds":           "hdd",
	"hard drive":     "hdd",
	"hard drives":    "hdd",
	"motherboards":   "motherboard",
	"mobo":           "motherboard",
	"psus":           "psu",
	"power supply":   "psu",
	"power supplies": "psu",
	"cases":          "case",
	"pc case":        "case",
	"pc cases":       "case",
	"monitors":       "monitor",
	"keyboards":      "keyboard",
	"mice":           "mouse",
	"headsets":       "headset",
	"headphones":     "headset",
	"speakers":       "speaker",
	"webcams":        "webcam",
	"coolers":        "cooler",
}

type componentRule struct {
	synonyms []string
	exclude  []string
}

// strictCategories must match on component type; a spec sheet mentioning "16GB RAM" does not make a laptop RAM.
var strictCategories = map[string]componentRule{
	"cpu":         {synonyms: []string{"cpu", "processor"}, exclude: []string{"cooler", "fan"}},
	"gpu":         {synonyms: []string{"gpu", "graphics card", "video card", "graphics"}},
	"ram":         {synonyms: []string{"ram", "memory"}},
	"ssd":         {synonyms: []string{"ssd", "solid state", "nvme"}},
	"hdd":         {synonyms: []string{"hdd", "hard drive", "hard disk"}},
	"motherboard": {synonyms: []string{"motherboard", "mainboard"}},
	"psu":         {synonyms: []string{"psu", "power supply"}},
	"case":        {synonyms: []string{"case", "chassis"}, exclude: []string{"fan"}},
	"monitor":     {synonyms: []string{"monitor", "display"}},
	"keyboard":    {synonyms: []string{"keyboard"}},
	"mouse":       {synonyms: []string{"mouse"}},
	"headset":     {synonyms: []string{"headset", "headphone"}},
	"speaker":     {synonyms: []string{"speaker"}},
	"webcam":      {synonyms: []string{"webcam"}},
	"cooler":      {synonyms: []string{"cooler", "cpu fan", "aio"}},
}

var (
	laptopNamePrefixes = []string{"laptop", "notebook", "ultrabook", "macbook", "chromebook"}
	laptopPeripherals  = []string{"headset", "mouse", "keyboard", "speaker", "webcam", "charger"}
)

// intentOnlyKeywords describe how to shop, not what the product is.
var intentOnlyKeywords = map[string]bool{
	"affordable": true, "budget": true, "cheap": true, "cheapest": true, "best": true,
	"available": true, "good": true, "quality": true, "new": true, "latest": true,
	"price": true, "low": true, "high": true, "top": true, "recommend": true,
	"recommended": true, "show": true, "buy": true, "sale": true, "deal": true,
}

// NormalizeCategory maps plural and synonym category names onto the singular catalog term.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if singular, ok := pluralCategories[c]; ok {
		return singular
	}
	return c
}

// FilterByCategory keeps the products belonging to category, using strict component-type rules where they exist.
func FilterByCategory(category string, catalog []models.Product) []models.Product {
	category = NormalizeCategory(category)
	if category == "" {
		return catalog
	}

	out := make([]models.Product, 0)
	for _, p := range catalog {
		if inCategory(category, p) {
			out = append(out, p)
		}
	}
	return out
}

func inCategory(category string, p models.Product) bool {
	componentType := strings.ToLower(p.ComponentType)
	name := strings.ToLower(p.Name)

	if category == "laptop" {
		if !strings.Contains(componentType, "laptop") && !hasAnyPrefix(name, laptopNamePrefixes) {
			return false
		}
		for _, term := range laptopPeripherals {
			if strings.Contains(name, term) || strings.Contains(componentType, term) {
				return false
			}
		}
		return true
	}

	if rule, ok := strictCategories[category]; ok {
		if componentType == "" {
			return false
		}
		// a product typed as another strict category never crosses over ("cpu" inside "cpu fan")
		if _, other := strictCategories[componentType]; other && componentType != category {
			return false
		}
		for _, ex := range rule.exclude {
			if strings.Contains(componentType, ex) {
				return false
			}
		}
		for _, syn := range rule.synonyms {
			if strings.Contains(componentType, syn) || strings.Contains(syn, componentType) {
				return true
			}
		}
		return false
	}

	return strings.Contains(searchText(p), category)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func searchText(p models.Product) string {
	return strings.ToLower(strings.Join([]string{p.Name, p.Description, p.Brand, p.ComponentType}, " "))
}

// productKeywords drops the category itself and words that only express shopping intent.
func productKeywords(intent models.Intent) []string {
	category := NormalizeCategory(intent.CategoryName())
	var out []string
	for _, kw := range intent.Keywords {
		if intentOnlyKeywords[kw] || kw == category || NormalizeCategory(kw) == category {
			continue
		}
		out = append(out, kw)
	}
	return out
}

func matchesAnyKeyword(p models.Product, keywords []string) bool {
	text := searchText(p) + " " + strings.ToLower(p.Category) + " " + strings.ToLower(p.SpecText())
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func matchesBrand(p models.Product, brands []string) bool {
	brand := strings.ToLower(p.Brand)
	name := strings.ToLower(p.Name)
	for _, b := range brands {
		if brand != "" && (strings.Contains(brand, b) || strings.Contains(b, brand)) {
			return true
		}
		if brand == "" && strings.Contains(name, b) {
			return true
		}
	}
	return false
}

// FallbackSearch is the deterministic matcher: filter, enrich with reviews, then sort.
func (h *Handler) FallbackSearch(ctx context.Context, intent models.Intent, catalog []models.Product) []models.ProductMatch {
	candidates := FilterByCategory(intent.CategoryName(), catalog)

	keywords := productKeywords(intent)
	filtered := make([]models.Product, 0, len(candidates))
	for _, p := range candidates {
		if len(keywords) > 0 && !matchesAnyKeyword(p, keywords) {
			continue
		}
		if !intent.Budget.Allows(p.Price) {
			continue
		}
		if intent.HasBrands() && !matchesBrand(p, intent.Brands) {
			continue
		}
		filtered = append(filtered, p)
	}

	matches := h.enrich(ctx, filtered)
	SortMatches(matches, intent.IsAffordable())
	return matches
}

// enrich attaches review stats and the aiScore. A failed lookup scores that product as unreviewed.
func (h *Handler) enrich(ctx context.Context, products []models.Product) []models.ProductMatch {
	matches := models.AsMatches(products)
	if len(matches) == 0 {
		return matches
	}

	limit := h.config.ReviewConcurrency
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i := range matches {
		wg.Add(1)
		go func(m *models.ProductMatch) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			stats := models.ReviewStats{}
			if h.reviews != nil {
				stats = fallback.Fetch(ctx, h.logger, "reviews", models.ReviewStats{},
					func(ctx context.Context) (models.ReviewStats, error) {
						return h.reviews.ReviewStats(ctx, m.ID)
					})
			}
			m.AvgRating = stats.AvgRating
			m.ReviewCount = stats.ReviewCount
			m.AIScore = AIScore(m.Product, stats)
		}(&matches[i])
	}
	wg.Wait()
	return matches
}

// AIScore favours well-reviewed products and heavily penalises missing stock.
func AIScore(p models.Product, stats models.ReviewStats) float64 {
	reviews := stats.ReviewCount
	if reviews > 50 {
		reviews = 50
	}
	score := 100 + stats.AvgRating*10 + float64(reviews)*0.5
	if p.InStock() {
		score += 20
	} else {
		score -= 50
	}
	return score
}

// SortMatches puts in-stock items first. Affordable searches then go cheapest first,
// everything else by aiScore with price as the tiebreak.
func SortMatches(matches []models.ProductMatch, affordable bool) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.InStock() != b.InStock() {
			return a.InStock()
		}
		if affordable {
			return a.Price < b.Price
		}
		if a.AIScore != b.AIScore {
			return a.AIScore > b.AIScore
		}
		return a.Price < b.Price
	})
}
