// internal/workers/ai-conversation/chat-turn/products.go
package chatturn

import (
	"sort"
	"strings"

	"shopping-assistant/internal/models"
	matchproducts "shopping-assistant/internal/workers/catalog/match-products"
)

// buildCategories are the desktop parts offered in build mode, in build order.
var buildCategories = []struct {
	key   string
	label string
}{
	{"cpu", "CPU"},
	{"motherboard", "Motherboard"},
	{"ram", "RAM"},
	{"gpu", "GPU"},
	{"ssd", "SSD"},
	{"hdd", "HDD"},
	{"psu", "Power Supply"},
	{"case", "Case"},
	{"cooler", "CPU Cooler"},
}

func laptopIDs(catalog []models.Product) map[string]bool {
	ids := make(map[string]bool)
	for _, p := range matchproducts.FilterByCategory("laptop", catalog) {
		ids[p.ID] = true
	}
	return ids
}

// componentsByCategory groups desktop parts per build category, laptops excluded and each product listed once.
func componentsByCategory(catalog []models.Product) map[string][]models.Product {
	laptops := laptopIDs(catalog)
	seen := make(map[string]bool)
	out := make(map[string][]models.Product, len(buildCategories))
	for _, c := range buildCategories {
		for _, p := range matchproducts.FilterByCategory(c.key, catalog) {
			if laptops[p.ID] || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out[c.key] = append(out[c.key], p)
		}
	}
	return out
}

// BuildComponents picks up to perCategory parts per build category, in-stock first.
func BuildComponents(catalog []models.Product, perCategory int) []models.ProductMatch {
	groups := componentsByCategory(catalog)
	matches := make([]models.ProductMatch, 0)
	for _, c := range buildCategories {
		parts := groups[c.key]
		sort.SliceStable(parts, func(i, j int) bool {
			return parts[i].InStock() && !parts[j].InStock()
		})
		if perCategory > 0 && len(parts) > perCategory {
			parts = parts[:perCategory]
		}
		for _, p := range parts {
			matches = append(matches, models.ProductMatch{Product: p})
		}
	}
	return matches
}

// FallbackBuildListing lists in-stock parts per category without the model. Parts above the budget
// ceiling are left out; the cheapest perCategory remain. It returns "" when nothing qualifies.
func FallbackBuildListing(catalog []models.Product, budget models.Budget, perCategory int, note string, f formatter) string {
	groups := componentsByCategory(catalog)

	var blocks []string
	for _, c := range buildCategories {
		var parts []models.Product
		for _, p := range groups[c.key] {
			if !p.InStock() || (budget.Max != nil && p.Price > *budget.Max) {
				continue
			}
			parts = append(parts, p)
		}
		if len(parts) == 0 {
			continue
		}
		sort.SliceStable(parts, func(i, j int) bool { return parts[i].Price < parts[j].Price })
		if perCategory > 0 && len(parts) > perCategory {
			parts = parts[:perCategory]
		}

		lines := []string{c.label + ":"}
		for _, p := range parts {
			lines = append(lines, "- "+p.Name+" - "+f.money(p.Price))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	if len(blocks) == 0 {
		return ""
	}

	head := note
	if budget.Max != nil {
		head += "\nBudget: up to " + f.money(*budget.Max)
	}
	return head + "\n\n" + strings.Join(blocks, "\n\n")
}

func firstProducts(catalog []models.Product, n int) []models.ProductMatch {
	if n > 0 && len(catalog) > n {
		catalog = catalog[:n]
	}
	out := make([]models.ProductMatch, 0, len(catalog))
	for _, p := range catalog {
		out = append(out, models.ProductMatch{Product: p})
	}
	return out
}

// wantsCards reports intents whose reply is about specific products.
func wantsCards(intent models.Intent, build bool) bool {
	if build {
		return true
	}
	switch intent.IntentType {
	case models.IntentProductSearch, models.IntentRecommendation, models.IntentComparison:
		return true
	}
	return false
}
