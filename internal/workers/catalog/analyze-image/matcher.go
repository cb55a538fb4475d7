// internal/workers/catalog/analyze-image/matcher.go
package analyzeimage

import (
	"sort"
	"strings"

	"shopping-assistant/internal/models"
)

const (
	brandWeight       = 40
	modelWeight       = 50
	typeWeight        = 35
	keywordInName     = 5
	keywordInDesc     = 3
	keywordInCategory = 4
	specWeight        = 8
)

var typeSynonyms = [][]string{
	{"gpu", "graphics card", "video card", "graphics"},
	{"cpu", "processor"},
	{"ram", "memory"},
	{"ssd", "solid state", "nvme"},
	{"hdd", "hard drive", "hard disk"},
	{"motherboard", "mainboard"},
	{"psu", "power supply"},
	{"case", "chassis", "pc case"},
	{"monitor", "display"},
	{"laptop", "notebook"},
	{"keyboard"},
	{"mouse"},
	{"headset", "headphone"},
	{"speaker"},
	{"webcam"},
	{"cooler", "cpu cooler", "aio"},
}

func synonymsFor(productType string) []string {
	for _, group := range typeSynonyms {
		for _, syn := range group {
			if productType == syn {
				return group
			}
		}
	}
	return []string{productType}
}

func squash(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// Score weighs how well p fits what the image showed.
func Score(d models.VisionDescriptor, p models.Product) float64 {
	name := strings.ToLower(p.Name)
	desc := strings.ToLower(p.Description)
	category := strings.ToLower(p.Category)
	componentType := strings.ToLower(p.ComponentType)
	specs := strings.ToLower(p.SpecText())

	score := 0.0

	if brand := strings.ToLower(d.Brand); brand != "" {
		if strings.Contains(strings.ToLower(p.Brand), brand) || strings.Contains(name, brand) {
			score += brandWeight
		}
	}

	if model := strings.ToLower(d.Model); model != "" {
		if strings.Contains(name, model) || strings.Contains(squash(name), squash(model)) {
			score += modelWeight
		}
	}

	if d.ProductType != "" && d.ProductType != "other" {
		for _, syn := range synonymsFor(d.ProductType) {
			if strings.Contains(category, syn) || strings.Contains(componentType, syn) || strings.Contains(name, syn) {
				score += typeWeight
				break
			}
		}
	}

	for _, kw := range d.Keywords {
		if strings.Contains(name, kw) {
			score += keywordInName
		}
		if strings.Contains(desc, kw) {
			score += keywordInDesc
		}
		if strings.Contains(category, kw) {
			score += keywordInCategory
		}
	}

	for _, spec := range d.Specs {
		if strings.Contains(name, spec) || strings.Contains(desc, spec) || strings.Contains(specs, spec) {
			score += specWeight
		}
	}

	return score
}

// MatchProducts scores the catalog against d. Nothing under MinMatchScore is returned;
// an empty result is preferred over a wrong guess.
func MatchProducts(d models.VisionDescriptor, catalog []models.Product) []models.ProductMatch {
	matches := make([]models.ProductMatch, 0)
	for _, p := range catalog {
		score := Score(d, p)
		if score < MinMatchScore {
			continue
		}
		matches = append(matches, models.ProductMatch{Product: p, MatchScore: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if a.InStock() != b.InStock() {
			return a.InStock()
		}
		return a.Price < b.Price
	})

	if len(matches) > MaxMatches {
		matches = matches[:MaxMatches]
	}
	return matches
}
