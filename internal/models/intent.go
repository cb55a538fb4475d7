// internal/models/intent.go
package models

import "strings"

type IntentType string

const (
	IntentProductSearch   IntentType = "product_search"
	IntentComparison      IntentType = "comparison"
	IntentRecommendation  IntentType = "recommendation"
	IntentBuildHelp       IntentType = "build_help"
	IntentGeneralQuestion IntentType = "general_question"
	IntentGreeting        IntentType = "greeting"
)

var validIntentTypes = map[IntentType]bool{
	IntentProductSearch:   true,
	IntentComparison:      true,
	IntentRecommendation:  true,
	IntentBuildHelp:       true,
	IntentGeneralQuestion: true,
	IntentGreeting:        true,
}

func (t IntentType) Valid() bool {
	return validIntentTypes[t]
}

// Intent is the structured reading of one user message. Build it with NewIntent and pass it by value.
type Intent struct {
	IntentType IntentType `json:"intentType"`
	Category   *string    `json:"category"`
	Budget     Budget     `json:"budget"`
	Brands     []string   `json:"brands"`
	Features   []string   `json:"features"`
	Keywords   []string   `json:"keywords"`
	UseCase    *string    `json:"useCase"`
	Confidence float64    `json:"confidence"`
}

// IntentFields is the raw material for NewIntent, typically decoded from LLM output.
type IntentFields struct {
	IntentType IntentType `json:"intentType"`
	Category   string     `json:"category"`
	Budget     Budget     `json:"budget"`
	Brands     []string   `json:"brands"`
	Features   []string   `json:"features"`
	Keywords   []string   `json:"keywords"`
	UseCase    string     `json:"useCase"`
	Confidence float64    `json:"confidence"`
}

func NewIntent(f IntentFields) Intent {
	in := Intent{
		IntentType: f.IntentType,
		Budget:     f.Budget.Normalized(),
		Brands:     normalizeList(f.Brands),
		Features:   normalizeList(f.Features),
		Keywords:   normalizeList(f.Keywords),
		Confidence: clamp01(f.Confidence),
	}
	if c := strings.ToLower(strings.TrimSpace(f.Category)); c != "" && c != "null" {
		in.Category = &c
	}
	if u := strings.TrimSpace(f.UseCase); u != "" && u != "null" {
		in.UseCase = &u
	}
	if !in.IntentType.Valid() {
		if in.Category != nil {
			in.IntentType = IntentProductSearch
		} else {
			in.IntentType = IntentGeneralQuestion
		}
	}
	return in
}

// Fields converts the intent back into its raw form, e.g. to hand it to another worker.
func (i Intent) Fields() IntentFields {
	f := IntentFields{
		IntentType: i.IntentType,
		Category:   i.CategoryName(),
		Budget:     i.Budget,
		Brands:     i.Brands,
		Features:   i.Features,
		Keywords:   i.Keywords,
		Confidence: i.Confidence,
	}
	if i.UseCase != nil {
		f.UseCase = *i.UseCase
	}
	return f
}

func (i Intent) CategoryName() string {
	if i.Category == nil {
		return ""
	}
	return *i.Category
}

func (i Intent) HasBrands() bool   { return len(i.Brands) > 0 }
func (i Intent) HasFeatures() bool { return len(i.Features) > 0 }

// IsAffordable reports a price-sensitive request without a hard cutoff.
func (i Intent) IsAffordable() bool {
	for _, list := range [][]string{i.Features, i.Keywords} {
		for _, v := range list {
			switch v {
			case "affordable", "budget", "cheap", "cheapest", "low cost", "budget-friendly":
				return true
			}
		}
	}
	return false
}

func (i Intent) IsBuildRequest() bool {
	if i.IntentType == IntentBuildHelp {
		return true
	}
	for _, k := range i.Keywords {
		if k == "build" || k == "pc build" || k == "custom pc" {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// normalizeList lower-cases, trims and dedups, always returning a non-nil slice.
func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
