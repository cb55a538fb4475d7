// internal/models/budget.go
package models

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

type BudgetType string

const (
	BudgetExact  BudgetType = "exact"
	BudgetRange  BudgetType = "range"
	BudgetUnder  BudgetType = "under"
	BudgetAround BudgetType = "around"
	BudgetAbove  BudgetType = "above"
)

// aroundTolerance is the half-width of an "around" budget.
const aroundTolerance = 0.10

// Budget bounds are independent; either may be absent.
type Budget struct {
	Min  *float64   `json:"min,omitempty"`
	Max  *float64   `json:"max,omitempty"`
	Type BudgetType `json:"type,omitempty"`
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr(v float64) *float64 {
	return &v
}

func AroundBudget(x float64) Budget {
	return Budget{
		Min:  ptr(roundCents(x * (1 - aroundTolerance))),
		Max:  ptr(roundCents(x * (1 + aroundTolerance))),
		Type: BudgetAround,
	}
}

func UnderBudget(x float64) Budget {
	return Budget{Max: ptr(x), Type: BudgetUnder}
}

func AboveBudget(x float64) Budget {
	return Budget{Min: ptr(x), Type: BudgetAbove}
}

// RangeBudget swaps reversed bounds.
func RangeBudget(a, b float64) Budget {
	if a > b {
		a, b = b, a
	}
	return Budget{Min: ptr(a), Max: ptr(b), Type: BudgetRange}
}

func ExactBudget(x float64) Budget {
	return Budget{Min: ptr(x), Max: ptr(x), Type: BudgetExact}
}

func (b Budget) IsEmpty() bool {
	return b.Min == nil && b.Max == nil
}

// Allows reports whether price falls inside the bounds that are present.
func (b Budget) Allows(price float64) bool {
	if b.Max != nil && price > *b.Max {
		return false
	}
	if b.Min != nil && price < *b.Min {
		return false
	}
	return true
}

// Normalized repairs a budget built from untrusted input: an around budget is re-centred
// on its midpoint (or on its only bound) and reversed bounds are swapped.
func (b Budget) Normalized() Budget {
	switch b.Type {
	case BudgetAround:
		switch {
		case b.Min != nil && b.Max != nil:
			center := (*b.Min + *b.Max) / 2
			if !b.isSymmetricAround(center) {
				return AroundBudget(center)
			}
			return b
		case b.Max != nil:
			return AroundBudget(*b.Max)
		case b.Min != nil:
			return AroundBudget(*b.Min)
		default:
			return Budget{}
		}
	case BudgetRange:
		if b.Min != nil && b.Max != nil {
			return RangeBudget(*b.Min, *b.Max)
		}
	}

	if b.Type == "" {
		switch {
		case b.Min != nil && b.Max != nil:
			b.Type = BudgetRange
		case b.Max != nil:
			b.Type = BudgetUnder
		case b.Min != nil:
			b.Type = BudgetAbove
		}
	}
	if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
		b.Min, b.Max = b.Max, b.Min
	}
	return b
}

func (b Budget) isSymmetricAround(center float64) bool {
	want := AroundBudget(center)
	return math.Abs(*b.Min-*want.Min) < 0.01 && math.Abs(*b.Max-*want.Max) < 0.01
}

const amount = `(\d+(?:\.\d+)?)\s*(k|thousand)?\b`

var (
	rangePattern  = regexp.MustCompile(`\b(?:between|from)\s+` + amount + `\s+(?:and|to)\s+` + amount)
	dashPattern   = regexp.MustCompile(amount + `\s*(?:-|to)\s*` + amount)
	aroundPattern = regexp.MustCompile(`(?:\b(?:around|about|approximately|approx\.?|roughly)|~)\s*` + amount)
	underPattern  = regexp.MustCompile(`\b(?:under|below|less than|cheaper than|max(?:imum)?|up to|within|not more than)\s*` + amount)
	abovePattern  = regexp.MustCompile(`\b(?:above|over|more than|at least|min(?:imum)?|starting at)\s*` + amount)
	exactPattern  = regexp.MustCompile(`\bexactly\s*` + amount)
	// a product line right before the figures, as in "rtx 4060-4070"
	modelPrefixPattern = regexp.MustCompile(`\b(?:rtx|gtx|rx|arc|ryzen(?:\s*\d)?|i[3579]|core)\s*$`)
	budgetPattern      = regexp.MustCompile(`\bbudget(?: of| is)?\s*` + amount + `|` + amount + `\s*budget\b|\bfor\s*(\d+(?:\.\d+)?)\s*(k|thousand)\b`)

	currencyReplacer = strings.NewReplacer(",", "", "₱", "", "$", "", "php", "")
)

// minBudget filters out model numbers and counts that only look like prices.
const minBudget = 100

func parseAmount(num, suffix string) (float64, bool) {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if suffix != "" {
		v *= 1000
	}
	return v, true
}

// dashRange finds the first "a-b" pair that reads as prices rather than model numbers.
func dashRange(s string) (Budget, bool) {
	for _, loc := range dashPattern.FindAllStringSubmatchIndex(s, -1) {
		if modelPrefixPattern.MatchString(s[:loc[0]]) {
			continue
		}
		group := func(i int) string {
			if loc[2*i] < 0 {
				return ""
			}
			return s[loc[2*i]:loc[2*i+1]]
		}
		a, okA := parseAmount(group(1), group(2))
		b, okB := parseAmount(group(3), group(4))
		if okA && okB && a >= minBudget && b >= minBudget {
			return RangeBudget(a, b), true
		}
	}
	return Budget{}, false
}

// ParseBudget extracts a budget from free text. Phrasings without a figure give an empty budget.
func ParseBudget(text string) Budget {
	s := currencyReplacer.Replace(strings.ToLower(text))

	if m := rangePattern.FindStringSubmatch(s); m != nil {
		a, okA := parseAmount(m[1], m[2])
		b, okB := parseAmount(m[3], m[4])
		if okA && okB {
			return RangeBudget(a, b)
		}
	}
	if m := aroundPattern.FindStringSubmatch(s); m != nil {
		if v, ok := parseAmount(m[1], m[2]); ok {
			return AroundBudget(v)
		}
	}
	if m := underPattern.FindStringSubmatch(s); m != nil {
		if v, ok := parseAmount(m[1], m[2]); ok {
			return UnderBudget(v)
		}
	}
	if m := abovePattern.FindStringSubmatch(s); m != nil {
		if v, ok := parseAmount(m[1], m[2]); ok {
			return AboveBudget(v)
		}
	}
	if m := exactPattern.FindStringSubmatch(s); m != nil {
		if v, ok := parseAmount(m[1], m[2]); ok {
			return ExactBudget(v)
		}
	}
	if b, ok := dashRange(s); ok {
		return b
	}
	if m := budgetPattern.FindStringSubmatch(s); m != nil {
		num, suffix := m[1], m[2]
		switch {
		case m[3] != "":
			num, suffix = m[3], m[4]
		case m[5] != "":
			num, suffix = m[5], m[6]
		}
		if v, ok := parseAmount(num, suffix); ok && v >= minBudget {
			return AroundBudget(v)
		}
	}
	return Budget{}
}
