// internal/workers/ai-conversation/detect-intent/extractor.go
package detectintent

import (
	"regexp"
	"strconv"
	"strings"

	"shopping-assistant/internal/models"
)

// FallbackConfidence marks an intent that did not come from the LLM.
const FallbackConfidence = 0.6

type categoryKeywords struct {
	Category string
	Keywords []string
}

// Categories is checked in order; the first category with a keyword hit wins.
// Laptop comes first so "gaming laptop with rtx 4060" stays a laptop search.
var Categories = []categoryKeywords{
	{"laptop", []string{"laptop", "notebook", "ultrabook"}},
	{"gpu", []string{"gpu", "graphics card", "video card", "rtx", "gtx", "radeon"}},
	{"cpu", []string{"cpu", "processor", "ryzen", "intel core", "core i"}},
	{"ram", []string{"ram", "memory", "ddr4", "ddr5"}},
	{"ssd", []string{"ssd", "nvme", "solid state"}},
	{"hdd", []string{"hdd", "hard drive", "hard disk"}},
	{"motherboard", []string{"motherboard", "mobo", "mainboard"}},
	{"psu", []string{"psu", "power supply"}},
	{"case", []string{"pc case", "chassis", "casing", "tower case"}},
	{"monitor", []string{"monitor", "display", "screen"}},
	{"keyboard", []string{"keyboard"}},
	{"mouse", []string{"mouse", "mice"}},
	{"headset", []string{"headset", "headphone", "earphone"}},
	{"speaker", []string{"speaker"}},
	{"webcam", []string{"webcam", "web cam"}},
	{"cooler", []string{"cooler", "cpu fan", "aio", "liquid cooling"}},
}

var (
	underBudgetPattern = regexp.MustCompile(`\b(?:under|below)\s*(?:₱|php|\$)?\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?\b`)
	greetingPattern    = regexp.MustCompile(`^(?:hi|hello|hey|yo|good (?:morning|afternoon|evening)|kumusta|musta)(?:\s+(?:there|po))?[\s!.?]*$`)
	affordablePattern  = regexp.MustCompile(`\b(?:affordable|budget)\b`)
)

// containsWord reports whether kw starts at a word boundary in text, so "ram" hits "rams" but not "program".
func containsWord(text, kw string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], kw)
		if j < 0 {
			return false
		}
		at := i + j
		if at == 0 || !isWordByte(text[at-1]) {
			return true
		}
		i = at + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('0' <= b && b <= '9')
}

// DetectCategory returns the first category whose keywords appear in message.
func DetectCategory(message string) (string, bool) {
	s := strings.ToLower(message)
	for _, c := range Categories {
		for _, kw := range c.Keywords {
			if containsWord(s, kw) {
				return c.Category, true
			}
		}
	}
	return "", false
}

// Extract builds an intent from keyword tables alone. It makes no network call.
func Extract(message string) models.Intent {
	s := strings.ToLower(strings.TrimSpace(message))

	fields := models.IntentFields{
		IntentType: models.IntentGeneralQuestion,
		Confidence: FallbackConfidence,
	}

	if category, ok := DetectCategory(s); ok {
		fields.IntentType = models.IntentProductSearch
		fields.Category = category
		fields.Keywords = []string{category}
	} else if greetingPattern.MatchString(s) {
		fields.IntentType = models.IntentGreeting
	}

	if m := underBudgetPattern.FindStringSubmatch(s); m != nil {
		if v, ok := parseFigure(m[1], m[2]); ok {
			fields.Budget = models.UnderBudget(v)
		}
	}
	if affordablePattern.MatchString(s) {
		fields.Features = []string{"affordable"}
	}

	return models.NewIntent(fields)
}

func parseFigure(num, suffix string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	if suffix != "" {
		v *= 1000
	}
	return v, true
}
