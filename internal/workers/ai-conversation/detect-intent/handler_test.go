package detectintent

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"shopping-assistant/internal/common/genai"
	"shopping-assistant/internal/common/genai/genaitest"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return LoadConfig()
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func floatPtr(v float64) *float64 { return &v }

// ==========================
// Fast Path Tests
// ==========================

func TestHandler_FastPathMakesNoLLMCall(t *testing.T) {
	llm := &genaitest.MockCompleter{}
	h := NewHandler(createTestConfig(), llm, createTestLogger(t))

	tests := []struct {
		message  string
		category string
		budget   models.Budget
	}{
		{"show me gaming laptops", "laptop", models.Budget{}},
		{"do you have rtx 4060", "gpu", models.Budget{}},
		{"any ssd under 5k?", "ssd", models.UnderBudget(5000)},
		{"available keyboards", "keyboard", models.Budget{}},
		{"laptops below ₱45,000", "laptop", models.UnderBudget(45000)},
		{"mouse", "mouse", models.Budget{}},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			before := testutil.ToFloat64(metrics.IntentPaths.WithLabelValues(SourceFastPath))

			out, err := h.Execute(context.Background(), &Input{Message: tt.message})
			require.NoError(t, err)

			assert.Equal(t, SourceFastPath, out.Source)
			assert.Equal(t, models.IntentProductSearch, out.Intent.IntentType)
			assert.Equal(t, tt.category, out.Intent.CategoryName())
			assert.Equal(t, []string{tt.category}, out.Intent.Keywords)
			assert.Equal(t, tt.budget, out.Intent.Budget)
			assert.Equal(t, FallbackConfidence, out.Intent.Confidence)
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.IntentPaths.WithLabelValues(SourceFastPath)))
		})
	}

	llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestHandler_IsSimpleQuery(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, createTestLogger(t))

	tests := []struct {
		message string
		want    bool
	}{
		{"show me monitors", true},
		{"list all headsets", true},
		{"gpus for 1440p", true},
		{"show me laptops vs desktops", false},
		{"do you have something you recommend for streaming", false},
		{"any monitor that is best for photo editing", false},
		{"which is better, ryzen or intel", false},
		{"i want to build a pc", false},
		{"what's your return policy", false},
		{"anything new this week", false},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, h.IsSimpleQuery(tt.message))
		})
	}
}

// ==========================
// Slow Path Tests
// ==========================

func TestHandler_SlowPathUsesLLM(t *testing.T) {
	llm := &genaitest.MockCompleter{}
	llm.On("Complete", mock.Anything, genaitest.JSONMode()).Return(genaitest.Reply("```json\n"+`{
		"intentType": "recommendation",
		"category": "Laptop",
		"budget": {"min": 27000, "max": 33000, "type": "around"},
		"brands": ["ASUS", "asus", "Lenovo"],
		"features": ["Lightweight"],
		"keywords": ["laptop", "school"],
		"useCase": "school",
		"confidence": 1.4
	}`+"\n```"), nil)

	h := NewHandler(createTestConfig(), llm, createTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{Message: "recommend a light laptop for school around 30k"})
	require.NoError(t, err)

	assert.Equal(t, SourceLLM, out.Source)
	intent := out.Intent
	assert.Equal(t, models.IntentRecommendation, intent.IntentType)
	assert.Equal(t, "laptop", intent.CategoryName())
	assert.Equal(t, models.AroundBudget(30000), intent.Budget)
	assert.Equal(t, []string{"asus", "lenovo"}, intent.Brands)
	assert.Equal(t, []string{"lightweight"}, intent.Features)
	assert.Equal(t, 1.0, intent.Confidence)
	require.NotNil(t, intent.UseCase)
	assert.Equal(t, "school", *intent.UseCase)
	llm.AssertExpectations(t)
}

func TestHandler_SlowPathDegradesToExtractor(t *testing.T) {
	tests := []struct {
		name  string
		reply *genai.Completion
		err   error
	}{
		{"provider error", nil, errors.New("LLM_REQUEST_FAILED")},
		{"prose reply", genaitest.Reply("Sure! The customer wants a GPU."), nil},
		{"schema violation", genaitest.Reply(`{"intentType": 42}`), nil},
		{"truncated JSON", genaitest.Reply(`{"intentType": "comparison", "category": "gpu"`), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &genaitest.MockCompleter{}
			llm.On("Complete", mock.Anything, mock.Anything).Return(tt.reply, tt.err)

			h := NewHandler(createTestConfig(), llm, createTestLogger(t))
			out, err := h.Execute(context.Background(), &Input{Message: "compare rtx 4060 and rx 7600 under 20k"})
			require.NoError(t, err)

			assert.Equal(t, SourceFallback, out.Source)
			assert.Equal(t, "gpu", out.Intent.CategoryName())
			assert.Equal(t, models.UnderBudget(20000), out.Intent.Budget)
			assert.Equal(t, FallbackConfidence, out.Intent.Confidence)
		})
	}
}

func TestHandler_NilLLMAlwaysFallsBack(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, createTestLogger(t))
	intent := h.Detect(context.Background(), "hello!")
	assert.Equal(t, models.IntentGreeting, intent.IntentType)
	assert.Nil(t, intent.Category)
	assert.NotNil(t, intent.Brands)
}

// ==========================
// Parsing and Budget Repair
// ==========================

func TestParseIntent_BudgetRepair(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		message string
		want    models.Budget
	}{
		{
			name:    "asymmetric around is re-centred",
			reply:   `{"intentType":"product_search","category":"gpu","budget":{"min":25000,"max":35000,"type":"around"}}`,
			message: "gpu around 30k",
			want:    models.AroundBudget(30000),
		},
		{
			name:    "around without figures is re-parsed from the message",
			reply:   `{"intentType":"product_search","category":"gpu","budget":{"type":"around"}}`,
			message: "gpu around 30k",
			want:    models.AroundBudget(30000),
		},
		{
			name:    "between keeps explicit bounds",
			reply:   `{"intentType":"product_search","category":"laptop","budget":{"min":60000,"max":40000,"type":"range"}}`,
			message: "laptop between 40k and 60k",
			want:    models.RangeBudget(40000, 60000),
		},
		{
			name:    "affordable without figure stays empty",
			reply:   `{"intentType":"product_search","category":"mouse","budget":{},"features":["affordable"]}`,
			message: "affordable mouse please",
			want:    models.Budget{},
		},
		{
			name:    "null budget",
			reply:   `{"intentType":"general_question","category":null,"budget":null}`,
			message: "do you ship to cebu",
			want:    models.Budget{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := ParseIntent(tt.reply, tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.want, intent.Budget)
		})
	}
}

func TestParseIntent_UnknownIntentTypeIsCoerced(t *testing.T) {
	intent, err := ParseIntent(`{"intentType":"shopping","category":"ram"}`, "ram")
	require.NoError(t, err)
	assert.Equal(t, models.IntentProductSearch, intent.IntentType)
	assert.Equal(t, defaultLLMConfidence, intent.Confidence)
}

// ==========================
// Extractor Tests
// ==========================

func TestExtract(t *testing.T) {
	tests := []struct {
		message    string
		intentType models.IntentType
		category   string
		budget     models.Budget
		features   []string
	}{
		{"gaming laptop with rtx 4060", models.IntentProductSearch, "laptop", models.Budget{}, []string{}},
		{"affordable graphics card", models.IntentProductSearch, "gpu", models.Budget{}, []string{"affordable"}},
		{"budget ram under 3k", models.IntentProductSearch, "ram", models.UnderBudget(3000), []string{"affordable"}},
		{"good morning", models.IntentGreeting, "", models.Budget{}, []string{}},
		{"how do I program my router", models.IntentGeneralQuestion, "", models.Budget{}, []string{}},
		{"chassis around 5k", models.IntentProductSearch, "case", models.Budget{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			intent := Extract(tt.message)
			assert.Equal(t, tt.intentType, intent.IntentType)
			assert.Equal(t, tt.category, intent.CategoryName())
			assert.Equal(t, tt.budget, intent.Budget)
			assert.Equal(t, tt.features, intent.Features)
			assert.Equal(t, FallbackConfidence, intent.Confidence)
		})
	}
}
