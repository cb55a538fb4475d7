package matchproducts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/genai/genaitest"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

type MockReviews struct {
	mock.Mock
}

func (m *MockReviews) ReviewStats(ctx context.Context, productID string) (models.ReviewStats, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(models.ReviewStats), args.Error(1)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ActiveProducts(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	cfg := LoadConfig()
	cfg.Timeout = 5 * time.Second
	return cfg
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func product(id, name, componentType string, price float64, stock int, brand string) models.Product {
	return models.Product{
		ID:            id,
		Name:          name,
		Price:         price,
		StockQuantity: stock,
		Brand:         brand,
		ComponentType: componentType,
		Category:      componentType,
		Status:        models.ProductStatusActive,
	}
}

func intentFor(category string, mods ...func(*models.IntentFields)) models.Intent {
	f := models.IntentFields{IntentType: models.IntentProductSearch, Category: category, Confidence: 0.9}
	for _, mod := range mods {
		mod(&f)
	}
	return models.NewIntent(f)
}

func ids(matches []models.ProductMatch) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.ID
	}
	return out
}

var testCatalog = []models.Product{
	product("k1", "Keychron K2 Wireless", "Keyboard", 4500, 3, "Keychron"),
	product("k2", "Redragon K552", "Keyboard", 1800, 0, "Redragon"),
	product("mb1", "ASUS Prime B650 Keyboard-ready Motherboard", "Motherboard", 9800, 4, "ASUS"),
	product("m1", "Logitech G102 Keyboard Friendly Mouse", "Mouse", 995, 10, "Logitech"),
	product("l1", "Laptop ASUS TUF A15 16GB RAM", "Laptop", 52000, 2, "ASUS"),
	product("l2", "Lenovo IdeaPad Slim 3", "Laptop", 31000, 5, "Lenovo"),
	product("h1", "Gaming Headset with 16GB equivalent sound", "Headset", 2500, 7, "HyperX"),
	product("r1", "Kingston Fury 16GB DDR5", "RAM", 3900, 12, "Kingston"),
	product("c1", "Ryzen 5 7600", "Processor", 12999, 6, "AMD"),
	product("cf1", "DeepCool AK400", "CPU Cooler", 1700, 9, "DeepCool"),
}

// ==========================
// Category Filter Tests
// ==========================

func TestFilterByCategory_StrictCategories(t *testing.T) {
	tests := []struct {
		category string
		want     []string
	}{
		{"keyboard", []string{"k1", "k2"}},
		{"keyboards", []string{"k1", "k2"}},
		{"laptop", []string{"l1", "l2"}},
		{"ram", []string{"r1"}},
		{"memory", []string{"r1"}},
		{"cpu", []string{"c1"}},
		{"processors", []string{"c1"}},
		{"cooler", []string{"cf1"}},
		{"mice", []string{"m1"}},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			got := FilterByCategory(tt.category, testCatalog)
			gotIDs := make([]string, len(got))
			for i, p := range got {
				gotIDs[i] = p.ID
			}
			assert.Equal(t, tt.want, gotIDs)
		})
	}
}

func TestFilterByCategory_KeyboardNeverIncludesMotherboardOrMouse(t *testing.T) {
	for _, p := range FilterByCategory("keyboard", testCatalog) {
		assert.NotEqual(t, "Motherboard", p.ComponentType)
		assert.NotEqual(t, "Mouse", p.ComponentType)
	}
}

func TestFilterByCategory_LaptopExcludesPeripherals(t *testing.T) {
	catalog := []models.Product{
		product("h1", "Gaming Headset with 16GB equivalent sound", "Laptop Accessories", 2500, 7, "HyperX"),
		product("ch1", "Laptop Charger 65W USB-C", "Laptop Accessories", 1200, 7, "Ugreen"),
		product("l1", "Notebook Acer Aspire 5", "", 28000, 3, "Acer"),
	}
	got := FilterByCategory("laptop", catalog)
	require.Len(t, got, 1)
	assert.Equal(t, "l1", got[0].ID)
}

func TestFilterByCategory_GenericCategoryUsesText(t *testing.T) {
	catalog := []models.Product{
		product("u1", "Anker USB Hub 7-in-1", "Accessory", 1500, 2, "Anker"),
		product("u2", "Ugreen HDMI cable", "Accessory", 300, 2, "Ugreen"),
	}
	got := FilterByCategory("usb hub", catalog)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].ID)
}

// ==========================
// Fallback Search Tests
// ==========================

func TestFallbackSearch_OutOfStockAlwaysLast(t *testing.T) {
	reviews := &MockReviews{}
	reviews.On("ReviewStats", mock.Anything, "k2").Return(models.ReviewStats{AvgRating: 5, ReviewCount: 200}, nil)
	reviews.On("ReviewStats", mock.Anything, "k1").Return(models.ReviewStats{}, nil)

	h := NewHandler(createTestConfig(), nil, reviews, nil, createTestLogger(t))

	for _, affordable := range []bool{false, true} {
		intent := intentFor("keyboard", func(f *models.IntentFields) {
			if affordable {
				f.Features = []string{"affordable"}
			}
		})
		matches := h.FallbackSearch(context.Background(), intent, testCatalog)
		assert.Equal(t, []string{"k1", "k2"}, ids(matches), "affordable=%v", affordable)
	}
}

func TestFallbackSearch_AffordableSortsByPrice(t *testing.T) {
	catalog := []models.Product{
		product("a", "Mouse A", "Mouse", 1500, 5, ""),
		product("b", "Mouse B", "Mouse", 500, 5, ""),
		product("c", "Mouse C", "Mouse", 900, 5, ""),
	}
	reviews := &MockReviews{}
	reviews.On("ReviewStats", mock.Anything, "a").Return(models.ReviewStats{AvgRating: 5, ReviewCount: 50}, nil)
	reviews.On("ReviewStats", mock.Anything, mock.Anything).Return(models.ReviewStats{}, nil)

	h := NewHandler(createTestConfig(), nil, reviews, nil, createTestLogger(t))

	affordable := intentFor("mouse", func(f *models.IntentFields) { f.Features = []string{"affordable"} })
	assert.Equal(t, []string{"b", "c", "a"}, ids(h.FallbackSearch(context.Background(), affordable, catalog)))

	plain := intentFor("mouse")
	assert.Equal(t, []string{"a", "b", "c"}, ids(h.FallbackSearch(context.Background(), plain, catalog)))
}

func TestFallbackSearch_ReviewFailureIsIsolated(t *testing.T) {
	catalog := []models.Product{
		product("g1", "RTX 4060", "GPU", 18000, 3, "MSI"),
		product("g2", "RTX 4070", "GPU", 32000, 3, "MSI"),
		product("g3", "RX 7600", "GPU", 16000, 3, "Sapphire"),
		product("g4", "RTX 3050", "GPU", 12000, 3, "Zotac"),
		product("g5", "Arc A750", "GPU", 13000, 3, "Intel"),
	}
	reviews := &MockReviews{}
	reviews.On("ReviewStats", mock.Anything, "g3").Return(models.ReviewStats{}, errors.New("connection reset"))
	reviews.On("ReviewStats", mock.Anything, mock.Anything).Return(models.ReviewStats{AvgRating: 4, ReviewCount: 10}, nil)

	h := NewHandler(createTestConfig(), nil, reviews, nil, createTestLogger(t))
	matches := h.FallbackSearch(context.Background(), intentFor("gpu"), catalog)

	require.Len(t, matches, 5)
	for _, m := range matches {
		if m.ID == "g3" {
			assert.Equal(t, 0.0, m.AvgRating)
			assert.Equal(t, 0, m.ReviewCount)
			assert.Equal(t, 120.0, m.AIScore)
			continue
		}
		assert.Equal(t, 4.0, m.AvgRating)
		assert.Equal(t, 10, m.ReviewCount)
		assert.Equal(t, 165.0, m.AIScore)
	}
	assert.Equal(t, "g3", matches[4].ID)
}

func TestFallbackSearch_Filters(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, nil, nil, createTestLogger(t))

	tests := []struct {
		name   string
		intent models.Intent
		want   []string
	}{
		{
			name:   "max only",
			intent: intentFor("laptop", func(f *models.IntentFields) { f.Budget = models.UnderBudget(40000) }),
			want:   []string{"l2"},
		},
		{
			name:   "min only",
			intent: intentFor("laptop", func(f *models.IntentFields) { f.Budget = models.AboveBudget(40000) }),
			want:   []string{"l1"},
		},
		{
			name:   "brand either direction",
			intent: intentFor("laptop", func(f *models.IntentFields) { f.Brands = []string{"asus rog"} }),
			want:   []string{"l1"},
		},
		{
			name:   "brand substring",
			intent: intentFor("laptop", func(f *models.IntentFields) { f.Brands = []string{"lenovo"} }),
			want:   []string{"l2"},
		},
		{
			name: "intent-only keywords are ignored",
			intent: intentFor("ram", func(f *models.IntentFields) {
				f.Keywords = []string{"ram", "cheap", "best", "affordable"}
			}),
			want: []string{"r1"},
		},
		{
			name:   "product keywords narrow results",
			intent: intentFor("keyboard", func(f *models.IntentFields) { f.Keywords = []string{"keyboard", "wireless"} }),
			want:   []string{"k1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(h.FallbackSearch(context.Background(), tt.intent, testCatalog)))
		})
	}
}

func TestAIScore(t *testing.T) {
	inStock := product("a", "A", "GPU", 1, 1, "")
	outOfStock := product("b", "B", "GPU", 1, 0, "")

	assert.Equal(t, 120.0, AIScore(inStock, models.ReviewStats{}))
	assert.Equal(t, 50.0, AIScore(outOfStock, models.ReviewStats{}))
	assert.Equal(t, 100+45+25+20.0, AIScore(inStock, models.ReviewStats{AvgRating: 4.5, ReviewCount: 300}))
}

// ==========================
// Routing and LLM Scoring Tests
// ==========================

func TestMatch_SimpleSearchSkipsLLM(t *testing.T) {
	llm := &genaitest.MockCompleter{}
	h := NewHandler(createTestConfig(), llm, nil, nil, createTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		Intent:   models.IntentFields{IntentType: models.IntentProductSearch, Category: "laptop", Budget: models.UnderBudget(60000)},
		Products: testCatalog,
	})
	require.NoError(t, err)
	assert.Equal(t, StrategyDeterministic, out.Strategy)
	assert.Equal(t, 2, out.Count)
	llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestMatch_LLMScoringKeepsModelOrder(t *testing.T) {
	llm := &genaitest.MockCompleter{}
	llm.On("Complete", mock.Anything, mock.Anything).
		Return(genaitest.Reply("Here you go:\n```json\n[\"l2\", \"ghost\", \"l1\", \"l2\"]\n```"), nil)

	h := NewHandler(createTestConfig(), llm, nil, nil, createTestLogger(t))
	intent := intentFor("laptop", func(f *models.IntentFields) { f.Features = []string{"lightweight"} })

	out, err := h.Execute(context.Background(), &Input{Intent: models.IntentFields{
		IntentType: intent.IntentType, Category: "laptop", Features: intent.Features,
	}, Products: testCatalog})
	require.NoError(t, err)

	assert.Equal(t, StrategyLLM, out.Strategy)
	assert.Equal(t, []string{"l2", "l1"}, ids(out.Matches))
	assert.Equal(t, 120.0, out.Matches[0].AIScore)
}

func TestMatch_LLMFailuresFallBack(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"provider error", "", errors.New("LLM_REQUEST_FAILED")},
		{"empty array", "[]", nil},
		{"unknown ids only", `["x1", "x2"]`, nil},
		{"not json", "I could not find anything", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &genaitest.MockCompleter{}
			if tt.err != nil {
				llm.On("Complete", mock.Anything, mock.Anything).Return(nil, tt.err)
			} else {
				llm.On("Complete", mock.Anything, mock.Anything).Return(genaitest.Reply(tt.reply), nil)
			}

			h := NewHandler(createTestConfig(), llm, nil, nil, createTestLogger(t))
			intent := intentFor("laptop", func(f *models.IntentFields) { f.Brands = []string{"lenovo"} })
			matches, strategy := h.match(context.Background(), intent, testCatalog)

			assert.Equal(t, StrategyLLMFallback, strategy)
			assert.Equal(t, []string{"l2"}, ids(matches))
		})
	}
}

func TestScoringPrompt_CapsListing(t *testing.T) {
	cfg := createTestConfig()
	cfg.MaxLLMCandidates = 3
	h := NewHandler(cfg, nil, nil, nil, createTestLogger(t))

	prompt := h.scoringPrompt(intentFor("keyboard"), testCatalog)
	assert.Contains(t, prompt, "k1 | Keychron K2 Wireless | ₱4500.00 | Keyboard | Keychron | 3")
	assert.Contains(t, prompt, "mb1 |")
	assert.NotContains(t, prompt, "m1 |")
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    []string
		wantErr bool
	}{
		{"strings", `["a", "b"]`, []string{"a", "b"}, false},
		{"numbers", `[12, 7]`, []string{"12", "7"}, false},
		{"objects", `[{"id": 3}, {"id": "x"}]`, []string{"3", "x"}, false},
		{"fenced with prose", "Sure!\n```\n[\"a\"]\n```", []string{"a"}, false},
		{"garbage", `no ids`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDs(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ==========================
// Catalog Loading Tests
// ==========================

func TestExecute_LoadsCatalogWhenProductsOmitted(t *testing.T) {
	catalog := &MockCatalog{}
	catalog.On("ActiveProducts", mock.Anything).Return(testCatalog, nil)

	h := NewHandler(createTestConfig(), nil, nil, catalog, createTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{
		Intent: models.IntentFields{IntentType: models.IntentProductSearch, Category: "ram"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids(out.Matches))
	catalog.AssertExpectations(t)
}

func TestExecute_CatalogUnavailable(t *testing.T) {
	catalog := &MockCatalog{}
	catalog.On("ActiveProducts", mock.Anything).Return(nil, apperrors.NewCatalogUnavailableError(errors.New("db down")))

	h := NewHandler(createTestConfig(), nil, nil, catalog, createTestLogger(t))
	_, err := h.Execute(context.Background(), &Input{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeCatalogUnavailable, apperrors.CodeOf(err))
}
