package analyzeimage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/genai"
	"shopping-assistant/internal/common/genai/genaitest"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

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

const pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

const cpuReply = `{"productType": "CPU", "brand": "Intel", "model": "Core i7-13700K",
	"specs": ["16 cores"], "keywords": ["processor", "Boxed"], "confidence": 0.92}`

func createTestConfig() *Config {
	cfg := LoadConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Model = "vision-test"
	return cfg
}

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func testCatalog() []models.Product {
	return []models.Product{
		{ID: "c1", Name: "Intel Core i7-13700K Processor", Brand: "Intel", ComponentType: "cpu", Category: "Processors", Price: 24000, StockQuantity: 4,
			Specifications: map[string]interface{}{"cores": "16 cores"}},
		{ID: "c2", Name: "Intel Core i5-13400F", Brand: "Intel", ComponentType: "cpu", Category: "Processors", Price: 12000, StockQuantity: 9},
		{ID: "c3", Name: "AMD Ryzen 7 7700X", Brand: "AMD", ComponentType: "cpu", Category: "Processors", Price: 21000, StockQuantity: 2},
		{ID: "g1", Name: "ASUS Dual RTX 4070 OC", Brand: "ASUS", ComponentType: "gpu", Category: "Graphics Cards", Price: 36000, StockQuantity: 1},
		{ID: "k1", Name: "Black Mechanical Keyboard", Brand: "Rakk", ComponentType: "keyboard", Category: "Peripherals", Price: 2500, StockQuantity: 10},
	}
}

func ids(matches []models.ProductMatch) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.ID)
	}
	return out
}

// ==========================
// Matching Tests
// ==========================

func TestScore_BrandAndModelIsStrongMatch(t *testing.T) {
	d := models.NewVisionDescriptor("", "Intel", "Core i7-13700K", nil, nil, 0.9)
	p := models.Product{Name: "Intel Core i7-13700K Processor"}

	assert.GreaterOrEqual(t, Score(d, p), 90.0)
}

func TestScore_ModelIgnoresSpacingAndHyphens(t *testing.T) {
	d := models.NewVisionDescriptor("gpu", "ASUS", "RTX4070", nil, nil, 0.8)
	score := Score(d, testCatalog()[3])

	// brand + model + type
	assert.Equal(t, 125.0, score)
}

func TestScore_TypeSynonyms(t *testing.T) {
	tests := []struct {
		productType string
		product     models.Product
		want        float64
	}{
		{"cpu", models.Product{Name: "Some Processor"}, typeWeight},
		{"gpu", models.Product{Name: "X", Category: "Graphics Cards"}, typeWeight},
		{"ram", models.Product{Name: "16GB DDR5 Memory Kit"}, typeWeight},
		{"psu", models.Product{Name: "X", ComponentType: "psu"}, typeWeight},
		{"other", models.Product{Name: "Other thing"}, 0},
		{"monitor", models.Product{Name: "Mechanical Keyboard"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.productType, func(t *testing.T) {
			d := models.NewVisionDescriptor(tt.productType, "", "", nil, nil, 1)
			assert.Equal(t, tt.want, Score(d, tt.product))
		})
	}
}

func TestScore_KeywordsAndSpecs(t *testing.T) {
	d := models.NewVisionDescriptor("", "", "", []string{"16 cores", "lga1700"}, []string{"processor"}, 1)
	p := testCatalog()[0]

	// keyword in name and category, one spec hit
	assert.Equal(t, float64(keywordInName+keywordInCategory+specWeight), Score(d, p))
}

func TestMatchProducts_DropsWeakMatches(t *testing.T) {
	d := models.NewVisionDescriptor("", "", "", nil, []string{"black"}, 0.4)

	matches := MatchProducts(d, testCatalog())
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestMatchProducts_RanksAndAnnotates(t *testing.T) {
	d := models.NewVisionDescriptor("cpu", "Intel", "Core i7-13700K", nil, nil, 0.9)

	matches := MatchProducts(d, testCatalog())
	require.Equal(t, []string{"c1", "c2", "c3"}, ids(matches))
	assert.Equal(t, 125.0, matches[0].MatchScore)
	assert.Equal(t, 75.0, matches[1].MatchScore)
	assert.Equal(t, 35.0, matches[2].MatchScore)
}

func TestMatchProducts_TiesPreferStockThenPrice(t *testing.T) {
	catalog := []models.Product{
		{ID: "gone", Name: "Corsair 32GB RAM", Price: 5000, StockQuantity: 0},
		{ID: "pricey", Name: "Corsair 32GB RAM", Price: 8000, StockQuantity: 3},
		{ID: "cheap", Name: "Corsair 32GB RAM", Price: 6000, StockQuantity: 3},
	}
	d := models.NewVisionDescriptor("ram", "Corsair", "", nil, nil, 0.7)

	assert.Equal(t, []string{"cheap", "pricey", "gone"}, ids(MatchProducts(d, catalog)))
}

func TestMatchProducts_CapsResults(t *testing.T) {
	var catalog []models.Product
	for i := 0; i < 15; i++ {
		catalog = append(catalog, models.Product{ID: fmt.Sprintf("m%d", i), Name: "Logitech Mouse", Price: float64(1000 + i), StockQuantity: 1})
	}
	d := models.NewVisionDescriptor("mouse", "Logitech", "", nil, nil, 0.7)

	matches := MatchProducts(d, catalog)
	require.Len(t, matches, MaxMatches)
	assert.Equal(t, "m0", matches[0].ID)
}

// ==========================
// Analyze Tests
// ==========================

func TestAnalyze_RemoteURL(t *testing.T) {
	llm := &genaitest.MockCompleter{}
	llm.On("Complete", mock.Anything, mock.MatchedBy(func(req genai.Request) bool {
		return req.ImageURL == "https://cdn.example.com/cpu.jpg" &&
			req.JSONMode &&
			req.Model == "vision-test" &&
			strings.Contains(req.Messages[1].Content, "Customer note: is this in stock?")
	})).Return(genaitest.Reply(cpuReply), nil)

	h := NewHandler(createTestConfig(), llm, nil, createTestLogger(t))
	d, err := h.Analyze(context.Background(), ImageInput{URL: "https://cdn.example.com/cpu.jpg"}, " is this in stock? ")
	require.NoError(t, err)

	assert.Equal(t, "cpu", d.ProductType)
	assert.Equal(t, "Intel", d.Brand)
	assert.Equal(t, "Core i7-13700K", d.Model)
	assert.Equal(t, []string{"processor", "boxed"}, d.Keywords)
	assert.Equal(t, 0.92, d.Confidence)
	llm.AssertExpectations(t)
}

func TestAnalyze_InlineBytesSniffed(t *testing.T) {
	llm := &genaitest.MockCompleter{}
	llm.On("Complete", mock.Anything, mock.MatchedBy(func(req genai.Request) bool {
		return strings.HasPrefix(req.ImageURL, "data:image/png;base64,")
	})).Return(genaitest.Reply("```json\n"+cpuReply+"\n```"), nil)

	h := NewHandler(createTestConfig(), llm, nil, createTestLogger(t))
	_, err := h.Analyze(context.Background(), ImageInput{Data: []byte(pngHeader)}, "")
	require.NoError(t, err)
	llm.AssertExpectations(t)
}

func TestAnalyze_JSONModeOnlyForSupportingProviders(t *testing.T) {
	llm := &genaitest.MockCompleter{}
	llm.On("Complete", mock.Anything, mock.MatchedBy(func(req genai.Request) bool {
		return !req.JSONMode
	})).Return(genaitest.Reply(cpuReply), nil)

	cfg := createTestConfig()
	cfg.Provider = "openrouter"
	h := NewHandler(cfg, llm, nil, createTestLogger(t))

	_, err := h.Analyze(context.Background(), ImageInput{URL: "https://cdn.example.com/cpu.jpg"}, "")
	require.NoError(t, err)
	llm.AssertExpectations(t)
}

func TestAnalyze_RejectsBadImages(t *testing.T) {
	tests := []struct {
		name string
		img  ImageInput
	}{
		{"nothing", ImageInput{}},
		{"text bytes", ImageInput{Data: []byte("hello, this is not a picture")}},
		{"declared non-image", ImageInput{Data: []byte(pngHeader), MimeType: "application/pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &genaitest.MockCompleter{}
			h := NewHandler(createTestConfig(), llm, nil, createTestLogger(t))

			_, err := h.Analyze(context.Background(), tt.img, "")
			assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
			llm.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
		})
	}
}

func TestAnalyze_FailuresAreVisionErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply *genai.Completion
		err   error
	}{
		{"provider error", nil, errors.New("status 500")},
		{"prose", genaitest.Reply("Looks like a graphics card to me!"), nil},
		{"missing product type", genaitest.Reply(`{"brand": "Intel"}`), nil},
		{"wrong types", genaitest.Reply(`{"productType": "cpu", "specs": "16 cores"}`), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &genaitest.MockCompleter{}
			llm.On("Complete", mock.Anything, mock.Anything).Return(tt.reply, tt.err)
			h := NewHandler(createTestConfig(), llm, nil, createTestLogger(t))

			_, err := h.Analyze(context.Background(), ImageInput{URL: "https://cdn.example.com/x.jpg"}, "")
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeVisionAnalysisFailed, apperrors.CodeOf(err))
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestExecute_DecodesBase64AndLoadsCatalog(t *testing.T) {
	llm := &genaitest.MockCompleter{}
	llm.On("Complete", mock.Anything, mock.Anything).Return(genaitest.Reply(cpuReply), nil)
	catalog := &MockCatalog{}
	catalog.On("ActiveProducts", mock.Anything).Return(testCatalog(), nil)

	h := NewHandler(createTestConfig(), llm, catalog, createTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{
		ImageBase64: base64.StdEncoding.EncodeToString([]byte(pngHeader)),
	})
	require.NoError(t, err)

	assert.Equal(t, "cpu", out.Descriptor.ProductType)
	require.NotEmpty(t, out.Matches)
	assert.Equal(t, "c1", out.Matches[0].ID)
	catalog.AssertExpectations(t)
}

func TestExecute_CatalogFailureKeepsDescriptor(t *testing.T) {
	llm := &genaitest.MockCompleter{}
	llm.On("Complete", mock.Anything, mock.Anything).Return(genaitest.Reply(cpuReply), nil)
	catalog := &MockCatalog{}
	catalog.On("ActiveProducts", mock.Anything).Return(nil, errors.New("db down"))

	h := NewHandler(createTestConfig(), llm, catalog, createTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{ImageURL: "https://cdn.example.com/cpu.jpg"})
	require.NoError(t, err)

	assert.Equal(t, "Intel", out.Descriptor.Brand)
	assert.Empty(t, out.Matches)
}

func TestExecute_InvalidBase64(t *testing.T) {
	h := NewHandler(createTestConfig(), &genaitest.MockCompleter{}, nil, createTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{ImageBase64: "%%%"})
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))
}

func TestExecute_NilInput(t *testing.T) {
	h := NewHandler(createTestConfig(), &genaitest.MockCompleter{}, nil, createTestLogger(t))

	_, err := h.Execute(context.Background(), nil)
	assert.Error(t, err)
}
