package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Intent
// ==========================

func TestNewIntent_Normalizes(t *testing.T) {
	in := NewIntent(IntentFields{
		IntentType: "not-a-type",
		Category:   "  GPU ",
		Brands:     []string{"NVIDIA", "nvidia", " "},
		Confidence: 1.7,
		Budget:     Budget{Min: ptr(20000), Max: ptr(40000), Type: BudgetAround},
	})

	assert.Equal(t, IntentProductSearch, in.IntentType)
	assert.Equal(t, "gpu", in.CategoryName())
	assert.Equal(t, []string{"nvidia"}, in.Brands)
	assert.NotNil(t, in.Features)
	assert.NotNil(t, in.Keywords)
	assert.Equal(t, 1.0, in.Confidence)
	assert.Equal(t, 27000.0, *in.Budget.Min)
	assert.Equal(t, 33000.0, *in.Budget.Max)
	assert.Nil(t, in.UseCase)
}

func TestNewIntent_JSONShape(t *testing.T) {
	raw, err := json.Marshal(NewIntent(IntentFields{IntentType: IntentGreeting}))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"intentType": "greeting",
		"category": null,
		"budget": {},
		"brands": [],
		"features": [],
		"keywords": [],
		"useCase": null,
		"confidence": 0
	}`, string(raw))
}

func TestIntent_Flags(t *testing.T) {
	assert.True(t, NewIntent(IntentFields{Features: []string{"Affordable"}}).IsAffordable())
	assert.False(t, NewIntent(IntentFields{Features: []string{"rgb"}}).IsAffordable())
	assert.True(t, NewIntent(IntentFields{IntentType: IntentBuildHelp}).IsBuildRequest())
	assert.True(t, NewIntent(IntentFields{Keywords: []string{"build"}}).IsBuildRequest())
}

func TestIntent_FieldsRoundTrip(t *testing.T) {
	in := NewIntent(IntentFields{
		IntentType: IntentRecommendation,
		Category:   "laptop",
		Budget:     UnderBudget(50000),
		Brands:     []string{"asus"},
		Keywords:   []string{"laptop", "school"},
		UseCase:    "school",
		Confidence: 0.8,
	})
	assert.Equal(t, in, NewIntent(in.Fields()))

	greeting := NewIntent(IntentFields{IntentType: IntentGreeting})
	f := greeting.Fields()
	assert.Empty(t, f.Category)
	assert.Empty(t, f.UseCase)
}

// ==========================
// Product
// ==========================

func TestDeriveComponentType(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		category string
		want     string
	}{
		{"object with component_type", `{"component_type": "Processor"}`, "CPU", "Processor"},
		{"camel case key", `{"componentType": "Graphics Card"}`, "", "Graphics Card"},
		{"array of selections", `[{"type": ""}, {"type": "Motherboard"}]`, "", "Motherboard"},
		{"nested name", `{"category": {"name": "Laptop"}}`, "Computers", "Laptop"},
		{"bare string", `"Keyboard"`, "", "Keyboard"},
		{"malformed json falls back", `{oops`, "Mouse", "Mouse"},
		{"empty falls back", ``, "Monitor", "Monitor"},
		{"no known keys falls back", `{"sku": "x"}`, "Speaker", "Speaker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveComponentType([]byte(tt.raw), tt.category))
		})
	}
}

func TestProduct_Discount(t *testing.T) {
	p := Product{Price: 7500, OriginalPrice: 10000}
	assert.True(t, p.HasDiscount())
	assert.Equal(t, 25, p.DiscountPercent())
	assert.False(t, Product{Price: 10, OriginalPrice: 10}.HasDiscount())
}

func TestProductMatch_FlattensProduct(t *testing.T) {
	raw, err := json.Marshal(ProductMatch{Product: Product{ID: "p1", Name: "RTX 4060"}, AIScore: 140})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "p1", out["id"])
	assert.Equal(t, 140.0, out["aiScore"])
}

// ==========================
// Conversation
// ==========================

func TestRecentTurns(t *testing.T) {
	msgs := []Message{
		{SenderUser, "hi"},
		{SenderAssistant, "hello"},
		{SenderUser, "show gpus"},
		{SenderAssistant, "here"},
		{SenderUser, "cheaper?"},
		{SenderAssistant, "thinking..."},
	}

	got := RecentTurns(msgs, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "show gpus", got[0].Text)
	assert.Equal(t, "cheaper?", got[2].Text)
	assert.Equal(t, SenderUser, got[len(got)-1].Sender)

	assert.Empty(t, RecentTurns([]Message{{SenderAssistant, "welcome"}}, 6))
}

func TestLastUserMessage(t *testing.T) {
	text, ok := LastUserMessage([]Message{{SenderUser, "first"}, {SenderUser, "  "}, {SenderAssistant, "x"}})
	assert.True(t, ok)
	assert.Equal(t, "first", text)

	_, ok = LastUserMessage(nil)
	assert.False(t, ok)
}

// ==========================
// Signals and vision
// ==========================

func TestNewUserIntelligence_EmptyArrays(t *testing.T) {
	raw, err := json.Marshal(NewUserIntelligence())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"purchaseHistory": [],
		"userComponents": [],
		"recentlyViewed": [],
		"popularProducts": [],
		"activePromotions": []
	}`, string(raw))
}

func TestOrder_Cancellable(t *testing.T) {
	assert.True(t, Order{Status: OrderStatusPending}.Cancellable())
	assert.True(t, Order{Status: OrderStatusProcessing}.Cancellable())
	assert.False(t, Order{Status: OrderStatusShipped}.Cancellable())
	assert.False(t, Order{Status: OrderStatusDelivered}.Cancellable())
	assert.False(t, Order{Status: OrderStatusCancelled}.Cancellable())
}

func TestNewVisionDescriptor(t *testing.T) {
	d := NewVisionDescriptor(" GPU ", " ASUS ", "RTX 4070", []string{"12GB", "12gb"}, nil, -0.3)
	assert.Equal(t, "gpu", d.ProductType)
	assert.Equal(t, "ASUS", d.Brand)
	assert.Equal(t, []string{"12gb"}, d.Specs)
	assert.NotNil(t, d.Keywords)
	assert.Equal(t, 0.0, d.Confidence)
}
