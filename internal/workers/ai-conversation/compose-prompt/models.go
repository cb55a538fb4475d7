// internal/workers/ai-conversation/compose-prompt/models.go
package composeprompt

import "shopping-assistant/internal/models"

// ComposeInput is everything the system prompt may describe. Only Products is required.
type ComposeInput struct {
	Products    []models.ProductMatch    `json:"products"`
	Preferences *models.UserPreferences  `json:"userPreferences,omitempty"`
	Store       models.StoreInfo         `json:"storeInfo"`
	User        *models.UserIntelligence `json:"userData,omitempty"`
	Intent      *models.Intent           `json:"intent,omitempty"`
	// FAQs found for this message; the store profile FAQs are used when empty.
	FAQs      []models.FAQ `json:"faqs,omitempty"`
	BuildMode bool         `json:"buildMode,omitempty"`
}

type Input struct {
	Products    []models.ProductMatch    `json:"products"`
	Preferences *models.UserPreferences  `json:"userPreferences,omitempty"`
	Store       models.StoreInfo         `json:"storeInfo"`
	User        *models.UserIntelligence `json:"userData,omitempty"`
	Intent      *models.IntentFields     `json:"intent,omitempty"`
	FAQs        []models.FAQ             `json:"faqs,omitempty"`
	BuildMode   bool                     `json:"buildMode,omitempty"`
}

type Output struct {
	Prompt string `json:"prompt"`
	Length int    `json:"length"`
}
