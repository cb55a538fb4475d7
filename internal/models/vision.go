// internal/models/vision.go
package models

import "strings"

// VisionDescriptor is what the vision model saw in one image.
type VisionDescriptor struct {
	ProductType string   `json:"productType"`
	Brand       string   `json:"brand"`
	Model       string   `json:"model"`
	Specs       []string `json:"specs"`
	Keywords    []string `json:"keywords"`
	Confidence  float64  `json:"confidence"`
}

func NewVisionDescriptor(productType, brand, model string, specs, keywords []string, confidence float64) VisionDescriptor {
	return VisionDescriptor{
		ProductType: strings.ToLower(strings.TrimSpace(productType)),
		Brand:       strings.TrimSpace(brand),
		Model:       strings.TrimSpace(model),
		Specs:       normalizeList(specs),
		Keywords:    normalizeList(keywords),
		Confidence:  clamp01(confidence),
	}
}
