// internal/workers/catalog/analyze-image/models.go
package analyzeimage

import "shopping-assistant/internal/models"

// ImageInput carries either a remote URL or raw bytes.
type ImageInput struct {
	URL      string
	Data     []byte
	MimeType string
}

type Input struct {
	ImageURL    string           `json:"imageUrl,omitempty"`
	ImageBase64 string           `json:"imageBase64,omitempty"`
	MimeType    string           `json:"mimeType,omitempty"`
	Hint        string           `json:"hint,omitempty"`
	Products    []models.Product `json:"products,omitempty"`
}

type Output struct {
	Descriptor models.VisionDescriptor `json:"descriptor"`
	Matches    []models.ProductMatch   `json:"matches"`
}
