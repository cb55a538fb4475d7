// internal/workers/catalog/analyze-image/analyzer.go
package analyzeimage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/genai"
	"shopping-assistant/internal/common/validation"
	"shopping-assistant/internal/models"
)

var (
	ErrNoImage       = errors.New("image url or data is required")
	ErrNotAnImage    = errors.New("content is not an image")
	ErrImageTooLarge = errors.New("image exceeds size limit")
)

const visionPrompt = `Identify the computer product in this image.
Reply with ONE JSON object and nothing else:
{"productType": "gpu|cpu|ram|ssd|hdd|motherboard|psu|case|monitor|laptop|keyboard|mouse|headset|speaker|webcam|cooler|other",
 "brand": "manufacturer or empty string", "model": "model name/number as printed, or empty string",
 "specs": ["visible specifications, e.g. 16GB, DDR5, 850W"], "keywords": ["short descriptive words"],
 "confidence": number between 0 and 1}
Read brand and model from logos, labels and boxes. Do not guess a model you cannot read.`

var descriptorSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["productType"],
	"properties": {
		"productType": {"type": "string"},
		"brand": {"type": ["string", "null"]},
		"model": {"type": ["string", "null"]},
		"specs": {"type": ["array", "null"], "items": {"type": "string"}},
		"keywords": {"type": ["array", "null"], "items": {"type": "string"}},
		"confidence": {"type": ["number", "null"]}
	}
}`)

// imageURL turns the input into something the vision endpoint accepts: the remote URL as is, or a base64 data URL.
func (h *Handler) imageURL(img ImageInput) (string, error) {
	if img.URL != "" {
		return img.URL, nil
	}
	if len(img.Data) == 0 {
		return "", ErrNoImage
	}
	if h.config.MaxImageBytes > 0 && len(img.Data) > h.config.MaxImageBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(img.Data))
	}

	mime := img.MimeType
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotAnImage, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data), nil
}

// Analyze asks the vision model what product the image shows.
func (h *Handler) Analyze(ctx context.Context, img ImageInput, hint string) (models.VisionDescriptor, error) {
	ctx, span := h.tracer.Start(ctx, "vision.analyze", trace.WithAttributes(
		attribute.String("vision.provider", h.config.Provider),
		attribute.Bool("vision.inline", img.URL == ""),
	))
	defer span.End()

	url, err := h.imageURL(img)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return models.VisionDescriptor{}, apperrors.NewInvalidInputError(err.Error())
	}

	text := "What product is this?"
	if hint = strings.TrimSpace(hint); hint != "" {
		text += " Customer note: " + hint
	}

	completion, err := h.llm.Complete(ctx, genai.Request{
		Model: h.config.Model,
		Messages: []genai.Message{
			{Role: genai.RoleSystem, Content: visionPrompt},
			{Role: genai.RoleUser, Content: text},
		},
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
		JSONMode:    supportsJSONMode(h.config.Provider),
		ImageURL:    url,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vision request failed")
		return models.VisionDescriptor{}, apperrors.NewVisionAnalysisFailedError(err)
	}

	descriptor, err := ParseDescriptor(completion.Content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unusable vision reply")
		return models.VisionDescriptor{}, apperrors.NewVisionAnalysisFailedError(err)
	}

	span.SetAttributes(
		attribute.String("vision.product_type", descriptor.ProductType),
		attribute.Float64("vision.confidence", descriptor.Confidence),
	)
	return descriptor, nil
}

// ParseDescriptor validates and normalizes a vision reply.
func ParseDescriptor(reply string) (models.VisionDescriptor, error) {
	raw := genai.ExtractJSON(reply, '{', '}')
	if err := descriptorSchema.ValidateJSON([]byte(raw)).Err(); err != nil {
		return models.VisionDescriptor{}, err
	}

	var d struct {
		ProductType string   `json:"productType"`
		Brand       string   `json:"brand"`
		Model       string   `json:"model"`
		Specs       []string `json:"specs"`
		Keywords    []string `json:"keywords"`
		Confidence  float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return models.VisionDescriptor{}, err
	}
	return models.NewVisionDescriptor(d.ProductType, d.Brand, d.Model, d.Specs, d.Keywords, d.Confidence), nil
}
