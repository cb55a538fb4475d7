package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	analyzeimage "shopping-assistant/internal/workers/catalog/analyze-image"
)

var (
	visionImage    string
	visionHint     string
	visionModel    string
	visionProvider string
)

var visionCmd = &cobra.Command{
	Use:   "vision",
	Short: "Describe a product photo and match it against the catalog file",
	RunE:  runVision,
}

func init() {
	visionCmd.Flags().StringVar(&visionImage, "image", "", "image file path or http(s) URL (required)")
	visionCmd.Flags().StringVar(&visionHint, "hint", "", "customer note sent with the image")
	visionCmd.Flags().StringVar(&visionModel, "vision-model", os.Getenv("ASSISTANT_VISION_MODEL"), "vision model (defaults to --model)")
	visionCmd.Flags().StringVar(&visionProvider, "provider", envOr("ASSISTANT_VISION_PROVIDER", "openai"), "openai, groq or openrouter")
	_ = visionCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(visionCmd)
}

func imageInput(ref string) (*analyzeimage.Input, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return &analyzeimage.Input{ImageURL: ref}, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return &analyzeimage.Input{ImageBase64: base64.StdEncoding.EncodeToString(data)}, nil
}

func runVision(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log := newLogger()
	if offline {
		return fmt.Errorf("vision needs the LLM; drop --offline")
	}
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	llm, err := newLLM(log)
	if err != nil {
		return err
	}

	input, err := imageInput(visionImage)
	if err != nil {
		return err
	}
	input.Hint = visionHint
	input.Products = catalog

	cfg := analyzeimage.LoadConfig()
	cfg.Model = visionModel
	if cfg.Model == "" {
		cfg.Model = model
	}
	cfg.Provider = visionProvider
	cfg.Timeout = timeout

	out, err := analyzeimage.NewHandler(cfg, llm, nil, log).Execute(ctx, input)
	if err != nil {
		return err
	}
	return printJSON(cmd, out)
}
