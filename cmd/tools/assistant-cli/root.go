package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/genai"
	commonhttp "shopping-assistant/internal/common/http"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/models"
)

var (
	verbose     bool
	offline     bool
	model       string
	baseURL     string
	catalogPath string
	profilePath string
	timeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "assistant-cli",
	Short: "Run shopping assistant stages locally against a catalog file",
	Long: `assistant-cli drives the intent detector, product matcher, chat turn and vision analyzer
without Zeebe or the databases. Products come from a JSON catalog file and LLM keys from
ASSISTANT_API_KEYS; with --offline every stage uses its deterministic fallback.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline decisions to stderr")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "never call the LLM")
	rootCmd.PersistentFlags().StringVar(&model, "model", envOr("ASSISTANT_MODEL", "gpt-4o-mini"), "chat model")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", os.Getenv("ASSISTANT_BASE_URL"), "OpenAI-compatible base URL")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "JSON file holding an array of products")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "store profile JSON (defaults to the built-in profile)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "overall deadline")
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func newLogger() logger.Logger {
	if verbose {
		return logger.NewZapAdapter(logger.NewWithOutput("debug", "console", "stderr"))
	}
	return logger.NewZapAdapter(logger.NewWithOutput("warn", "console", "stderr"))
}

// newLLM returns nil in offline mode or when no keys are configured, which every stage treats as "LLM unavailable".
func newLLM(log logger.Logger) (genai.ChatCompleter, error) {
	if offline {
		return nil, nil
	}
	keys := config.SplitKeys(os.Getenv("ASSISTANT_API_KEYS"))
	if len(keys) == 0 {
		log.Warn("ASSISTANT_API_KEYS not set, running offline", nil)
		return nil, nil
	}
	client, err := genai.New(genai.Config{
		APIKeys:        keys,
		BaseURL:        baseURL,
		Model:          model,
		Temperature:    0.7,
		MaxTokens:      1024,
		RequestTimeout: 30 * time.Second,
	}, commonhttp.NewClient(35*time.Second, "assistant-cli"), log)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	return client, nil
}

func loadCatalog() ([]models.Product, error) {
	if catalogPath == "" {
		return nil, fmt.Errorf("--catalog is required")
	}
	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", catalogPath, err)
	}
	return products, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
