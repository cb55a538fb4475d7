package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	detectintent "shopping-assistant/internal/workers/ai-conversation/detect-intent"
	matchproducts "shopping-assistant/internal/workers/catalog/match-products"
)

var matchLimit int

var matchCmd = &cobra.Command{
	Use:   "match <message>",
	Short: "Detect the intent of a message and rank the catalog against it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMatch,
}

func init() {
	matchCmd.Flags().IntVar(&matchLimit, "limit", 10, "maximum matches to print")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log := newLogger()
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	llm, err := newLLM(log)
	if err != nil {
		return err
	}

	intent := detectintent.NewHandler(detectintent.LoadConfig(), llm, log).
		Detect(ctx, strings.Join(args, " "))

	h := matchproducts.NewHandler(matchproducts.LoadConfig(), llm, nil, nil, log)
	out, err := h.Execute(ctx, &matchproducts.Input{
		Intent:   intent.Fields(),
		Products: catalog,
		Limit:    matchLimit,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{
		"intent":  intent,
		"matches": out,
	})
}
