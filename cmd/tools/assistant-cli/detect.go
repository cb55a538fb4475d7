package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	detectintent "shopping-assistant/internal/workers/ai-conversation/detect-intent"
)

var detectCmd = &cobra.Command{
	Use:   "detect <message>",
	Short: "Turn a shopper message into a structured intent",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log := newLogger()
	llm, err := newLLM(log)
	if err != nil {
		return err
	}

	h := detectintent.NewHandler(detectintent.LoadConfig(), llm, log)
	out, err := h.Execute(ctx, &detectintent.Input{Message: strings.Join(args, " ")})
	if err != nil {
		return err
	}
	return printJSON(cmd, out)
}
