package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"shopping-assistant/internal/models"
	"shopping-assistant/internal/storefront"
	chatturn "shopping-assistant/internal/workers/ai-conversation/chat-turn"
	detectintent "shopping-assistant/internal/workers/ai-conversation/detect-intent"
	matchproducts "shopping-assistant/internal/workers/catalog/match-products"
	"shopping-assistant/pkg/registry"
)

var chatHistory []string

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Run one assistant turn over the catalog file",
	Long: `chat runs the full turn pipeline: FAQ routing, intent detection, product selection,
prompt composition and the reply. Earlier turns can be supplied with --turn "user:..." or
--turn "assistant:...", oldest first. Order lookups and consent need the live stores and are
not available here.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringArrayVar(&chatHistory, "turn", nil, "earlier turn as sender:text (repeatable)")
	rootCmd.AddCommand(chatCmd)
}

// fileCatalog serves a catalog loaded from disk.
type fileCatalog []models.Product

func (c fileCatalog) ActiveProducts(context.Context) ([]models.Product, error) {
	return c, nil
}

func parseHistory(turns []string) []models.Message {
	out := make([]models.Message, 0, len(turns)+1)
	for _, t := range turns {
		sender, text, ok := strings.Cut(t, ":")
		if !ok {
			out = append(out, models.Message{Sender: models.SenderUser, Text: t})
			continue
		}
		s := models.SenderUser
		if strings.EqualFold(strings.TrimSpace(sender), string(models.SenderAssistant)) {
			s = models.SenderAssistant
		}
		out = append(out, models.Message{Sender: s, Text: strings.TrimSpace(text)})
	}
	return out
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log := newLogger()
	catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	profile, err := registry.LoadProfile(profilePath)
	if err != nil {
		return err
	}
	llm, err := newLLM(log)
	if err != nil {
		return err
	}

	h := chatturn.NewHandler(chatturn.LoadConfig().WithProfile(profile), chatturn.Dependencies{
		LLM:     llm,
		Catalog: fileCatalog(catalog),
		FAQs:    storefront.NewFAQIndex(nil, "", profile.FAQs, log),
		Intents: detectintent.NewHandler(detectintent.LoadConfig(), llm, log),
		Matcher: matchproducts.NewHandler(matchproducts.LoadConfig(), llm, nil, nil, log),
	}, log)

	messages := append(parseHistory(chatHistory), models.Message{
		Sender: models.SenderUser,
		Text:   strings.Join(args, " "),
	})
	return printJSON(cmd, h.Chat(ctx, chatturn.ChatRequest{Messages: messages}))
}
