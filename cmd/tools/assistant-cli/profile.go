package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"shopping-assistant/internal/models"
	"shopping-assistant/pkg/registry"
)

var (
	faqID       string
	faqQuestion string
	faqAnswer   string
	faqCategory string
	faqKeywords string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and edit the store profile JSON",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective profile (file merged over defaults)",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := registry.LoadProfile(profilePath)
		if err != nil {
			return err
		}
		return printJSON(cmd, p)
	},
}

var profileValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the profile file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if profilePath == "" {
			return fmt.Errorf("--profile is required")
		}
		p, err := registry.LoadProfile(profilePath)
		if err != nil {
			return fmt.Errorf("profile validation failed: %w", err)
		}
		if _, ok := registry.WarrantyFAQ(p.FAQs); !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: no warranty FAQ, defect reports will go to the LLM")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Profile validation passed. Found %d FAQs.\n", len(p.FAQs))
		return nil
	},
}

var profileAddFAQCmd = &cobra.Command{
	Use:   "add-faq",
	Short: "Add an FAQ to the profile file, creating it from defaults if missing",
	RunE:  runAddFAQ,
}

func init() {
	f := profileAddFAQCmd.Flags()
	f.StringVar(&faqID, "id", "", "FAQ id (e.g. faq-pickup)")
	f.StringVar(&faqQuestion, "question", "", "question text")
	f.StringVar(&faqAnswer, "answer", "", "answer text")
	f.StringVar(&faqCategory, "category", "", "category (warranty, returns, shipping, ...)")
	f.StringVar(&faqKeywords, "keywords", "", "comma-separated search keywords")
	_ = profileAddFAQCmd.MarkFlagRequired("id")
	_ = profileAddFAQCmd.MarkFlagRequired("question")
	_ = profileAddFAQCmd.MarkFlagRequired("answer")

	profileCmd.AddCommand(profileShowCmd, profileValidateCmd, profileAddFAQCmd)
	rootCmd.AddCommand(profileCmd)
}

func runAddFAQ(cmd *cobra.Command, args []string) error {
	if profilePath == "" {
		return fmt.Errorf("--profile is required")
	}

	p, err := registry.LoadProfile(profilePath)
	if errors.Is(err, os.ErrNotExist) {
		p, err = registry.DefaultProfile(), nil
	}
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	var keywords []string
	for _, k := range strings.Split(faqKeywords, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, strings.ToLower(k))
		}
	}
	if err := p.AddFAQ(models.FAQ{
		ID:       faqID,
		Question: faqQuestion,
		Answer:   faqAnswer,
		Category: faqCategory,
		Keywords: keywords,
	}); err != nil {
		return err
	}
	if err := registry.SaveProfile(p, profilePath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added FAQ: %s\n", faqID)
	return nil
}
