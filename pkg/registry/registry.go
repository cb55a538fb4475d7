// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shopping-assistant/internal/models"
)

// LoadProfile reads a store profile and fills anything it leaves out from DefaultProfile.
// An empty path returns the default profile.
func LoadProfile(path string) (*StoreProfile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var loaded StoreProfile
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse store profile %s: %w", path, err)
	}
	merge(profile, &loaded)

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

func (p *StoreProfile) Validate() error {
	ids := make(map[string]bool)
	for i, f := range p.FAQs {
		if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
			return fmt.Errorf("faq %d: question and answer are required", i)
		}
		if f.ID == "" {
			continue
		}
		if ids[f.ID] {
			return fmt.Errorf("duplicate faq id: %s", f.ID)
		}
		ids[f.ID] = true
	}
	return nil
}

// AddFAQ appends f and bumps LastUpdated. The ID must be unique within the profile.
func (p *StoreProfile) AddFAQ(f models.FAQ) error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("faq id is required")
	}
	if strings.TrimSpace(f.Question) == "" || strings.TrimSpace(f.Answer) == "" {
		return fmt.Errorf("faq %s: question and answer are required", f.ID)
	}
	for _, existing := range p.FAQs {
		if existing.ID == f.ID {
			return fmt.Errorf("faq with id %s already exists", f.ID)
		}
	}
	p.FAQs = append(p.FAQs, f)
	p.Store.FAQs = p.FAQs
	p.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// SaveProfile writes p as indented JSON, creating the parent directory when needed.
func SaveProfile(p *StoreProfile, path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store profile: %w", err)
	}
	return nil
}

// WarrantyFAQ returns the FAQ that answers broken or defective product reports.
func WarrantyFAQ(faqs []models.FAQ) (models.FAQ, bool) {
	for _, f := range faqs {
		if strings.EqualFold(f.Category, "warranty") {
			return f, true
		}
	}
	for _, f := range faqs {
		q := strings.ToLower(f.Question)
		if strings.Contains(q, "warranty") || strings.Contains(q, "defective") || strings.Contains(q, "broken") {
			return f, true
		}
	}
	return models.FAQ{}, false
}

func merge(dst, src *StoreProfile) {
	if src.Version != "" {
		dst.Version = src.Version
	}
	if src.LastUpdated != "" {
		dst.LastUpdated = src.LastUpdated
	}
	if src.Store.Name != "" {
		dst.Store.Name = src.Store.Name
	}
	if src.Store.Currency != "" {
		dst.Store.Currency = src.Store.Currency
	}
	if src.Store.SupportEmail != "" {
		dst.Store.SupportEmail = src.Store.SupportEmail
	}
	if src.Store.SupportPhone != "" {
		dst.Store.SupportPhone = src.Store.SupportPhone
	}
	if src.Store.RefundDays != "" {
		dst.Store.RefundDays = src.Store.RefundDays
	}
	if len(src.FAQs) > 0 {
		dst.FAQs = src.FAQs
	}

	m, s := &dst.Messages, src.Messages
	for _, pair := range []struct {
		dst *string
		src string
	}{
		{&m.ConsentRefusal, s.ConsentRefusal},
		{&m.RateLimited, s.RateLimited},
		{&m.GenericFailure, s.GenericFailure},
		{&m.LoginRequired, s.LoginRequired},
		{&m.AskOrderNumber, s.AskOrderNumber},
		{&m.SupportRedirect, s.SupportRedirect},
		{&m.RefundTimeline, s.RefundTimeline},
		{&m.InvalidInput, s.InvalidInput},
		{&m.CancelledTurn, s.CancelledTurn},
		{&m.BuildFallbackNote, s.BuildFallbackNote},
	} {
		if pair.src != "" {
			*pair.dst = pair.src
		}
	}
	dst.Store.FAQs = dst.FAQs
}

func DefaultProfile() *StoreProfile {
	faqs := []models.FAQ{
		{
			ID:       "faq-warranty",
			Question: "What if my product is broken or defective?",
			Answer:   "All products carry the manufacturer warranty. Report a defective item within 7 days of delivery for a free replacement; after that, we process warranty claims with the manufacturer. Send your order number and photos of the issue to our support team to start a claim.",
			Category: "warranty",
			Keywords: []string{"broken", "defective", "damaged", "not working", "warranty"},
		},
		{
			ID:       "faq-returns",
			Question: "What is your return and refund policy?",
			Answer:   "Unused items in their original packaging can be returned within 7 days of delivery. Refunds are issued to the original payment method within 5-7 business days after we receive the item.",
			Category: "returns",
			Keywords: []string{"return", "refund", "exchange", "policy"},
		},
		{
			ID:       "faq-shipping",
			Question: "How long does shipping take?",
			Answer:   "Metro Manila orders arrive in 1-3 business days and provincial orders in 3-7 business days. You will receive a tracking number once your order ships.",
			Category: "shipping",
			Keywords: []string{"shipping", "delivery", "courier", "tracking"},
		},
		{
			ID:       "faq-payment",
			Question: "What payment methods do you accept?",
			Answer:   "We accept credit and debit cards, GCash, Maya, bank transfer and cash on delivery for orders below ₱50,000.",
			Category: "payment",
			Keywords: []string{"payment", "gcash", "cod", "card", "installment"},
		},
	}

	return &StoreProfile{
		Version: "1",
		Store: models.StoreInfo{
			Name:         "PC Parts Store",
			Currency:     "₱",
			SupportEmail: "support@example.com",
			RefundDays:   "5-7 business days",
			FAQs:         faqs,
		},
		FAQs: faqs,
		Messages: AssistantMessages{
			ConsentRefusal:    "You have turned off AI assistance in your privacy settings. You can enable it again under Settings > Privacy, or contact our support team for help.",
			RateLimited:       "Our assistant is receiving a lot of requests right now. Please try again in a minute.",
			GenericFailure:    "Sorry, I ran into a problem while answering. Please try again, or browse our catalog in the meantime.",
			LoginRequired:     "Please log in so I can look up your orders.",
			AskOrderNumber:    "Sure! Could you give me your order number? It looks like #1234567 and is in your confirmation email.",
			SupportRedirect:   "Please contact our support team and they will help you with this order.",
			RefundTimeline:    "Your refund will be returned to your original payment method within 5-7 business days.",
			InvalidInput:      "Please type a message so I can help you.",
			CancelledTurn:     "Request cancelled.",
			BuildFallbackNote: "Our AI assistant is busy right now, so here is a quick list of components that fit your budget.",
		},
	}
}
