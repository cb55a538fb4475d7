// internal/workers/ai-conversation/compose-prompt/composer.go
package composeprompt

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"shopping-assistant/internal/models"
)

const defaultCurrency = "₱"

var behaviorRules = []string{
	"You are a friendly, knowledgeable sales assistant for a computer hardware store.",
	"Only recommend products from the AVAILABLE PRODUCTS list; never invent products, prices or stock.",
	"Quote prices exactly as listed, with the currency symbol.",
	"Prefer in-stock items. If something is out of stock, say so and offer the closest in-stock alternative.",
	"Respect the customer's budget. If nothing fits, say so and show the closest options.",
	"Explain briefly why each suggestion fits the customer's use case.",
	"Mention relevant promotions or discounts when they apply to the products you suggest.",
	"When the request is vague, recommend two or three options and ask one short clarifying question.",
	"Keep answers concise: short paragraphs or bullet lists, at most five products per reply.",
	"For orders, refunds and warranty claims, follow the store policies below and point to support when unsure.",
}

var buildRules = []string{
	"The customer wants to assemble a PC. Propose one part per category: CPU, motherboard, RAM, GPU, storage, PSU, case and cooler when needed.",
	"Check compatibility: CPU socket matches the motherboard, RAM generation (DDR4/DDR5) matches the board, the case fits the board form factor.",
	"Size the PSU with at least 20% headroom over the estimated system draw.",
	"Keep the total within the budget and show the total price.",
	"Reuse components the customer already owns when they are compatible.",
	"Never suggest a laptop as part of a desktop build.",
}

type composer struct {
	p        *message.Printer
	currency string
}

// Compose builds the system prompt. It is pure: the same input always yields the same text.
func Compose(in ComposeInput) string {
	c := composer{
		p:        message.NewPrinter(language.English),
		currency: in.Store.Currency,
	}
	if c.currency == "" {
		c.currency = defaultCurrency
	}

	var sections []string
	if in.Intent != nil {
		sections = append(sections, c.intentSection(*in.Intent))
	}
	if in.BuildMode || (in.Intent != nil && in.Intent.IsBuildRequest()) {
		sections = append(sections, section("PC BUILD ASSISTANT MODE", bullets(buildRules)))
	}
	sections = append(sections, section("ASSISTANT RULES", bullets(behaviorRules)))
	sections = append(sections, c.productSection(in.Products))

	faqs := in.FAQs
	if len(faqs) == 0 {
		faqs = in.Store.FAQs
	}
	optional := []string{
		c.storeSection(in.Store, faqs),
		c.preferencesSection(in.Preferences),
	}
	if in.User != nil {
		optional = append(optional,
			c.historySection(in.User.PurchaseHistory),
			c.productListSection("CUSTOMER'S OWNED COMPONENTS", in.User.UserComponents),
			c.productListSection("RECENTLY VIEWED", in.User.RecentlyViewed),
			c.productListSection("TRENDING PRODUCTS", in.User.PopularProducts),
			c.promotionsSection(in.User.ActivePromotions),
		)
	}
	optional = append(optional,
		c.topRatedSection(in.Products),
		c.lowStockSection(in.Products),
		c.discountSection(in.Products),
	)
	for _, s := range optional {
		if s != "" {
			sections = append(sections, s)
		}
	}

	return strings.Join(sections, "\n\n")
}

func section(title, body string) string {
	return "=== " + title + " ===\n" + body
}

func bullets(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = "- " + l
	}
	return strings.Join(out, "\n")
}

func (c composer) money(v float64) string {
	if v == math.Trunc(v) {
		return c.currency + c.p.Sprintf("%.0f", v)
	}
	return c.currency + c.p.Sprintf("%.2f", v)
}

func (c composer) number(v int) string {
	return c.p.Sprintf("%d", v)
}

func (c composer) budget(b models.Budget) string {
	switch {
	case b.Min != nil && b.Max != nil && *b.Min == *b.Max:
		return c.money(*b.Min)
	case b.Min != nil && b.Max != nil:
		return c.money(*b.Min) + " - " + c.money(*b.Max)
	case b.Max != nil:
		return "up to " + c.money(*b.Max)
	case b.Min != nil:
		return "from " + c.money(*b.Min)
	}
	return ""
}

func (c composer) intentSection(intent models.Intent) string {
	lines := []string{"Type: " + string(intent.IntentType)}
	if intent.Category != nil {
		lines = append(lines, "Category: "+*intent.Category)
	}
	if !intent.Budget.IsEmpty() {
		lines = append(lines, "Budget: "+c.budget(intent.Budget)+" ("+string(intent.Budget.Type)+")")
	} else if intent.IsAffordable() {
		lines = append(lines, "Budget: no figure given, prefer the cheapest suitable options")
	}
	if len(intent.Brands) > 0 {
		lines = append(lines, "Brands: "+strings.Join(intent.Brands, ", "))
	}
	if len(intent.Features) > 0 {
		lines = append(lines, "Features: "+strings.Join(intent.Features, ", "))
	}
	if len(intent.Keywords) > 0 {
		lines = append(lines, "Keywords: "+strings.Join(intent.Keywords, ", "))
	}
	if intent.UseCase != nil {
		lines = append(lines, "Use case: "+*intent.UseCase)
	}
	lines = append(lines, "Confidence: "+c.p.Sprintf("%.0f%%", intent.Confidence*100))
	return section("DETECTED INTENT", strings.Join(lines, "\n"))
}

func (c composer) productLine(m models.ProductMatch) string {
	parts := []string{"[" + m.ID + "] " + m.Name}
	if m.Brand != "" {
		parts = append(parts, m.Brand)
	}
	if m.ComponentType != "" {
		parts = append(parts, m.ComponentType)
	}
	price := c.money(m.Price)
	if m.HasDiscount() {
		price += " (was " + c.money(m.OriginalPrice) + ", -" + c.number(m.DiscountPercent()) + "%)"
	}
	parts = append(parts, price)
	if m.InStock() {
		parts = append(parts, "stock: "+c.number(m.StockQuantity))
	} else {
		parts = append(parts, "OUT OF STOCK")
	}
	if m.ReviewCount > 0 {
		parts = append(parts, c.p.Sprintf("rating %.1f (%d reviews)", m.AvgRating, m.ReviewCount))
	}
	if spec := m.SpecText(); spec != "" {
		parts = append(parts, "specs: "+strings.TrimSpace(spec))
	}
	return "- " + strings.Join(parts, " | ")
}

func (c composer) productSection(products []models.ProductMatch) string {
	if len(products) == 0 {
		return section("AVAILABLE PRODUCTS", "No matching products are in the catalog right now. Say so honestly.")
	}

	shown := products
	if len(shown) > MaxListedProducts {
		shown = shown[:MaxListedProducts]
	}
	lines := make([]string, 0, len(shown)+1)
	for _, m := range shown {
		lines = append(lines, c.productLine(m))
	}
	if rest := len(products) - len(shown); rest > 0 {
		lines = append(lines, "... "+c.number(rest)+" more products not shown")
	}
	return section("AVAILABLE PRODUCTS ("+c.number(len(products))+")", strings.Join(lines, "\n"))
}

func (c composer) storeSection(store models.StoreInfo, faqs []models.FAQ) string {
	if len(faqs) == 0 {
		return ""
	}
	var lines []string
	if store.Name != "" {
		lines = append(lines, "Store: "+store.Name)
	}
	if store.SupportEmail != "" || store.SupportPhone != "" {
		lines = append(lines, "Support: "+strings.TrimSpace(store.SupportEmail+" "+store.SupportPhone))
	}
	if store.RefundDays != "" {
		lines = append(lines, "Refunds are processed within "+store.RefundDays+".")
	}
	for _, f := range faqs {
		lines = append(lines, "Q: "+f.Question+"\nA: "+f.Answer)
	}
	return section("STORE POLICIES", strings.Join(lines, "\n"))
}

func (c composer) preferencesSection(p *models.UserPreferences) string {
	if p.IsEmpty() {
		return ""
	}
	var lines []string
	if p.PrimaryUse != "" {
		lines = append(lines, "Primary use: "+p.PrimaryUse)
	}
	if p.BudgetRange != "" {
		lines = append(lines, "Budget range: "+p.BudgetRange)
	}
	if p.ExperienceLevel != "" {
		lines = append(lines, "Experience level: "+p.ExperienceLevel)
	}
	if len(p.PreferredBrands) > 0 {
		lines = append(lines, "Preferred brands: "+strings.Join(p.PreferredBrands, ", "))
	}
	if len(p.Priorities) > 0 {
		lines = append(lines, "Priorities: "+strings.Join(p.Priorities, ", "))
	}
	return section("CUSTOMER PREFERENCES", strings.Join(lines, "\n"))
}

func (c composer) historySection(orders []models.Order) string {
	if len(orders) == 0 {
		return ""
	}
	lines := make([]string, 0, len(orders))
	for _, o := range orders {
		items := make([]string, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, c.number(it.Quantity)+"x "+it.ProductName)
		}
		line := "- #" + o.OrderNumber + " (" + o.CreatedAt.Format("Jan 2, 2006") + ", " + o.Status + ", " + c.money(o.TotalAmount) + ")"
		if len(items) > 0 {
			line += ": " + strings.Join(items, ", ")
		}
		lines = append(lines, line)
	}
	return section("PURCHASE HISTORY", strings.Join(lines, "\n"))
}

func (c composer) productListSection(title string, products []models.Product) string {
	if len(products) == 0 {
		return ""
	}
	lines := make([]string, 0, len(products))
	for _, p := range products {
		line := "- " + p.Name
		if p.ComponentType != "" {
			line += " (" + p.ComponentType + ")"
		}
		line += " " + c.money(p.Price)
		lines = append(lines, line)
	}
	return section(title, strings.Join(lines, "\n"))
}

func (c composer) promotionsSection(vouchers []models.Voucher) string {
	if len(vouchers) == 0 {
		return ""
	}
	lines := make([]string, 0, len(vouchers))
	for _, v := range vouchers {
		var discount string
		if v.DiscountType == "percentage" {
			discount = c.p.Sprintf("%.0f%% off", v.DiscountValue)
		} else {
			discount = c.money(v.DiscountValue) + " off"
		}
		line := "- " + v.Code + ": " + discount
		if v.Description != "" {
			line += ", " + v.Description
		}
		if v.MinPurchase > 0 {
			line += ", min. spend " + c.money(v.MinPurchase)
		}
		if v.ExpiresAt != nil {
			line += ", until " + v.ExpiresAt.Format("Jan 2, 2006")
		}
		lines = append(lines, line)
	}
	return section("ACTIVE PROMOTIONS", strings.Join(lines, "\n"))
}

func (c composer) topRatedSection(products []models.ProductMatch) string {
	var rated []models.ProductMatch
	for _, m := range products {
		if m.AvgRating >= topRatedMinRating && m.ReviewCount >= topRatedMinReviews {
			rated = append(rated, m)
		}
	}
	if len(rated) == 0 {
		return ""
	}
	sort.SliceStable(rated, func(i, j int) bool {
		if rated[i].AvgRating != rated[j].AvgRating {
			return rated[i].AvgRating > rated[j].AvgRating
		}
		return rated[i].ReviewCount > rated[j].ReviewCount
	})
	if len(rated) > topRatedLimit {
		rated = rated[:topRatedLimit]
	}

	lines := make([]string, len(rated))
	for i, m := range rated {
		lines[i] = "- " + m.Name + c.p.Sprintf(": %.1f stars from %d reviews", m.AvgRating, m.ReviewCount)
	}
	return section("TOP RATED", strings.Join(lines, "\n"))
}

func (c composer) lowStockSection(products []models.ProductMatch) string {
	var lines []string
	for _, m := range products {
		if m.StockQuantity > 0 && m.StockQuantity < lowStockThreshold {
			lines = append(lines, "- "+m.Name+": only "+c.number(m.StockQuantity)+" left")
			if len(lines) == alertLimit {
				break
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return section("LOW STOCK", strings.Join(lines, "\n"))
}

func (c composer) discountSection(products []models.ProductMatch) string {
	var lines []string
	for _, m := range products {
		if m.HasDiscount() {
			lines = append(lines, "- "+m.Name+": "+c.money(m.Price)+" (was "+c.money(m.OriginalPrice)+", save "+c.number(m.DiscountPercent())+"%)")
			if len(lines) == alertLimit {
				break
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return section("ACTIVE DISCOUNTS", strings.Join(lines, "\n"))
}
