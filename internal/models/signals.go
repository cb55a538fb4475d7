// internal/models/signals.go
package models

import "time"

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// CancellableStatuses are the order states a customer may still cancel from chat.
var CancellableStatuses = []string{OrderStatusPending, OrderStatusProcessing}

type Order struct {
	ID          string      `json:"id"`
	OrderNumber string      `json:"orderNumber"`
	UserID      string      `json:"userId,omitempty"`
	Status      string      `json:"status"`
	TotalAmount float64     `json:"totalAmount"`
	CreatedAt   time.Time   `json:"createdAt"`
	Items       []OrderItem `json:"items"`
}

func (o Order) Cancellable() bool {
	for _, s := range CancellableStatuses {
		if o.Status == s {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

type Voucher struct {
	Code          string     `json:"code"`
	Description   string     `json:"description"`
	DiscountType  string     `json:"discountType"` // percentage | fixed
	DiscountValue float64    `json:"discountValue"`
	MinPurchase   float64    `json:"minPurchase"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

type ReviewStats struct {
	AvgRating   float64 `json:"avgRating"`
	ReviewCount int     `json:"reviewCount"`
}

type FAQ struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords,omitempty"`
}

type StoreInfo struct {
	Name         string `json:"name"`
	Currency     string `json:"currency"`
	SupportEmail string `json:"supportEmail,omitempty"`
	SupportPhone string `json:"supportPhone,omitempty"`
	RefundDays   string `json:"refundDays,omitempty"`
	FAQs         []FAQ  `json:"faqs,omitempty"`
}

// UserPreferences are the shopper's questionnaire answers.
type UserPreferences struct {
	PrimaryUse      string   `json:"primaryUse,omitempty"`
	BudgetRange     string   `json:"budgetRange,omitempty"`
	ExperienceLevel string   `json:"experienceLevel,omitempty"`
	PreferredBrands []string `json:"preferredBrands,omitempty"`
	Priorities      []string `json:"priorities,omitempty"`
}

func (p *UserPreferences) IsEmpty() bool {
	return p == nil || (p.PrimaryUse == "" && p.BudgetRange == "" && p.ExperienceLevel == "" &&
		len(p.PreferredBrands) == 0 && len(p.Priorities) == 0)
}

// UserIntelligence is assembled per turn. Every slice is non-nil so it always serializes as an array.
type UserIntelligence struct {
	PurchaseHistory  []Order   `json:"purchaseHistory"`
	UserComponents   []Product `json:"userComponents"`
	RecentlyViewed   []Product `json:"recentlyViewed"`
	PopularProducts  []Product `json:"popularProducts"`
	ActivePromotions []Voucher `json:"activePromotions"`
}

func NewUserIntelligence() UserIntelligence {
	return UserIntelligence{
		PurchaseHistory:  []Order{},
		UserComponents:   []Product{},
		RecentlyViewed:   []Product{},
		PopularProducts:  []Product{},
		ActivePromotions: []Voucher{},
	}
}
