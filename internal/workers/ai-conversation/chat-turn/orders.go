// internal/workers/ai-conversation/chat-turn/orders.go
package chatturn

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/models"
)

type formatter struct {
	p        *message.Printer
	title    cases.Caser
	currency string
}

func newFormatter(currency string) formatter {
	if currency == "" {
		currency = "₱"
	}
	return formatter{
		p:        message.NewPrinter(language.English),
		title:    cases.Title(language.English),
		currency: currency,
	}
}

func (f formatter) money(v float64) string {
	if v == math.Trunc(v) {
		return f.currency + f.p.Sprintf("%.0f", v)
	}
	return f.currency + f.p.Sprintf("%.2f", v)
}

func (f formatter) order(o *models.Order) string {
	lines := []string{
		"Order #" + o.OrderNumber,
		"Status: " + f.title.String(o.Status),
	}
	if !o.CreatedAt.IsZero() {
		lines = append(lines, "Placed: "+o.CreatedAt.Format("Jan 2, 2006"))
	}
	lines = append(lines, "Total: "+f.money(o.TotalAmount))
	if len(o.Items) > 0 {
		lines = append(lines, "Items:")
		for _, it := range o.Items {
			lines = append(lines, fmt.Sprintf("- %d x %s (%s)", it.Quantity, it.ProductName, f.money(it.UnitPrice)))
		}
	}
	return strings.Join(lines, "\n")
}

// handleOrder answers a cancel or tracking request without involving the model.
func (h *Handler) handleOrder(ctx context.Context, userID string, action orderAction, number string, store models.StoreInfo) *ChatResult {
	msgs := h.config.Messages
	reply := func(text string) *ChatResult {
		return &ChatResult{Success: true, Message: text, Source: SourceOrder}
	}

	if userID == "" {
		return reply(msgs.LoginRequired)
	}
	if number == "" {
		return reply(msgs.AskOrderNumber)
	}
	if h.orders == nil {
		return h.failure(ErrorOrderLookup, msgs.GenericFailure, SourceOrder)
	}

	order, err := h.orders.FindOrder(ctx, userID, number)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrCodeOrderNotFound {
			return reply(fmt.Sprintf("I couldn't find order #%s on your account. Please double-check the number from your confirmation email.", number))
		}
		h.logger.Error("order lookup failed", map[string]interface{}{
			"orderNumber": number,
			"error":       err.Error(),
		})
		return h.failure(ErrorOrderLookup, msgs.GenericFailure, SourceOrder)
	}

	f := newFormatter(store.Currency)
	if action == orderTrack {
		return reply(f.order(order))
	}

	switch {
	case order.Status == models.OrderStatusCancelled:
		return reply(fmt.Sprintf("Order #%s is already cancelled.", order.OrderNumber))
	case !order.Cancellable():
		return reply(fmt.Sprintf("Order #%s is already %s, so it can no longer be cancelled. %s",
			order.OrderNumber, order.Status, msgs.SupportRedirect))
	}

	if err := h.orders.CancelOrder(ctx, userID, order); err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrCodeOrderNotCancellable {
			// status moved on between lookup and update
			return reply(fmt.Sprintf("Order #%s changed status while I was processing your request, so it can no longer be cancelled here. %s",
				order.OrderNumber, msgs.SupportRedirect))
		}
		h.logger.Error("order cancellation failed", map[string]interface{}{
			"orderNumber": number,
			"error":       err.Error(),
		})
		return h.failure(ErrorOrderLookup, msgs.GenericFailure, SourceOrder)
	}

	h.logger.Info("order cancelled from chat", map[string]interface{}{
		"orderNumber": order.OrderNumber,
		"userId":      userID,
	})
	return reply(fmt.Sprintf("Order #%s has been cancelled. %s", order.OrderNumber, msgs.RefundTimeline))
}
