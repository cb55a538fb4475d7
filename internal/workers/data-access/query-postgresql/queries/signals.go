// internal/workers/data-access/query-postgresql/queries/signals.go
package queries

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"shopping-assistant/internal/models"
)

const (
	DefaultHistoryLimit   = 10
	DefaultPromotionLimit = 5
)

var ErrOrderNotFound = errors.New("order not found")

// PurchaseHistory returns the user's latest orders with their line items, newest first.
func PurchaseHistory(ctx context.Context, db Querier, userID string, limit int) ([]models.Order, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT o.id, o.order_number, o.status, o.total_amount, o.created_at,
		       COALESCE(oi.product_id::text, ''), COALESCE(oi.product_name, ''),
		       COALESCE(oi.quantity, 0), COALESCE(oi.unit_price, 0)
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE o.id IN (
			SELECT id FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
		)
		ORDER BY o.created_at DESC, o.id`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}
	index := map[string]int{}
	for rows.Next() {
		var o models.Order
		var item models.OrderItem
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.Status, &o.TotalAmount, &o.CreatedAt,
			&item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice,
		); err != nil {
			return nil, err
		}
		i, seen := index[o.ID]
		if !seen {
			o.Items = []models.OrderItem{}
			orders = append(orders, o)
			i = len(orders) - 1
			index[o.ID] = i
		}
		if item.ProductName != "" {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return orders, rows.Err()
}

// ActivePromotions lists active, unexpired vouchers with the largest discount first.
func ActivePromotions(ctx context.Context, db Querier, limit int) ([]models.Voucher, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT code, COALESCE(description, ''), discount_type, discount_value,
		       COALESCE(min_purchase, 0), expires_at
		FROM vouchers
		WHERE is_active = true AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY discount_value DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vouchers := []models.Voucher{}
	for rows.Next() {
		var v models.Voucher
		var expires sql.NullTime
		if err := rows.Scan(&v.Code, &v.Description, &v.DiscountType, &v.DiscountValue, &v.MinPurchase, &expires); err != nil {
			return nil, err
		}
		if expires.Valid {
			t := expires.Time
			v.ExpiresAt = &t
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

func ReviewStats(ctx context.Context, db Querier, productID string) (models.ReviewStats, error) {
	var stats models.ReviewStats
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(rating), 0), COUNT(*)
		FROM reviews
		WHERE product_id = $1`, productID).Scan(&stats.AvgRating, &stats.ReviewCount)
	return stats, err
}

// OrderByNumber loads one of the user's orders with its items.
func OrderByNumber(ctx context.Context, db Querier, userID, orderNumber string) (*models.Order, error) {
	var o models.Order
	err := db.QueryRowContext(ctx, `
		SELECT id, order_number, user_id, status, total_amount, created_at
		FROM orders
		WHERE order_number = $1 AND user_id = $2`, orderNumber, userID).Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.TotalAmount, &o.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT COALESCE(product_id::text, ''), product_name, quantity, unit_price
		FROM order_items
		WHERE order_id = $1`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	o.Items = []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	return &o, rows.Err()
}

// CancelOrder moves the order to cancelled only while it is still in a cancellable state.
// It reports false when the guard did not match, e.g. the order shipped in the meantime.
func CancelOrder(ctx context.Context, db Querier, userID, orderID string) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE orders
		SET status = 'cancelled', updated_at = $4
		WHERE id = $1 AND user_id = $2 AND status = ANY($3)`,
		orderID, userID, pq.Array(models.CancellableStatuses), time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
