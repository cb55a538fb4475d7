// internal/workers/data-access/query-postgresql/queries/products.go
package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"shopping-assistant/internal/models"
)

const (
	DefaultTrendingLimit = 10
)

// PCComponentSlugs are the category slugs that count as PC parts a user owns.
var PCComponentSlugs = []string{
	"cpu", "processor", "motherboard", "ram", "memory", "gpu", "graphics-card",
	"ssd", "hdd", "storage", "psu", "power-supply", "case", "pc-case", "cooler", "cpu-cooler",
}

const productColumns = `p.id, p.name, COALESCE(p.description, ''), p.price, COALESCE(p.original_price, 0),
	p.stock_quantity, COALESCE(p.specifications::text, '{}'), COALESCE(p.selected_components::text, ''),
	COALESCE(p.image_url, ''), p.status, COALESCE(b.name, ''), COALESCE(c.name, ''), COALESCE(c.slug, '')`

const productJoins = `
	LEFT JOIN brands b ON b.id = p.brand_id
	LEFT JOIN categories c ON c.id = p.category_id`

func ActiveProducts(ctx context.Context, db Querier) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p`+productJoins+`
		WHERE p.status = 'active'
		ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

// OwnedComponents lists PC parts from the user's non-cancelled orders.
func OwnedComponents(ctx context.Context, db Querier, userID string) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT ON (p.id) `+productColumns+`
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id`+productJoins+`
		WHERE o.user_id = $1 AND o.status <> 'cancelled' AND c.slug = ANY($2)
		ORDER BY p.id`, userID, pq.Array(PCComponentSlugs))
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

// TrendingProducts ranks active products by units ordered in the last 30 days.
func TrendingProducts(ctx context.Context, db Querier, limit int) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id`+productJoins+`
		WHERE o.created_at >= NOW() - INTERVAL '30 days'
		  AND o.status <> 'cancelled'
		  AND p.status = 'active'
		GROUP BY p.id, b.name, c.name, c.slug
		ORDER BY SUM(oi.quantity) DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanProducts(rows)
}

// ProductsByIDs returns products in the order of ids, skipping unknown ones.
func ProductsByIDs(ctx context.Context, db Querier, ids []string) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p`+productJoins+`
		WHERE p.id::text = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	ordered := make([]models.Product, 0, len(products))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
			delete(byID, id)
		}
	}
	return ordered, nil
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		var specs, components string
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice,
			&p.StockQuantity, &specs, &components,
			&p.ImageURL, &p.Status, &p.Brand, &p.Category, &p.CategorySlug,
		); err != nil {
			return nil, err
		}
		if specs != "" {
			if err := json.Unmarshal([]byte(specs), &p.Specifications); err != nil {
				return nil, fmt.Errorf("product %s: decode specifications: %w", p.ID, err)
			}
		}
		p.ComponentType = models.DeriveComponentType([]byte(components), p.Category)
		products = append(products, p)
	}
	return products, rows.Err()
}
