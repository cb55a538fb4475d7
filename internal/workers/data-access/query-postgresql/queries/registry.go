// internal/workers/data-access/query-postgresql/queries/registry.go
package queries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopping-assistant/internal/models"
)

var (
	ErrMissingParam     = errors.New("missing required parameter")
	ErrUnknownQueryType = errors.New("unknown query type")
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// QueryFunc returns: data, rowCount, error
type QueryFunc func(ctx context.Context, db Querier, params map[string]interface{}) (interface{}, int, error)

var Registry = map[models.QueryType]QueryFunc{
	models.QueryTypeActiveProducts: func(ctx context.Context, db Querier, _ map[string]interface{}) (interface{}, int, error) {
		products, err := ActiveProducts(ctx, db)
		return products, len(products), err
	},
	models.QueryTypePurchaseHistory: func(ctx context.Context, db Querier, params map[string]interface{}) (interface{}, int, error) {
		userID, err := stringParam(params, "userId")
		if err != nil {
			return nil, 0, err
		}
		orders, err := PurchaseHistory(ctx, db, userID, intParam(params, "limit", DefaultHistoryLimit))
		return orders, len(orders), err
	},
	models.QueryTypeOwnedComponents: func(ctx context.Context, db Querier, params map[string]interface{}) (interface{}, int, error) {
		userID, err := stringParam(params, "userId")
		if err != nil {
			return nil, 0, err
		}
		products, err := OwnedComponents(ctx, db, userID)
		return products, len(products), err
	},
	models.QueryTypeTrendingProducts: func(ctx context.Context, db Querier, params map[string]interface{}) (interface{}, int, error) {
		products, err := TrendingProducts(ctx, db, intParam(params, "limit", DefaultTrendingLimit))
		return products, len(products), err
	},
	models.QueryTypeActivePromotions: func(ctx context.Context, db Querier, params map[string]interface{}) (interface{}, int, error) {
		vouchers, err := ActivePromotions(ctx, db, intParam(params, "limit", DefaultPromotionLimit))
		return vouchers, len(vouchers), err
	},
	models.QueryTypeReviewStats: func(ctx context.Context, db Querier, params map[string]interface{}) (interface{}, int, error) {
		productID, err := stringParam(params, "productId")
		if err != nil {
			return nil, 0, err
		}
		stats, err := ReviewStats(ctx, db, productID)
		return stats, 1, err
	},
	models.QueryTypeOrderByNumber: func(ctx context.Context, db Querier, params map[string]interface{}) (interface{}, int, error) {
		userID, err := stringParam(params, "userId")
		if err != nil {
			return nil, 0, err
		}
		number, err := stringParam(params, "orderNumber")
		if err != nil {
			return nil, 0, err
		}
		order, err := OrderByNumber(ctx, db, userID, number)
		if err != nil {
			return nil, 0, err
		}
		return order, 1, nil
	},
	models.QueryTypeProductsByIDs: func(ctx context.Context, db Querier, params map[string]interface{}) (interface{}, int, error) {
		ids := stringsParam(params, "productIds")
		if len(ids) == 0 {
			return nil, 0, fmt.Errorf("%w: productIds", ErrMissingParam)
		}
		products, err := ProductsByIDs(ctx, db, ids)
		return products, len(products), err
	},
}

// Execute runs a registered query and reports its execution time in milliseconds.
func Execute(ctx context.Context, db Querier, queryType models.QueryType, params map[string]interface{}) (interface{}, int, int64, error) {
	fn, exists := Registry[queryType]
	if !exists {
		return nil, 0, 0, fmt.Errorf("%w: %s", ErrUnknownQueryType, queryType)
	}
	start := time.Now()
	data, rowCount, err := fn(ctx, db, params)
	if err != nil {
		return nil, 0, 0, err
	}
	return data, rowCount, time.Since(start).Milliseconds(), nil
}

func stringParam(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, key)
	}
	return v, nil
}

func intParam(params map[string]interface{}, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

func stringsParam(params map[string]interface{}, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
