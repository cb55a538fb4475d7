// Package storefront is the assistant's read side of the shop: catalog, orders, vouchers,
// reviews and the per-user session signals kept in Redis.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "shopping-assistant/internal/common/errors"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/workers/data-access/query-postgresql/queries"
)

const (
	CatalogCacheKey = "catalog:active_products"

	recentlyViewedLimit = 10
)

// Tables are the storefront tables the queries read or update.
var Tables = []string{"products", "brands", "categories", "orders", "order_items", "reviews", "vouchers"}

func consentKey(userID string) string {
	return "ai:consent:" + userID
}

func recentlyViewedKey(userID string) string {
	return "user:" + userID + ":recently_viewed"
}

type Config struct {
	CatalogTTL time.Duration
}

type Store struct {
	db     queries.Querier
	redis  *redis.Client
	config Config
	logger logger.Logger
}

// New builds a Store. redisClient may be nil, which disables caching and session signals.
func New(db queries.Querier, redisClient *redis.Client, cfg Config, log logger.Logger) *Store {
	if cfg.CatalogTTL == 0 {
		cfg.CatalogTTL = 5 * time.Minute
	}
	return &Store{
		db:     db,
		redis:  redisClient,
		config: cfg,
		logger: log.With(map[string]interface{}{"component": "storefront"}),
	}
}

// ActiveProducts serves the catalog from Redis when cached and refreshes the cache from Postgres otherwise.
func (s *Store) ActiveProducts(ctx context.Context) ([]models.Product, error) {
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, CatalogCacheKey).Bytes()
		switch {
		case err == nil:
			var products []models.Product
			if err := json.Unmarshal(raw, &products); err == nil {
				return products, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("catalog cache read failed", map[string]interface{}{"error": err.Error()})
		}
	}

	products, err := queries.ActiveProducts(ctx, s.db)
	if err != nil {
		return nil, apperrors.NewCatalogUnavailableError(err)
	}

	if s.redis != nil {
		if data, err := json.Marshal(products); err == nil {
			if err := s.redis.Set(ctx, CatalogCacheKey, data, s.config.CatalogTTL).Err(); err != nil {
				s.logger.Warn("catalog cache write failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	return products, nil
}

func (s *Store) InvalidateCatalog(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, CatalogCacheKey).Err()
}

func (s *Store) PurchaseHistory(ctx context.Context, userID string) ([]models.Order, error) {
	return queries.PurchaseHistory(ctx, s.db, userID, queries.DefaultHistoryLimit)
}

func (s *Store) OwnedComponents(ctx context.Context, userID string) ([]models.Product, error) {
	return queries.OwnedComponents(ctx, s.db, userID)
}

func (s *Store) TrendingProducts(ctx context.Context) ([]models.Product, error) {
	return queries.TrendingProducts(ctx, s.db, queries.DefaultTrendingLimit)
}

func (s *Store) ActivePromotions(ctx context.Context) ([]models.Voucher, error) {
	return queries.ActivePromotions(ctx, s.db, queries.DefaultPromotionLimit)
}

func (s *Store) ReviewStats(ctx context.Context, productID string) (models.ReviewStats, error) {
	return queries.ReviewStats(ctx, s.db, productID)
}

func (s *Store) FindOrder(ctx context.Context, userID, orderNumber string) (*models.Order, error) {
	orderNumber = strings.TrimPrefix(strings.TrimSpace(orderNumber), "#")
	order, err := queries.OrderByNumber(ctx, s.db, userID, orderNumber)
	if errors.Is(err, queries.ErrOrderNotFound) {
		return nil, apperrors.NewOrderNotFoundError(orderNumber)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(string(models.QueryTypeOrderByNumber), err)
	}
	return order, nil
}

// CancelOrder returns an ORDER_NOT_CANCELLABLE error when the order left the cancellable
// states before the update ran.
func (s *Store) CancelOrder(ctx context.Context, userID string, order *models.Order) error {
	ok, err := queries.CancelOrder(ctx, s.db, userID, order.ID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("cancel_order", err)
	}
	if !ok {
		s.logger.Warn("order cancellation guard missed", map[string]interface{}{
			"userId":      userID,
			"orderNumber": order.OrderNumber,
			"status":      order.Status,
		})
		return apperrors.NewOrderNotCancellableError(order.OrderNumber, order.Status)
	}
	s.logger.Info("order cancelled by customer", map[string]interface{}{
		"userId":  userID,
		"orderId": order.ID,
	})
	return nil
}

// AIConsent returns the stored consent flag, or nil when the user never set one.
func (s *Store) AIConsent(ctx context.Context, userID string) (*bool, error) {
	if s.redis == nil {
		return nil, nil
	}
	val, err := s.redis.Get(ctx, consentKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read consent: %w", err)
	}
	consent, err := strconv.ParseBool(val)
	if err != nil {
		return nil, fmt.Errorf("consent value %q: %w", val, err)
	}
	return &consent, nil
}

func (s *Store) SetAIConsent(ctx context.Context, userID string, consent bool) error {
	if s.redis == nil {
		return errors.New("session store not configured")
	}
	return s.redis.Set(ctx, consentKey(userID), strconv.FormatBool(consent), 0).Err()
}

// TrackView records a product view, keeping the newest views first.
func (s *Store) TrackView(ctx context.Context, userID, productID string) error {
	if s.redis == nil {
		return nil
	}
	key := recentlyViewedKey(userID)
	pipe := s.redis.TxPipeline()
	pipe.LRem(ctx, key, 0, productID)
	pipe.LPush(ctx, key, productID)
	pipe.LTrim(ctx, key, 0, recentlyViewedLimit-1)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) RecentlyViewed(ctx context.Context, userID string) ([]models.Product, error) {
	if s.redis == nil {
		return []models.Product{}, nil
	}
	ids, err := s.redis.LRange(ctx, recentlyViewedKey(userID), 0, recentlyViewedLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recently viewed: %w", err)
	}
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	return queries.ProductsByIDs(ctx, s.db, ids)
}
