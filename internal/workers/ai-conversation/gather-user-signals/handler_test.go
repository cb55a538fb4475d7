package gatherusersignals

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/models"
)

// ==========================
// Mock Signal Source
// ==========================

type MockStore struct {
	mock.Mock
}

func (m *MockStore) PurchaseHistory(ctx context.Context, userID string) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockStore) OwnedComponents(ctx context.Context, userID string) ([]models.Product, error) {
	return m.products("OwnedComponents", ctx, userID)
}

func (m *MockStore) TrendingProducts(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockStore) ActivePromotions(ctx context.Context) ([]models.Voucher, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Voucher), args.Error(1)
}

func (m *MockStore) RecentlyViewed(ctx context.Context, userID string) ([]models.Product, error) {
	return m.products("RecentlyViewed", ctx, userID)
}

func (m *MockStore) products(method string, ctx context.Context, userID string) ([]models.Product, error) {
	args := m.MethodCalled(method, ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return LoadConfig()
}

func healthyStore() *MockStore {
	store := &MockStore{}
	store.On("PurchaseHistory", mock.Anything, "user-1").Return([]models.Order{{OrderNumber: "1000001"}}, nil)
	store.On("OwnedComponents", mock.Anything, "user-1").Return([]models.Product{{ID: "cpu-1"}}, nil)
	store.On("TrendingProducts", mock.Anything).Return([]models.Product{{ID: "gpu-1"}}, nil)
	store.On("ActivePromotions", mock.Anything).Return([]models.Voucher{{Code: "SAVE10"}}, nil)
	store.On("RecentlyViewed", mock.Anything, "user-1").Return([]models.Product{{ID: "ram-1"}}, nil)
	return store
}

// ==========================
// Gather Tests
// ==========================

func TestGather_AllSourcesHealthy(t *testing.T) {
	store := healthyStore()
	h := NewHandler(createTestConfig(), store, nil, logger.NewTestLogger(t))

	data := h.Gather(context.Background(), "user-1")
	assert.Len(t, data.PurchaseHistory, 1)
	assert.Equal(t, "cpu-1", data.UserComponents[0].ID)
	assert.Equal(t, "gpu-1", data.PopularProducts[0].ID)
	assert.Equal(t, "SAVE10", data.ActivePromotions[0].Code)
	assert.Equal(t, "ram-1", data.RecentlyViewed[0].ID)
	store.AssertExpectations(t)
}

func TestGather_OneSourceFailing(t *testing.T) {
	store := &MockStore{}
	store.On("PurchaseHistory", mock.Anything, "user-1").Return(nil, errors.New("timeout"))
	store.On("OwnedComponents", mock.Anything, "user-1").Return([]models.Product{{ID: "cpu-1"}}, nil)
	store.On("TrendingProducts", mock.Anything).Return([]models.Product{{ID: "gpu-1"}}, nil)
	store.On("ActivePromotions", mock.Anything).Return([]models.Voucher{{Code: "SAVE10"}}, nil)
	store.On("RecentlyViewed", mock.Anything, "user-1").Return([]models.Product{{ID: "ram-1"}}, nil)

	before := testutil.ToFloat64(metrics.SourceFallbacks.WithLabelValues("purchase_history"))

	h := NewHandler(createTestConfig(), store, nil, logger.NewTestLogger(t))
	data := h.Gather(context.Background(), "user-1")

	assert.NotNil(t, data.PurchaseHistory)
	assert.Empty(t, data.PurchaseHistory)
	assert.Len(t, data.UserComponents, 1)
	assert.Len(t, data.PopularProducts, 1)
	assert.Len(t, data.ActivePromotions, 1)
	assert.Len(t, data.RecentlyViewed, 1)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SourceFallbacks.WithLabelValues("purchase_history")))
}

func TestGather_AllSourcesFailingStillWellFormed(t *testing.T) {
	boom := errors.New("database unavailable")
	store := &MockStore{}
	store.On("PurchaseHistory", mock.Anything, mock.Anything).Return(nil, boom)
	store.On("OwnedComponents", mock.Anything, mock.Anything).Return(nil, boom)
	store.On("TrendingProducts", mock.Anything).Return(nil, boom)
	store.On("ActivePromotions", mock.Anything).Return(nil, boom)
	store.On("RecentlyViewed", mock.Anything, mock.Anything).Return(nil, boom)

	h := NewHandler(createTestConfig(), store, nil, logger.NewTestLogger(t))
	raw, err := json.Marshal(h.Gather(context.Background(), "user-1"))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"purchaseHistory": [],
		"userComponents": [],
		"recentlyViewed": [],
		"popularProducts": [],
		"activePromotions": []
	}`, string(raw))
}

func TestGather_PanickingSourceIsContained(t *testing.T) {
	store := &MockStore{}
	store.On("PurchaseHistory", mock.Anything, "user-1").Return([]models.Order{}, nil)
	store.On("OwnedComponents", mock.Anything, "user-1").Return([]models.Product{}, nil)
	store.On("TrendingProducts", mock.Anything).Run(func(mock.Arguments) { panic("nil map") }).Return(nil, nil)
	store.On("ActivePromotions", mock.Anything).Return([]models.Voucher{{Code: "SAVE10"}}, nil)
	store.On("RecentlyViewed", mock.Anything, "user-1").Return([]models.Product{{ID: "ram-1"}}, nil)

	h := NewHandler(createTestConfig(), store, nil, logger.NewTestLogger(t))
	data := h.Gather(context.Background(), "user-1")

	assert.Empty(t, data.PopularProducts)
	assert.Len(t, data.ActivePromotions, 1)
}

func TestExecute_AnonymousUserSkipsStores(t *testing.T) {
	store := &MockStore{}
	h := NewHandler(createTestConfig(), store, nil, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)
	assert.Empty(t, out.UserData.PurchaseHistory)
	assert.NotNil(t, out.UserData.PurchaseHistory)
	store.AssertNotCalled(t, "PurchaseHistory", mock.Anything, mock.Anything)
}

// ==========================
// Cache Tests
// ==========================

func TestExecute_CachesSignals(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := healthyStore()
	h := NewHandler(createTestConfig(), store, rdb, logger.NewTestLogger(t))

	first, err := h.Execute(context.Background(), &Input{UserID: "user-1"})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.True(t, mr.Exists("ai:signals:user-1"))

	second, err := h.Execute(context.Background(), &Input{UserID: "user-1"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.UserData, second.UserData)
	store.AssertNumberOfCalls(t, "PurchaseHistory", 1)
}

func TestExecute_RedisDownStillGathers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	h := NewHandler(createTestConfig(), healthyStore(), rdb, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{UserID: "user-1"})
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.Len(t, out.UserData.RecentlyViewed, 1)
}
