// internal/models/query_types.go
package models

type QueryType string

const (
	QueryTypeActiveProducts   QueryType = "active_products"
	QueryTypePurchaseHistory  QueryType = "purchase_history"
	QueryTypeOwnedComponents  QueryType = "owned_components"
	QueryTypeTrendingProducts QueryType = "trending_products"
	QueryTypeActivePromotions QueryType = "active_promotions"
	QueryTypeReviewStats      QueryType = "review_stats"
	QueryTypeOrderByNumber    QueryType = "order_by_number"
	QueryTypeProductsByIDs    QueryType = "products_by_ids"
)
