// internal/workers/data-access/query-postgresql/models.go
package querypostgresql

import "shopping-assistant/internal/models"

type Input struct {
	QueryType   string   `json:"queryType"`
	UserID      string   `json:"userId,omitempty"`
	ProductID   string   `json:"productId,omitempty"`
	ProductIDs  []string `json:"productIds,omitempty"`
	OrderNumber string   `json:"orderNumber,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}

type Output struct {
	QueryType          string      `json:"queryType"`
	Data               interface{} `json:"data"`
	RowCount           int         `json:"rowCount"`
	QueryExecutionTime int64       `json:"queryExecutionTime"` // milliseconds
}

type QueryType = models.QueryType
