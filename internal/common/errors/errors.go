// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeCancelled    ErrorCode = "CANCELLED"

	ErrCodeConsentDenied ErrorCode = "CONSENT_DENIED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeInvalidQueryType         ErrorCode = "INVALID_QUERY_TYPE"
	ErrCodeCatalogUnavailable       ErrorCode = "CATALOG_UNAVAILABLE"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeIndexNotFound     ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeOrderNotFound       ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeOrderNotCancellable ErrorCode = "ORDER_NOT_CANCELLABLE"

	ErrCodeLLMRateLimited     ErrorCode = "LLM_RATE_LIMITED"
	ErrCodeLLMKeysExhausted   ErrorCode = "LLM_KEYS_EXHAUSTED"
	ErrCodeLLMRequestFailed   ErrorCode = "LLM_REQUEST_FAILED"
	ErrCodeLLMTimeout         ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMResponseInvalid ErrorCode = "LLM_RESPONSE_INVALID"

	ErrCodeVisionAnalysisFailed ErrorCode = "VISION_ANALYSIS_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is keeps working through a StandardError.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// AsStandardError finds a StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the StandardError code in err's chain, or "" when there is none.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ""
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewInvalidInputError(details string) *StandardError {
	e := newError(ErrCodeInvalidInput, "Invalid input", nil, false)
	e.Details = details
	return e
}

func NewCancelledError(err error) *StandardError {
	return newError(ErrCodeCancelled, "Request cancelled", err, false)
}

// NewConsentDeniedError is returned when the user opted out of AI processing.
func NewConsentDeniedError(userID string) *StandardError {
	e := newError(ErrCodeConsentDenied, "AI assistant consent not granted", nil, false)
	e.Details = fmt.Sprintf("userId: %s", userID)
	return e
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err, true)
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	e := newError(ErrCodeQueryExecutionFailed, "Database query execution error", err, true)
	e.Details = fmt.Sprintf("queryType: %s, error: %v", queryType, err)
	return e
}

func NewQueryTimeoutError(queryType string) *StandardError {
	e := newError(ErrCodeQueryTimeout, "Database query timeout", nil, true)
	e.Details = fmt.Sprintf("queryType: %s", queryType)
	return e
}

func NewInvalidQueryTypeError(queryType string) *StandardError {
	e := newError(ErrCodeInvalidQueryType, "Unsupported query type", nil, false)
	e.Details = fmt.Sprintf("queryType: %s", queryType)
	return e
}

func NewCatalogUnavailableError(err error) *StandardError {
	return newError(ErrCodeCatalogUnavailable, "Product catalog unavailable", err, true)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	e := newError(ErrCodeSearchQueryFailed, "Elasticsearch query error", err, true)
	e.Details = fmt.Sprintf("index: %s, error: %v", index, err)
	return e
}

func NewIndexNotFoundError(indexName string) *StandardError {
	e := newError(ErrCodeIndexNotFound, "Elasticsearch index not found", nil, false)
	e.Details = fmt.Sprintf("indexName: %s", indexName)
	return e
}

func NewOrderNotFoundError(orderNumber string) *StandardError {
	e := newError(ErrCodeOrderNotFound, "Order not found", nil, false)
	e.Details = fmt.Sprintf("orderNumber: %s", orderNumber)
	return e
}

func NewOrderNotCancellableError(orderNumber, status string) *StandardError {
	e := newError(ErrCodeOrderNotCancellable, "Order can no longer be cancelled", nil, false)
	e.Details = fmt.Sprintf("orderNumber: %s, status: %s", orderNumber, status)
	return e
}

func NewLLMRateLimitedError(keyIndex int, err error) *StandardError {
	return newError(ErrCodeLLMRateLimited, "LLM provider rate limited the request", err, true).
		WithMetadata("keyIndex", keyIndex)
}

// NewLLMKeysExhaustedError is returned once every configured key answered 429.
func NewLLMKeysExhaustedError(attempts int, err error) *StandardError {
	return newError(ErrCodeLLMKeysExhausted, "All API keys are rate limited", err, false).
		WithMetadata("attempts", attempts)
}

func NewLLMRequestFailedError(err error) *StandardError {
	return newError(ErrCodeLLMRequestFailed, "LLM request failed", err, true)
}

func NewLLMTimeoutError(err error) *StandardError {
	return newError(ErrCodeLLMTimeout, "LLM request timeout", err, true)
}

func NewLLMResponseInvalidError(err error) *StandardError {
	return newError(ErrCodeLLMResponseInvalid, "LLM returned an unusable response", err, false)
}

func NewVisionAnalysisFailedError(err error) *StandardError {
	return newError(ErrCodeVisionAnalysisFailed, "Image analysis failed", err, true)
}

// ==========================
// 4. BPMN Mapping
// ==========================

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:             "INVALID_INPUT",
	ErrCodeCancelled:                "CANCELLED",
	ErrCodeConsentDenied:            "CONSENT_DENIED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:             "QUERY_TIMEOUT",
	ErrCodeInvalidQueryType:         "INVALID_QUERY_TYPE",
	ErrCodeCatalogUnavailable:       "CATALOG_UNAVAILABLE",
	ErrCodeSearchQueryFailed:        "SEARCH_QUERY_FAILED",
	ErrCodeIndexNotFound:            "INDEX_NOT_FOUND",
	ErrCodeOrderNotFound:            "ORDER_NOT_FOUND",
	ErrCodeOrderNotCancellable:      "ORDER_NOT_CANCELLABLE",
	ErrCodeLLMRateLimited:           "LLM_RATE_LIMITED",
	ErrCodeLLMKeysExhausted:         "LLM_KEYS_EXHAUSTED",
	ErrCodeLLMRequestFailed:         "LLM_REQUEST_FAILED",
	ErrCodeLLMTimeout:               "LLM_TIMEOUT",
	ErrCodeLLMResponseInvalid:       "LLM_RESPONSE_INVALID",
	ErrCodeVisionAnalysisFailed:     "VISION_ANALYSIS_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeCatalogUnavailable,
		ErrCodeSearchQueryFailed,
		ErrCodeLLMRequestFailed,
		ErrCodeVisionAnalysisFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeLLMRateLimited:
		return 2

	case ErrCodeLLMTimeout:
		return 1

	default:
		// business errors and exhausted key rotation are not retried by the engine
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONSENT"):
		return "PRIVACY"
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "CATALOG"):
		return "DATABASE"
	case strings.Contains(codeStr, "ORDER"):
		return "ORDER"
	case strings.Contains(codeStr, "LLM") || strings.Contains(codeStr, "VISION"):
		return "AI"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}
