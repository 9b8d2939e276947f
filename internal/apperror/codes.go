package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Exchange error codes
const (
	CodeExchangeConnectionFailed Code = "EXCHANGE_CONNECTION_FAILED"
	CodeExchangeAPIError         Code = "EXCHANGE_API_ERROR"
	CodeRateLimited              Code = "RATE_LIMITED"
	CodeInsufficientFunds        Code = "INSUFFICIENT_FUNDS"
	CodeOrderNotFound            Code = "ORDER_NOT_FOUND"
	CodeOrderRejected            Code = "ORDER_REJECTED"
	CodeUnknownOrderStatus       Code = "UNKNOWN_ORDER_STATUS"
	CodeTickerFetchFailed        Code = "TICKER_FETCH_FAILED"
	CodeExchangeInfoFetchFailed  Code = "EXCHANGE_INFO_FETCH_FAILED"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
)

// Ring evaluation and execution error codes
const (
	CodeUnknownSymbol        Code = "UNKNOWN_SYMBOL"
	CodeQuantityOutOfRange   Code = "QUANTITY_OUT_OF_RANGE"
	CodeMissingSnapshotEntry Code = "MISSING_SNAPSHOT_ENTRY"
	CodeProfitAnomaly        Code = "PROFIT_ANOMALY"
	CodeBalanceTooLow        Code = "BALANCE_TOO_LOW"
	CodeCapitalStateUnknown  Code = "CAPITAL_STATE_UNKNOWN"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
