package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeExchangeConnectionFailed: "Failed to connect to the exchange",
	CodeExchangeAPIError:         "Exchange API error",
	CodeRateLimited:              "Exchange rate limit exceeded",
	CodeInsufficientFunds:        "Insufficient funds for order",
	CodeOrderNotFound:            "Order not found or already terminal",
	CodeOrderRejected:            "Order rejected by the exchange",
	CodeUnknownOrderStatus:       "Exchange returned an unknown order status",
	CodeTickerFetchFailed:        "Failed to fetch book tickers",
	CodeExchangeInfoFetchFailed:  "Failed to fetch exchange trading rules",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",

	CodeUnknownSymbol:        "No trading constraints loaded for symbol",
	CodeQuantityOutOfRange:   "Quantity outside the symbol's allowed range",
	CodeMissingSnapshotEntry: "Symbol missing from price snapshot",
	CodeProfitAnomaly:        "Projected profit implausibly high",
	CodeBalanceTooLow:        "Stablecoin balance below operating minimum",
	CodeCapitalStateUnknown:  "Capital state unknown after exchange failure",

	CodeCircuitOpen: "Circuit breaker is open",
}
