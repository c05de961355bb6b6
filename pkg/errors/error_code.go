package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeEmptyInput           ErrorCode = 102
	ErrCodeInvalidVersion       ErrorCode = 103

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound  ErrorCode = 200
	ErrCodeFieldNotFound ErrorCode = 201
	ErrCodeSchemaError   ErrorCode = 202
	ErrCodeStorageFailed ErrorCode = 203
	ErrCodeQueryFailed   ErrorCode = 204

	// Backtest errors (600-699)
	ErrCodeRunDirExists        ErrorCode = 600
	ErrCodeBacktestConfigError ErrorCode = 601

	// Market data errors (700-799)
	ErrCodeTransportError        ErrorCode = 700
	ErrCodeDataUnavailable       ErrorCode = 701
	ErrCodeAllProvidersFailed    ErrorCode = 702
	ErrCodeMarketDataParseFailed ErrorCode = 703
	ErrCodeInvalidProvider       ErrorCode = 704
)
