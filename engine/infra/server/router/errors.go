package router

// Problem codes returned by the API.
const (
	CodeInvalidInput     = "invalid_input"
	CodePayloadTooLarge  = "payload_too_large"
	CodeUnauthorized     = "unauthorized"
	CodeRateLimited      = "rate_limited"
	CodeProcessingFailed = "processing_failed"
	CodeInternal         = "internal_error"
)
