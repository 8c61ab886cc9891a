package notification

// Stable error codes surfaced in failure envelopes. Expected conditions
// travel as codes, never as Go errors, so every layer can pass them
// through unchanged.
const (
	ErrCodeNotFound   = "NOTIFICATION_NOT_FOUND"
	ErrCodeUpdateFail = "UPDATE_NOTIFICATION_FAIL"
	ErrCodeInternal   = "INTERNAL_SERVER_ERROR"
)

// BaseResponse is the uniform envelope returned by every service operation:
// success-with-data or failure-with-code.
type BaseResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SuccessResponse wraps data in a success envelope.
func SuccessResponse(data any) *BaseResponse {
	return &BaseResponse{Success: true, Data: data}
}

// ErrorResponse wraps a stable error code in a failure envelope.
func ErrorResponse(code string) *BaseResponse {
	return &BaseResponse{Success: false, Error: code}
}
