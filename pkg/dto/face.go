package dto

// Multipart field names accepted by /register-face and /verify-face.
const (
	FieldImage      = "image"
	FieldEmployeeID = "employee_id"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// VerifyResponse reports the engine decision. Confidence carries the raw
// distance: lower is more similar, and Match holds when it is within Threshold.
type VerifyResponse struct {
	Success    bool    `json:"success"`
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`
	EmployeeID string  `json:"employee_id"`
}

// WSEvent is a WebSocket message for real-time face event delivery.
type WSEvent struct {
	Type       string   `json:"type"`
	EmployeeID string   `json:"employee_id"`
	Match      *bool    `json:"match,omitempty"`
	Distance   *float64 `json:"distance,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
	Timestamp  string   `json:"timestamp"`
}
