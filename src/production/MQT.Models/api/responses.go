package api_models

// ErrorResponse is the body of every rejected request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// MessageResponse is the body of a successful access request
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body of the liveness check
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse reports the state of each backing store
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}
