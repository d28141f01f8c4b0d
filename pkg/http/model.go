package http

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string `json:"code" example:"ERR_ONEOF"`
	Field   string `json:"field,omitempty" example:"mode"`
	Message string `json:"message" example:"mode must be one of: auto, regime, basket"`
}
