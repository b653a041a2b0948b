package http

// APIResponse is the envelope every endpoint answers with. Data holds the
// payload on success and a []ValidationError or []*AppError on failure.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"body"`
	Message string                 `json:"message,omitempty" example:"body is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse carries a listing and its row count.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
