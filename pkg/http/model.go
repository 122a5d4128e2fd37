package http

// APIResponse is the envelope of the supplementary routes.
type APIResponse struct {
	Status  int         `json:"status" example:"202"`
	Message string      `json:"message" example:"Accepted"`
	Data    interface{} `json:"data,omitempty"`
}

// APIResponse400Err is the envelope returned for an invalid request body.
type APIResponse400Err struct {
	Status  int               `json:"status" example:"400"`
	Message string            `json:"message" example:"Bad Request"`
	Data    []ValidationError `json:"data,omitempty"`
}

// ErrorBody is the bare error shape of the validation routes.
type ErrorBody struct {
	Error string `json:"error"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"symbol"`
	Message string                 `json:"message,omitempty" example:"symbol is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
