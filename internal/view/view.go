package view

// Response is the envelope every JSON endpoint returns.
type Response[T any] struct {
	Data    T           `json:"data"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Request interface{} `json:"request,omitempty"`
}

func CreateResponse[T any](data T, err error, request interface{}, message string) Response[T] {
	resp := Response[T]{
		Data:    data,
		Message: message,
		Request: request,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// MessageResponse documents plain-message payloads in swagger.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse documents error payloads in swagger.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
