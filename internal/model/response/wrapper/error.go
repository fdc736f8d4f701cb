package wrapper

type ErrorWrapper struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}
