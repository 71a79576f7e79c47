package utils

// ErrorResponse is the wire shape for every surfaced error: a stable
// machine-readable kind plus a human-readable message.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
