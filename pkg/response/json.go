package response

import (
	"encoding/json"
	"net/http"
)

// APIResponse is the envelope every endpoint answers with
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

// APIError carries a machine-readable code and a message
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta contains pagination metadata
type Meta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	Total      int `json:"total,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

func write(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// JSON sends data with the given status code
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, APIResponse{Success: status >= 200 && status < 300, Data: data})
}

// JSONWithMeta sends a page of data with its pagination metadata
func JSONWithMeta(w http.ResponseWriter, status int, data any, meta *Meta) {
	write(w, status, APIResponse{Success: status >= 200 && status < 300, Data: data, Meta: meta})
}

// Error sends an error envelope
func Error(w http.ResponseWriter, status int, code, message string) {
	write(w, status, APIResponse{Error: &APIError{Code: code, Message: message}})
}

// BadRequest is for bodies and parameters that cannot be decoded
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

// Unauthorized is for requests without a verified user
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
