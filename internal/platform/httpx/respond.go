// Package httpx provides HTTP response utilities for the JSON API surface.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/larimar-erp/larimar-erp/internal/shared"
)

// Envelope is the uniform response body for every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK sends a success envelope.
func OK(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Fail sends a failure envelope with an explicit status.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Error: message})
}

// RespondError maps a classified domain error to an HTTP response.
func RespondError(w http.ResponseWriter, err error) {
	switch shared.KindOf(err) {
	case shared.KindNotFound:
		Fail(w, http.StatusNotFound, err.Error())
	case shared.KindValidation:
		Fail(w, http.StatusBadRequest, err.Error())
	case shared.KindStateConflict:
		Fail(w, http.StatusConflict, err.Error())
	case shared.KindExternalService:
		Fail(w, http.StatusBadGateway, err.Error())
	default:
		Fail(w, http.StatusInternalServerError, "internal error")
	}
}
