package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"shopsphere/storefront/internal/service"
	"shopsphere/storefront/internal/service/marketplace"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// handleError maps service errors onto status codes. Marketplace failures
// are reported without their upstream details.
func handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrChatNotReady), errors.Is(err, service.ErrSendInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		var apiErr *marketplace.APIError
		if errors.As(err, &apiErr) {
			log.Printf("handler: marketplace error: %v", apiErr)
			writeError(w, http.StatusBadGateway, "marketplace request failed")
			return
		}
		log.Printf("handler: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
