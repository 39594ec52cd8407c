package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"skillxchange_server/services"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

// writeServiceError maps the typed service failures onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var duplicate *services.DuplicateConnectionError
	switch {
	case errors.As(err, &duplicate):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":          "connection already exists",
			"existingStatus": duplicate.ExistingStatus,
		})
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidState):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, services.ErrNotConnected):
		writeJSON(w, http.StatusPreconditionFailed, map[string]string{"error": err.Error()})
	default:
		log.Printf("❌ Internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
