package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cardroomhq/blackjack/internal/engine/domain/table"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}

// writeEngineError maps engine sentinel errors onto HTTP statuses. Every
// engine failure leaves the table document unchanged, so conflicts are
// safe to surface for a caller-side retry.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, table.ErrTableNotFound), errors.Is(err, table.ErrPlayerNotFound):
		writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, table.ErrValidation), errors.Is(err, table.ErrInvalidBet):
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, table.ErrTableFull),
		errors.Is(err, table.ErrAlreadySeated),
		errors.Is(err, table.ErrWrongPhase),
		errors.Is(err, table.ErrNotYourTurn),
		errors.Is(err, table.ErrIllegalAction),
		errors.Is(err, table.ErrConcurrentModification):
		writeErrorResponse(w, http.StatusConflict, err.Error())
	default:
		writeErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}
