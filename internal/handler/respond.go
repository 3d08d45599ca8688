package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/kiwari-pos/cashier/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// errorResponse is the body of every failed request. Kind lets the client
// tell a rejected input from a backend outage.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusOf maps an engine error kind to its HTTP status.
func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDataIntegrity:
		return http.StatusUnprocessableEntity
	case apperr.KindSync:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Unclassified errors are logged and hidden.
func writeError(w http.ResponseWriter, op string, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnknown {
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error", Kind: kind.String()})
		return
	}
	writeJSON(w, statusOf(kind), errorResponse{Error: err.Error(), Kind: kind.String()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: apperr.KindValidation.String()})
}
