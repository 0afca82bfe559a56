// Package handler exposes the calculator, fee configuration and Mercado
// Livre integration over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"precifica/pricing/internal/logic"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

func init() {
	// Money and percentages go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

// statusFor maps solver and configuration errors to HTTP statuses.
func statusFor(err error) int {
	if errors.Is(err, logic.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
