package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/baharkarakas/wallet-engine/internal/errs"
)

// maxBody caps request bodies; every request the API accepts is tiny.
const maxBody = 1 << 20

type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details any) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

// Status is the HTTP status for an engine error code.
func Status(code string) int {
	switch code {
	case "not_found":
		return http.StatusNotFound
	case "invalid_amount", "self_transfer", "invalid_argument":
		return http.StatusBadRequest
	case "insufficient_funds":
		return http.StatusUnprocessableEntity
	case "timeout":
		return http.StatusServiceUnavailable
	case "in_progress", "already_exists", "immutable":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Fail writes err through the error envelope. Internal faults are logged
// and their text is not echoed back. details is optional.
func Fail(w http.ResponseWriter, r *http.Request, err error, details any) {
	code := errs.Code(err)
	status := Status(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "code", code, "err", err)
		if code == "internal_error" {
			msg = "internal error"
		}
	}
	WriteError(w, status, code, msg, details)
}

// Decode reads a single JSON object from the body into v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body: %w", errs.ErrInvalidArgument)
		}
		// keep err in the chain so a bad amount surfaces as invalid_amount
		return fmt.Errorf("malformed body: %w: %w", errs.ErrInvalidArgument, err)
	}
	return nil
}
