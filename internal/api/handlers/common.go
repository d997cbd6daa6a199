package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/baharkarakas/wallet-engine/internal/api/httpx"
	"github.com/baharkarakas/wallet-engine/internal/api/validate"
	"github.com/baharkarakas/wallet-engine/internal/errs"
	"github.com/baharkarakas/wallet-engine/internal/middleware"
	"github.com/baharkarakas/wallet-engine/internal/models"
)

const idempotencyHeader = "Idempotency-Key"

type page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, errs.ErrInvalidArgument)
	}
	return n, nil
}

func queryPage(r *http.Request) (page, error) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		return page{}, err
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		return page{}, err
	}
	return page{Limit: limit, Offset: offset}, nil
}

func queryTime(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC 3339: %w", name, errs.ErrInvalidArgument)
	}
	return t, nil
}

func queryFilter(r *http.Request) (models.Filter, error) {
	f, ok := models.ParseFilter(r.URL.Query().Get("type"))
	if !ok {
		return "", fmt.Errorf("type must be all, sent or received: %w", errs.ErrInvalidArgument)
	}
	return f, nil
}

// bind decodes and validates a request body, writing the error response
// itself when it returns false.
func bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.Decode(r, v); err != nil {
		httpx.Fail(w, r, err, nil)
		return false
	}
	if err := validate.Struct(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "validation failed", err)
		return false
	}
	return true
}

func caller(r *http.Request) middleware.UserCtx {
	u, _ := middleware.FromCtx(r.Context())
	return u
}

// failTxn reports err; a failed record, if one was written, rides along as details.
func failTxn(w http.ResponseWriter, r *http.Request, rec models.Transaction, err error) {
	if rec.ID != "" {
		httpx.Fail(w, r, err, rec)
		return
	}
	httpx.Fail(w, r, err, nil)
}
