package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/wallet-engine/internal/api/httpx"
	"github.com/baharkarakas/wallet-engine/internal/models"
	"github.com/baharkarakas/wallet-engine/internal/money"
	"github.com/baharkarakas/wallet-engine/internal/services"
)

type TransactionHandler struct {
	Txns *services.TransactionService
}

func NewTransactionHandler(ts *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{Txns: ts}
}

type sendReq struct {
	ReceiverID string      `json:"receiver_id" validate:"required"`
	Amount     money.Money `json:"amount"`
	Note       string      `json:"note" validate:"max=255"`
}

func (h *TransactionHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendReq
	if !bind(w, r, &req) {
		return
	}
	rec, err := h.Txns.SendMoney(r.Context(), services.SendRequest{
		SenderID:       caller(r).UserID,
		ReceiverID:     req.ReceiverID,
		Amount:         req.Amount,
		Note:           req.Note,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		failTxn(w, r, rec, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, rec)
}

type listResp struct {
	Transactions []models.Transaction `json:"transactions"`
	page
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := queryFilter(r)
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	p, err := queryPage(r)
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	list, err := h.Txns.List(r.Context(), caller(r).UserID, filter, p.Limit, p.Offset)
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	if p.Limit == 0 {
		p.Limit = services.DefaultPageSize
	}
	if list == nil {
		list = []models.Transaction{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResp{Transactions: list, page: p})
}

// Get serves one record to either party, or to an admin.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u := caller(r)
	var (
		rec models.Transaction
		err error
	)
	if u.IsAdmin() {
		rec, err = h.Txns.GetByID(r.Context(), id)
	} else {
		rec, err = h.Txns.GetForUser(r.Context(), id, u.UserID)
	}
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

// Stats sums the caller's completed records in [from, to); both default to
// the current month.
func (h *TransactionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	agg, err := h.Txns.Aggregate(r.Context(), caller(r).UserID, from, to)
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, agg)
}
