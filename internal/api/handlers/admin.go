package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/wallet-engine/internal/api/httpx"
	"github.com/baharkarakas/wallet-engine/internal/models"
	"github.com/baharkarakas/wallet-engine/internal/money"
	"github.com/baharkarakas/wallet-engine/internal/services"
)

type AdminHandler struct {
	Admin   *services.AdminService
	Wallets *services.WalletService
}

func NewAdminHandler(as *services.AdminService, ws *services.WalletService) *AdminHandler {
	return &AdminHandler{Admin: as, Wallets: ws}
}

type openReq struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

// OpenWallet is the registration hook: the identity service calls it once
// per new user.
func (h *AdminHandler) OpenWallet(w http.ResponseWriter, r *http.Request) {
	var req openReq
	if !bind(w, r, &req) {
		return
	}
	wallet, err := h.Wallets.Open(r.Context(), req.UserID)
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, wallet)
}

type walletsResp struct {
	Wallets []models.Wallet `json:"wallets"`
	page
}

func (h *AdminHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	p, err := queryPage(r)
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	list, err := h.Admin.ListWallets(r.Context(), p.Limit, p.Offset)
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	if p.Limit == 0 {
		p.Limit = services.DefaultPageSize
	}
	if list == nil {
		list = []models.Wallet{}
	}
	httpx.WriteJSON(w, http.StatusOK, walletsResp{Wallets: list, page: p})
}

type adjustReq struct {
	Action models.AdjustAction `json:"action" validate:"required,oneof=add deduct"`
	Amount money.Money         `json:"amount"`
	Note   string              `json:"note" validate:"max=255"`
}

func (h *AdminHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if !bind(w, r, &req) {
		return
	}
	rec, wallet, err := h.Admin.Adjust(r.Context(), services.AdjustRequest{
		WalletID: chi.URLParam(r, "id"),
		Action:   req.Action,
		Amount:   req.Amount,
		AdminID:  caller(r).UserID,
		Note:     req.Note,
	})
	if err != nil {
		failTxn(w, r, rec, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, fundedResp{Transaction: rec, Wallet: wallet})
}

func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Admin.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}

func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	p, err := queryPage(r)
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	filter, err := queryFilter(r)
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	q := models.TxnQuery{
		UserID: r.URL.Query().Get("user_id"),
		Filter: filter,
		Status: models.TransactionStatus(r.URL.Query().Get("status")),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if q.Status != "" && q.Status != models.TxnPending && !q.Status.Terminal() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_argument", "unknown status", nil)
		return
	}
	list, err := h.Admin.ListTransactions(r.Context(), q)
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

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Admin.Stats(r.Context())
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}

func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	q := r.URL.Query()
	logs, err := h.Admin.AuditTrail(r.Context(), q.Get("entity_type"), q.Get("entity_id"), limit)
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}
