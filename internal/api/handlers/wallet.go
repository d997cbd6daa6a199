package handlers

import (
	"net/http"

	"github.com/baharkarakas/wallet-engine/internal/api/httpx"
	"github.com/baharkarakas/wallet-engine/internal/models"
	"github.com/baharkarakas/wallet-engine/internal/money"
	"github.com/baharkarakas/wallet-engine/internal/services"
)

type WalletHandler struct {
	Wallets *services.WalletService
}

func NewWalletHandler(ws *services.WalletService) *WalletHandler {
	return &WalletHandler{Wallets: ws}
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.Wallets.GetWallet(r.Context(), caller(r).UserID)
	if err != nil {
		httpx.Fail(w, r, err, nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wallet)
}

type addFundsReq struct {
	Amount money.Money `json:"amount"`
	Method string      `json:"method" validate:"required,oneof=card bank mobile_money"`
	Note   string      `json:"note" validate:"max=255"`
}

type fundedResp struct {
	Transaction models.Transaction `json:"transaction"`
	Wallet      models.Wallet      `json:"wallet"`
}

func (h *WalletHandler) AddFunds(w http.ResponseWriter, r *http.Request) {
	var req addFundsReq
	if !bind(w, r, &req) {
		return
	}
	rec, wallet, err := h.Wallets.AddFunds(r.Context(), services.AddFundsRequest{
		UserID:         caller(r).UserID,
		Amount:         req.Amount,
		Method:         req.Method,
		Note:           req.Note,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		failTxn(w, r, rec, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, fundedResp{Transaction: rec, Wallet: wallet})
}
