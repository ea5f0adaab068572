package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ferreirogomes/fraciona/services"
)

// SharesHandler lida com requisições HTTP do ledger de cotas.
type SharesHandler struct {
	Service *services.FractionService
}

// NewSharesHandler cria uma nova instância do handler de cotas.
func NewSharesHandler(s *services.FractionService) *SharesHandler {
	return &SharesHandler{Service: s}
}

// Transfer move cotas entre contas.
// POST /shares/transfer
func (h *SharesHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.TransferShares(requestBody.From, requestBody.To, requestBody.Amount); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, requestBody)
}

// Approve autoriza um spender a gastar cotas do owner.
// POST /shares/approve
func (h *SharesHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		Owner   string `json:"owner"`
		Spender string `json:"spender"`
		Amount  uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.ApproveShares(requestBody.Owner, requestBody.Spender, requestBody.Amount); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, requestBody)
}

// TransferFrom move cotas consumindo uma autorização.
// POST /shares/transfer-from
func (h *SharesHandler) TransferFrom(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		Spender string `json:"spender"`
		From    string `json:"from"`
		To      string `json:"to"`
		Amount  uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Service.TransferSharesFrom(requestBody.Spender, requestBody.From, requestBody.To, requestBody.Amount); err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, requestBody)
}

// GetBalance devolve o saldo de cotas de uma conta.
// GET /shares/{account}
func (h *SharesHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if account == "" {
		http.Error(w, "conta é obrigatória", http.StatusBadRequest)
		return
	}

	balance, err := h.Service.BalanceOf(account)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account, "balance": balance})
}

// GetHolders lista as contas com saldo positivo.
// GET /shares
func (h *SharesHandler) GetHolders(w http.ResponseWriter, r *http.Request) {
	holders, err := h.Service.Holders()
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, holders)
}
