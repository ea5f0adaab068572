package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ferreirogomes/fraciona/models"
	"github.com/ferreirogomes/fraciona/services"
)

// AuctionReader lista registros do leilão espelhados no banco.
type AuctionReader interface {
	GetBids(assetID string) ([]models.Bid, error)
	GetPayouts(assetID string) ([]models.Payout, error)
	GetEvents(assetID string) ([]models.Event, error)
}

// AuctionHandler lida com requisições HTTP do leilão de resgate.
type AuctionHandler struct {
	Service *services.FractionService
	Reader  AuctionReader
}

// NewAuctionHandler cria uma nova instância do handler de leilão.
func NewAuctionHandler(s *services.FractionService, reader AuctionReader) *AuctionHandler {
	return &AuctionHandler{Service: s, Reader: reader}
}

// InitiateBuyout abre o leilão de resgate.
// POST /auction
func (h *AuctionHandler) InitiateBuyout(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		Initiator string `json:"initiator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	endTime, err := h.Service.InitiateBuyout(requestBody.Initiator)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"initiator": requestBody.Initiator,
		"end_time":  endTime,
	})
}

// Request struct para a preparação do depósito de um lance.
type PrepareBidRequest struct {
	Bidder string `json:"bidder"`
	Amount uint64 `json:"amount"`
}

// Response struct para a preparação do depósito de um lance.
type PrepareBidResponse struct {
	SerializedTransaction string `json:"serialized_transaction"` // Depósito em Base64 para assinatura
}

// PrepareBid prepara a transação de depósito de um lance para assinatura do
// licitante.
// POST /auction/bids/prepare
func (h *AuctionHandler) PrepareBid(w http.ResponseWriter, r *http.Request) {
	var req PrepareBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	serializedTx, err := h.Service.PrepareBidDeposit(req.Bidder, req.Amount)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, PrepareBidResponse{SerializedTransaction: serializedTx})
}

// Request struct para registrar um lance com o depósito assinado.
type PlaceBidRequest struct {
	Bidder        string `json:"bidder"`
	Amount        uint64 `json:"amount"`
	SignedDeposit string `json:"signed_deposit"` // Depósito assinado pelo licitante (Base64)
}

// PlaceBid registra um lance, recolhendo o depósito e reembolsando o
// licitante anterior.
// POST /auction/bids
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req PlaceBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bid, err := h.Service.PlaceBid(req.Bidder, req.Amount, req.SignedDeposit)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

// Settle liquida o leilão vencido.
// POST /auction/settle
func (h *AuctionHandler) Settle(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.CompleteBuyout()
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetBids lista os lances registrados.
// GET /auction/bids
func (h *AuctionHandler) GetBids(w http.ResponseWriter, r *http.Request) {
	assetID, ok := currentAssetID(w, h.Service)
	if !ok {
		return
	}
	bids, err := h.Reader.GetBids(assetID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// GetPayouts lista os pagamentos da liquidação.
// GET /auction/payouts
func (h *AuctionHandler) GetPayouts(w http.ResponseWriter, r *http.Request) {
	assetID, ok := currentAssetID(w, h.Service)
	if !ok {
		return
	}
	payouts, err := h.Reader.GetPayouts(assetID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, payouts)
}

// GetEvents lista as notificações de ciclo de vida emitidas.
// GET /events
func (h *AuctionHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	assetID, ok := currentAssetID(w, h.Service)
	if !ok {
		return
	}
	events, err := h.Reader.GetEvents(assetID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
