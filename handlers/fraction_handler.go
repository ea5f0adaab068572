package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ferreirogomes/fraciona/models"
	"github.com/ferreirogomes/fraciona/services"
)

// FractionReader lista registros do fracionamento espelhados no banco.
type FractionReader interface {
	GetAsset(id string) (models.Asset, bool, error)
	GetHoldings(assetID string) ([]models.Holding, error)
	GetClaims(assetID string) ([]models.Claim, error)
}

// FractionHandler lida com requisições HTTP do ciclo de vida do fracionamento.
type FractionHandler struct {
	Service *services.FractionService
	Reader  FractionReader
}

// NewFractionHandler cria uma nova instância do handler de fracionamento.
func NewFractionHandler(s *services.FractionService, reader FractionReader) *FractionHandler {
	return &FractionHandler{Service: s, Reader: reader}
}

// Fractionalize converte a posse do ativo em cotas.
// POST /fraction
func (h *FractionHandler) Fractionalize(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		Curator string `json:"curator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	asset, err := h.Service.Fractionalize(requestBody.Curator)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// GetStatus devolve a visão corrente do fracionamento e do leilão.
// GET /fraction
func (h *FractionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.Status()
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GetMetadataURI devolve o localizador dos metadados do ativo.
// GET /fraction/metadata
func (h *FractionHandler) GetMetadataURI(w http.ResponseWriter, r *http.Request) {
	uri, err := h.Service.MetadataURI()
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"metadata_uri": uri})
}

// GetAsset devolve o registro persistido do ativo fracionado.
// GET /fraction/asset
func (h *FractionHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAssetID(w, h.Service)
	if !ok {
		return
	}
	asset, found, err := h.Reader.GetAsset(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "ativo ainda não espelhado no banco", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// GetHoldings lista os saldos de cotas espelhados no banco.
// GET /fraction/holdings
func (h *FractionHandler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAssetID(w, h.Service)
	if !ok {
		return
	}
	holdings, err := h.Reader.GetHoldings(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}

// GetClaims lista os créditos pendentes de liquidação.
// GET /fraction/claims
func (h *FractionHandler) GetClaims(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAssetID(w, h.Service)
	if !ok {
		return
	}
	claims, err := h.Reader.GetClaims(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

// GetOwner devolve o dono corrente do ativo no registro externo.
// GET /fraction/owner
func (h *FractionHandler) GetOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := h.Service.AssetOwner()
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": owner})
}

// Redeem queima cotas do chamador fora de leilão; com 100% das cotas, a posse
// do ativo volta para ele.
// POST /fraction/redeem
func (h *FractionHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		Redeemer string `json:"redeemer"`
		Shares   uint64 `json:"shares"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	soleHolder, err := h.Service.Redeem(requestBody.Redeemer, requestBody.Shares)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"redeemer":          requestBody.Redeemer,
		"shares":            requestBody.Shares,
		"asset_transferred": soleHolder,
	})
}

// Claim paga um crédito pendente de liquidação.
// POST /fraction/claims
func (h *FractionHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		Account string `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	amount, err := h.Service.ClaimPayout(requestBody.Account)
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": requestBody.Account,
		"amount":  amount,
	})
}

// RejectDeposit é o caminho de rejeição explícita para transferências de
// valor não vinculadas a um lance.
// POST /deposits
func (h *FractionHandler) RejectDeposit(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		From   string `json:"from"`
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.Service.ReceiveFunds(requestBody.From, requestBody.Amount)
	http.Error(w, err.Error(), errStatus(err))
}

// currentAssetID resolve o ID do ativo fracionado corrente, ou responde o
// erro.
func currentAssetID(w http.ResponseWriter, s *services.FractionService) (string, bool) {
	status, err := s.Status()
	if err != nil {
		http.Error(w, err.Error(), errStatus(err))
		return "", false
	}
	if status.Asset == nil {
		http.Error(w, services.ErrNotFractionalized.Error(), http.StatusConflict)
		return "", false
	}
	return status.Asset.ID, true
}

// writeJSON serializa a resposta com o Content-Type correto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errStatus mapeia os erros de domínio para códigos HTTP.
func errStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidAccount),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrBidTooLow),
		errors.Is(err, services.ErrQuorumNotMet),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrInsufficientAllowance):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFractionalized),
		errors.Is(err, services.ErrAlreadyFractionalized),
		errors.Is(err, services.ErrAuctionAlreadyActive),
		errors.Is(err, services.ErrAuctionNotActive),
		errors.Is(err, services.ErrAuctionEnded),
		errors.Is(err, services.ErrAuctionNotEnded),
		errors.Is(err, services.ErrAuctionActive),
		errors.Is(err, services.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, services.ErrNothingToClaim):
		return http.StatusNotFound
	case errors.Is(err, services.ErrUnsolicitedTransfer):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
