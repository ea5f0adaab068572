package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferreirogomes/fraciona/models"
	"github.com/ferreirogomes/fraciona/services"
)

// stubVault aceita depósitos e pagamentos sem tocar a rede.
type stubVault struct{}

func (stubVault) PrepareDeposit(string, uint64) (string, error) { return "prepared-tx", nil }
func (stubVault) Collect(string, uint64, string) (string, error) {
	return "tx-1", nil
}
func (stubVault) Pay(string, uint64) error { return nil }

// stubRegistry responde o registro do ativo sem tocar a rede.
type stubRegistry struct{}

func (stubRegistry) OwnerOf() (string, error)       { return "escrow", nil }
func (stubRegistry) TransferOwnership(string) error { return nil }
func (stubRegistry) MetadataURI() (string, error)   { return "ipfs://fraciona/asset.json", nil }

// stubReader devolve listas fixas para os endpoints de leitura.
type stubReader struct {
	bids     []models.Bid
	holdings []models.Holding
	claims   []models.Claim
}

func (r stubReader) GetBids(string) ([]models.Bid, error)         { return r.bids, nil }
func (stubReader) GetPayouts(string) ([]models.Payout, error)     { return nil, nil }
func (stubReader) GetEvents(string) ([]models.Event, error)       { return nil, nil }
func (stubReader) GetAsset(id string) (models.Asset, bool, error) { return models.Asset{ID: id}, true, nil }
func (r stubReader) GetHoldings(string) ([]models.Holding, error) { return r.holdings, nil }
func (r stubReader) GetClaims(string) ([]models.Claim, error)     { return r.claims, nil }

func newTestRouter(t *testing.T) (*chi.Mux, *services.FractionService, *clock.Mock, services.Config) {
	t.Helper()
	cfg := services.DefaultConfig()
	cfg.AssetMint = "FraCionaMint1111111111111111111111111111111"
	cfg.TotalShares = 1000
	cfg.AuctionDuration = time.Hour

	clk := clock.NewMock()
	svc := services.NewFractionService(cfg, stubRegistry{}, stubVault{}, nil, clk, nil)

	reader := stubReader{
		holdings: []models.Holding{{Account: "alice", Balance: 600}},
		claims:   []models.Claim{{Account: "bob", Amount: 15}},
	}
	fractionHandler := NewFractionHandler(svc, reader)
	auctionHandler := NewAuctionHandler(svc, reader)
	sharesHandler := NewSharesHandler(svc)

	r := chi.NewRouter()
	r.Route("/fraction", func(r chi.Router) {
		r.Post("/", fractionHandler.Fractionalize)
		r.Get("/", fractionHandler.GetStatus)
		r.Get("/metadata", fractionHandler.GetMetadataURI)
		r.Get("/owner", fractionHandler.GetOwner)
		r.Get("/asset", fractionHandler.GetAsset)
		r.Get("/holdings", fractionHandler.GetHoldings)
		r.Post("/redeem", fractionHandler.Redeem)
		r.Post("/claims", fractionHandler.Claim)
		r.Get("/claims", fractionHandler.GetClaims)
	})
	r.Route("/shares", func(r chi.Router) {
		r.Post("/transfer", sharesHandler.Transfer)
		r.Get("/{account}", sharesHandler.GetBalance)
		r.Get("/", sharesHandler.GetHolders)
	})
	r.Route("/auction", func(r chi.Router) {
		r.Post("/", auctionHandler.InitiateBuyout)
		r.Post("/bids/prepare", auctionHandler.PrepareBid)
		r.Post("/bids", auctionHandler.PlaceBid)
		r.Get("/bids", auctionHandler.GetBids)
		r.Post("/settle", auctionHandler.Settle)
	})
	r.Post("/deposits", fractionHandler.RejectDeposit)

	return r, svc, clk, cfg
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestFractionalizeEndpoint(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/fraction", map[string]any{"curator": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var asset models.Asset
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&asset))
	assert.NotEmpty(t, asset.ID)
	assert.Equal(t, uint64(1000), asset.TotalShares)

	// Fracionar de novo conflita.
	rec = doJSON(t, r, http.MethodPost, "/fraction", map[string]any{"curator": "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMetadataEndpoint(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/fraction/metadata", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ipfs://fraciona/asset.json")

	rec = doJSON(t, r, http.MethodGet, "/fraction/owner", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"owner":"escrow"`)
}

func TestAuctionFlowEndpoints(t *testing.T) {
	r, _, clk, cfg := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/fraction", map[string]any{"curator": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Sem quórum ainda não há leilão para preparar lances.
	rec = doJSON(t, r, http.MethodPost, "/auction/bids/prepare", PrepareBidRequest{Bidder: "buyer", Amount: 10})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/auction", map[string]any{"initiator": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/auction/bids/prepare", PrepareBidRequest{Bidder: "buyer", Amount: 10})
	require.Equal(t, http.StatusOK, rec.Code)
	var prepared PrepareBidResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&prepared))
	assert.Equal(t, "prepared-tx", prepared.SerializedTransaction)

	rec = doJSON(t, r, http.MethodPost, "/auction/bids", PlaceBidRequest{Bidder: "buyer", Amount: 10, SignedDeposit: "dep"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Lance igual ao mais alto é recusado.
	rec = doJSON(t, r, http.MethodPost, "/auction/bids", PlaceBidRequest{Bidder: "other", Amount: 10, SignedDeposit: "dep"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Cenário D via HTTP: resgate durante leilão ativo conflita.
	rec = doJSON(t, r, http.MethodPost, "/fraction/redeem", map[string]any{"redeemer": "alice", "shares": 100})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Liquidar antes da janela vencer conflita.
	rec = doJSON(t, r, http.MethodPost, "/auction/settle", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	clk.Add(cfg.AuctionDuration)
	rec = doJSON(t, r, http.MethodPost, "/auction/settle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.Settlement
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, "buyer", result.Winner)
	assert.Equal(t, uint64(10), result.Amount)
}

func TestSharesEndpoints(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/fraction", map[string]any{"curator": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/shares/transfer", map[string]any{"from": "alice", "to": "bob", "amount": 400})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/shares/bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":400`)

	// Saldo insuficiente é erro de requisição, não de servidor.
	rec = doJSON(t, r, http.MethodPost, "/shares/transfer", map[string]any{"from": "bob", "to": "carol", "amount": 500})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/shares/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var holders []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&holders))
	assert.Equal(t, []string{"alice", "bob"}, holders)
}

func TestFractionMirrorEndpoints(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	// Sem ativo fracionado não há o que listar.
	rec := doJSON(t, r, http.MethodGet, "/fraction/holdings", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/fraction", map[string]any{"curator": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var asset models.Asset
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&asset))

	rec = doJSON(t, r, http.MethodGet, "/fraction/asset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), asset.ID)

	rec = doJSON(t, r, http.MethodGet, "/fraction/holdings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var holdings []models.Holding
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&holdings))
	require.Len(t, holdings, 1)
	assert.Equal(t, "alice", holdings[0].Account)
	assert.Equal(t, uint64(600), holdings[0].Balance)

	rec = doJSON(t, r, http.MethodGet, "/fraction/claims", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var claims []models.Claim
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&claims))
	require.Len(t, claims, 1)
	assert.Equal(t, "bob", claims[0].Account)
}

func TestDepositRejectionEndpoint(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/deposits", map[string]any{"from": "someone", "amount": 500})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "recusada")
}

func TestClaimWithoutPendingPayout(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/fraction/claims", map[string]any{"account": "bob"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
