package auction_watcher

import (
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferreirogomes/fraciona/models"
	"github.com/ferreirogomes/fraciona/services"
)

type stubVault struct{}

func (stubVault) PrepareDeposit(string, uint64) (string, error)  { return "prepared-tx", nil }
func (stubVault) Collect(string, uint64, string) (string, error) { return "tx-1", nil }
func (stubVault) Pay(string, uint64) error                       { return nil }

type stubRegistry struct{}

func (stubRegistry) OwnerOf() (string, error)       { return "escrow", nil }
func (stubRegistry) TransferOwnership(string) error { return nil }
func (stubRegistry) MetadataURI() (string, error)   { return "ipfs://fraciona/asset.json", nil }

func TestTickSettlesExpiredAuction(t *testing.T) {
	cfg := services.DefaultConfig()
	cfg.AssetMint = "FraCionaMint1111111111111111111111111111111"
	cfg.TotalShares = 1000
	cfg.AuctionDuration = time.Hour

	clk := clock.NewMock()
	svc := services.NewFractionService(cfg, stubRegistry{}, stubVault{}, nil, clk, nil)
	w := NewAuctionWatcher(svc, time.Minute, clk, nil)

	_, err := svc.Fractionalize("alice")
	require.NoError(t, err)
	_, err = svc.InitiateBuyout("alice")
	require.NoError(t, err)
	_, err = svc.PlaceBid("buyer", 10, "dep")
	require.NoError(t, err)

	// Nada vencido ainda: o tique não mexe em nada.
	w.Tick()
	status, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, models.PhasePending, status.Phase)

	// Janela vencida: o tique liquida.
	clk.Add(cfg.AuctionDuration)
	w.Tick()

	status, err = svc.Status()
	require.NoError(t, err)
	assert.Equal(t, models.PhaseSettled, status.Phase)
	assert.Equal(t, uint64(0), status.TotalSupply)

	// Tique seguinte é inofensivo.
	w.Tick()
}

func TestTickIgnoresInactivePhase(t *testing.T) {
	cfg := services.DefaultConfig()
	cfg.AssetMint = "FraCionaMint1111111111111111111111111111111"

	clk := clock.NewMock()
	svc := services.NewFractionService(cfg, stubRegistry{}, stubVault{}, nil, clk, nil)
	w := NewAuctionWatcher(svc, time.Minute, clk, nil)

	w.Tick()
	status, err := svc.Status()
	require.NoError(t, err)
	assert.Equal(t, models.PhaseInactive, status.Phase)
}
