package storage

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	"go.uber.org/zap"

	"github.com/ferreirogomes/fraciona/models"
)

// DB representa a conexão com o banco de dados PostgreSQL que espelha o
// estado do serviço (ativo, saldos, lances, pagamentos, créditos e eventos).
type DB struct {
	*sqlx.DB
}

// NewDB conecta-se ao PostgreSQL e executa as migrações.
func NewDB(dataSourceName string, logger *zap.SugaredLogger) (*DB, error) {
	db, err := sqlx.Connect("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar ao banco de dados: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("falha ao pingar o banco de dados: %w", err)
	}

	if err := runMigrations(db.DB, logger); err != nil {
		return nil, fmt.Errorf("falha ao executar migrações: %w", err)
	}

	if logger != nil {
		logger.Infow("conexão com PostgreSQL estabelecida")
	}
	return &DB{db}, nil
}

// runMigrations executa as migrações usando sql-migrate.
func runMigrations(db *sql.DB, logger *zap.SugaredLogger) error {
	migrations := &migrate.FileMigrationSource{
		Dir: "./storage/migrations",
	}

	n, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return fmt.Errorf("erro ao aplicar migrações: %w", err)
	}
	if logger != nil && n > 0 {
		logger.Infow("migrações aplicadas", "count", n)
	}
	return nil
}

// SaveAsset grava o registro do ativo fracionado.
func (d *DB) SaveAsset(asset models.Asset) error {
	query := `INSERT INTO assets (id, mint_address, metadata_uri, curator, total_shares, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (id) DO UPDATE SET metadata_uri = EXCLUDED.metadata_uri`
	_, err := d.Exec(query, asset.ID, asset.MintAddress, asset.MetadataURI, asset.Curator, asset.TotalShares, asset.CreatedAt)
	if err != nil {
		return fmt.Errorf("falha ao salvar ativo: %w", err)
	}
	return nil
}

// GetAsset busca o ativo pelo ID.
func (d *DB) GetAsset(id string) (models.Asset, bool, error) {
	var asset models.Asset
	err := d.Get(&asset, `SELECT * FROM assets WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return models.Asset{}, false, nil
	}
	if err != nil {
		return models.Asset{}, false, fmt.Errorf("falha ao buscar ativo: %w", err)
	}
	return asset, true, nil
}

// SaveHolding grava (upsert) o saldo de cotas de uma conta.
func (d *DB) SaveHolding(holding models.Holding) error {
	query := `INSERT INTO holdings (asset_id, account, balance, updated_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (asset_id, account) DO UPDATE SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at`
	_, err := d.Exec(query, holding.AssetID, holding.Account, holding.Balance, holding.UpdatedAt)
	if err != nil {
		return fmt.Errorf("falha ao salvar saldo de cotas: %w", err)
	}
	return nil
}

// DeleteHolding remove o registro de uma conta que zerou o saldo.
func (d *DB) DeleteHolding(assetID, account string) error {
	_, err := d.Exec(`DELETE FROM holdings WHERE asset_id = $1 AND account = $2`, assetID, account)
	if err != nil {
		return fmt.Errorf("falha ao remover saldo de cotas: %w", err)
	}
	return nil
}

// GetHoldings lista os saldos de cotas do ativo.
func (d *DB) GetHoldings(assetID string) ([]models.Holding, error) {
	var holdings []models.Holding
	err := d.Select(&holdings, `SELECT * FROM holdings WHERE asset_id = $1 ORDER BY account`, assetID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar saldos de cotas: %w", err)
	}
	return holdings, nil
}

// SaveBid grava um lance registrado.
func (d *DB) SaveBid(bid models.Bid) error {
	query := `INSERT INTO bids (id, asset_id, bidder, amount, transaction_id, placed_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := d.Exec(query, bid.ID, bid.AssetID, bid.Bidder, bid.Amount, bid.TransactionID, bid.PlacedAt)
	if err != nil {
		return fmt.Errorf("falha ao salvar lance: %w", err)
	}
	return nil
}

// GetBids lista os lances do ativo, do mais recente para o mais antigo.
func (d *DB) GetBids(assetID string) ([]models.Bid, error) {
	var bids []models.Bid
	err := d.Select(&bids, `SELECT * FROM bids WHERE asset_id = $1 ORDER BY placed_at DESC`, assetID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar lances: %w", err)
	}
	return bids, nil
}

// SavePayout grava um pagamento de liquidação (pago ou pendente).
func (d *DB) SavePayout(payout models.Payout) error {
	query := `INSERT INTO payouts (id, asset_id, account, shares, amount, paid, paid_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := d.Exec(query, payout.ID, payout.AssetID, payout.Account, payout.Shares, payout.Amount, payout.Paid, payout.PaidAt)
	if err != nil {
		return fmt.Errorf("falha ao salvar pagamento: %w", err)
	}
	return nil
}

// GetPayouts lista os pagamentos de liquidação do ativo.
func (d *DB) GetPayouts(assetID string) ([]models.Payout, error) {
	var payouts []models.Payout
	err := d.Select(&payouts, `SELECT * FROM payouts WHERE asset_id = $1 ORDER BY account`, assetID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar pagamentos: %w", err)
	}
	return payouts, nil
}

// SaveClaim grava (upsert) um crédito pendente de pagamento recusado.
func (d *DB) SaveClaim(claim models.Claim) error {
	query := `INSERT INTO claims (asset_id, account, amount, created_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (asset_id, account) DO UPDATE SET amount = EXCLUDED.amount`
	_, err := d.Exec(query, claim.AssetID, claim.Account, claim.Amount, claim.CreatedAt)
	if err != nil {
		return fmt.Errorf("falha ao salvar crédito pendente: %w", err)
	}
	return nil
}

// DeleteClaim remove um crédito pendente já pago.
func (d *DB) DeleteClaim(assetID, account string) error {
	_, err := d.Exec(`DELETE FROM claims WHERE asset_id = $1 AND account = $2`, assetID, account)
	if err != nil {
		return fmt.Errorf("falha ao remover crédito pendente: %w", err)
	}
	return nil
}

// GetClaims lista os créditos pendentes do ativo.
func (d *DB) GetClaims(assetID string) ([]models.Claim, error) {
	var claims []models.Claim
	err := d.Select(&claims, `SELECT * FROM claims WHERE asset_id = $1 ORDER BY account`, assetID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar créditos pendentes: %w", err)
	}
	return claims, nil
}

// SaveEvent grava uma notificação de ciclo de vida.
func (d *DB) SaveEvent(event models.Event) error {
	query := `INSERT INTO events (id, asset_id, type, payload, emitted_at)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := d.Exec(query, event.ID, event.AssetID, event.Type, event.Payload, event.EmittedAt)
	if err != nil {
		return fmt.Errorf("falha ao salvar evento: %w", err)
	}
	return nil
}

// GetEvents lista as notificações emitidas, da mais antiga para a mais nova.
func (d *DB) GetEvents(assetID string) ([]models.Event, error) {
	var events []models.Event
	err := d.Select(&events, `SELECT * FROM events WHERE asset_id = $1 ORDER BY emitted_at`, assetID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar eventos: %w", err)
	}
	return events, nil
}
