package models

import "time"

// Asset representa o ativo único (um NFT na Solana) que foi fracionado em cotas.
type Asset struct {
	ID          string    `json:"id" db:"id"`
	MintAddress string    `json:"mint_address" db:"mint_address"` // Mint do NFT na Solana
	MetadataURI string    `json:"metadata_uri" db:"metadata_uri"` // Localizador imutável dos metadados
	Curator     string    `json:"curator" db:"curator"`           // Conta que fracionou o ativo
	TotalShares uint64    `json:"total_shares" db:"total_shares"` // Suprimento fixo de cotas emitido no fracionamento
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Holding representa o saldo de cotas de uma conta, espelhado no banco.
type Holding struct {
	AssetID   string    `json:"asset_id" db:"asset_id"`
	Account   string    `json:"account" db:"account"`
	Balance   uint64    `json:"balance" db:"balance"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
