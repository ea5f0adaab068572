package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ferreirogomes/fraciona/services"
)

// AppConfig reúne toda a configuração do backend.
type AppConfig struct {
	ListenAddr  string
	DatabaseURL string

	SolanaRPCURL     string
	EscrowPrivateKey string
	AssetMint        string
	InitialOwner     string
	MetadataURI      string

	WatcherInterval time.Duration

	Fraction services.Config
}

type fileConfig struct {
	ListenAddr  string `toml:"listen_addr"`
	DatabaseURL string `toml:"database_url"`

	SolanaRPCURL     string `toml:"solana_rpc_url"`
	EscrowPrivateKey string `toml:"escrow_private_key"`
	AssetMint        string `toml:"asset_mint"`
	InitialOwner     string `toml:"initial_owner"`
	MetadataURI      string `toml:"metadata_uri"`

	TotalShares     uint64 `toml:"total_shares"`
	QuorumPercent   uint64 `toml:"quorum_percent"`
	AuctionDuration string `toml:"auction_duration"`
	WatcherInterval string `toml:"watcher_interval"`
}

// defaultAppConfig devolve a configuração de produção sem os segredos.
func defaultAppConfig() AppConfig {
	return AppConfig{
		ListenAddr:      ":8080",
		WatcherInterval: 30 * time.Second,
		Fraction:        services.DefaultConfig(),
	}
}

// loadAppConfig lê o arquivo TOML e aplica apenas as chaves definidas sobre os
// defaults.
func loadAppConfig(path string) (AppConfig, error) {
	cfg := defaultAppConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return AppConfig{}, fmt.Errorf("falha ao ler configuração: %w", err)
	}

	if meta.IsDefined("listen_addr") && strings.TrimSpace(raw.ListenAddr) != "" {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("database_url") {
		cfg.DatabaseURL = strings.TrimSpace(raw.DatabaseURL)
	}
	if meta.IsDefined("solana_rpc_url") {
		cfg.SolanaRPCURL = strings.TrimSpace(raw.SolanaRPCURL)
	}
	if meta.IsDefined("escrow_private_key") {
		cfg.EscrowPrivateKey = strings.TrimSpace(raw.EscrowPrivateKey)
	}
	if meta.IsDefined("asset_mint") {
		cfg.AssetMint = strings.TrimSpace(raw.AssetMint)
		cfg.Fraction.AssetMint = cfg.AssetMint
	}
	if meta.IsDefined("initial_owner") {
		cfg.InitialOwner = strings.TrimSpace(raw.InitialOwner)
	}
	if meta.IsDefined("metadata_uri") {
		cfg.MetadataURI = strings.TrimSpace(raw.MetadataURI)
	}

	if meta.IsDefined("total_shares") {
		if raw.TotalShares == 0 {
			return AppConfig{}, fmt.Errorf("total_shares deve ser maior que zero")
		}
		cfg.Fraction.TotalShares = raw.TotalShares
	}
	if meta.IsDefined("quorum_percent") {
		if raw.QuorumPercent == 0 || raw.QuorumPercent > 100 {
			return AppConfig{}, fmt.Errorf("quorum_percent deve estar entre 1 e 100")
		}
		cfg.Fraction.QuorumPercent = raw.QuorumPercent
	}
	if meta.IsDefined("auction_duration") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.AuctionDuration))
		if err != nil {
			return AppConfig{}, fmt.Errorf("auction_duration inválida: %w", err)
		}
		cfg.Fraction.AuctionDuration = d
	}
	if meta.IsDefined("watcher_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WatcherInterval))
		if err != nil {
			return AppConfig{}, fmt.Errorf("watcher_interval inválido: %w", err)
		}
		cfg.WatcherInterval = d
	}

	return cfg, nil
}
