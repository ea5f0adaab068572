package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/andres-erbsen/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ferreirogomes/fraciona/auction_watcher"
	"github.com/ferreirogomes/fraciona/handlers"
	"github.com/ferreirogomes/fraciona/services"
	"github.com/ferreirogomes/fraciona/storage"
)

func main() {
	configPath := flag.String("config", "fraciona.toml", "caminho do arquivo de configuração")
	flag.Parse()

	zl, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	cfg, err := loadAppConfig(*configPath)
	if err != nil {
		logger.Fatalw("falha fatal ao carregar configuração", "err", err)
	}

	db, err := storage.NewDB(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatalw("falha fatal ao conectar ao banco de dados e aplicar migrações", "err", err)
	}
	defer db.Close()

	vault, err := services.NewSolanaVaultService(
		cfg.SolanaRPCURL, cfg.EscrowPrivateKey, cfg.AssetMint, cfg.InitialOwner, cfg.MetadataURI, logger,
	)
	if err != nil {
		logger.Fatalw("falha ao inicializar cofre Solana", "err", err)
	}

	clk := clock.New()
	fractionService := services.NewFractionService(cfg.Fraction, vault, vault, db, clk, logger)

	fractionHandler := handlers.NewFractionHandler(fractionService, db)
	auctionHandler := handlers.NewAuctionHandler(fractionService, db)
	sharesHandler := handlers.NewSharesHandler(fractionService)

	// Liquida leilões vencidos mesmo sem ninguém chamar POST /auction/settle.
	watcher := auction_watcher.NewAuctionWatcher(fractionService, cfg.WatcherInterval, clk, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.StartWatching(ctx)
	logger.Infow("watcher de liquidação iniciado")

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.URLFormat)

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
		r.Post("/approve", sharesHandler.Approve)
		r.Post("/transfer-from", sharesHandler.TransferFrom)
		r.Get("/{account}", sharesHandler.GetBalance)
		r.Get("/", sharesHandler.GetHolders)
	})

	r.Route("/auction", func(r chi.Router) {
		r.Post("/", auctionHandler.InitiateBuyout)
		r.Get("/", fractionHandler.GetStatus)
		r.Post("/bids/prepare", auctionHandler.PrepareBid)
		r.Post("/bids", auctionHandler.PlaceBid)
		r.Get("/bids", auctionHandler.GetBids)
		r.Get("/payouts", auctionHandler.GetPayouts)
		r.Post("/settle", auctionHandler.Settle)
	})

	r.Get("/events", auctionHandler.GetEvents)

	// Transferências de valor fora de um lance são sempre recusadas.
	r.Post("/deposits", fractionHandler.RejectDeposit)

	logger.Infow("servidor backend rodando", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		logger.Fatalw("servidor encerrou com erro", "err", err)
	}
}
