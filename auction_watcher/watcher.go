// Package auction_watcher mantém a liquidação em dia: quando a janela do
// leilão vence e ninguém chamou a liquidação pela API, o watcher a dispara.
package auction_watcher

import (
	"context"
	"time"

	"github.com/andres-erbsen/clock"
	"go.uber.org/zap"

	"github.com/ferreirogomes/fraciona/services"
)

// AuctionWatcher observa o relógio e liquida o leilão vencido, rodando em uma
// goroutine separada do servidor HTTP.
type AuctionWatcher struct {
	Service  *services.FractionService
	Interval time.Duration

	clock  clock.Clock
	logger *zap.SugaredLogger
}

// NewAuctionWatcher cria uma nova instância do watcher.
func NewAuctionWatcher(service *services.FractionService, interval time.Duration, clk clock.Clock, logger *zap.SugaredLogger) *AuctionWatcher {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &AuctionWatcher{
		Service:  service,
		Interval: interval,
		clock:    clk,
		logger:   logger,
	}
}

// StartWatching roda até o contexto ser cancelado, checando a cada intervalo
// se há liquidação vencida. Erros são registrados e a checagem volta no
// próximo tique.
func (w *AuctionWatcher) StartWatching(ctx context.Context) {
	w.logger.Infow("watcher de liquidação iniciado", "interval", w.Interval)

	ticker := w.clock.Ticker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infow("watcher de liquidação encerrado")
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Tick faz uma checagem única; exportado para os testes dirigirem o watcher
// sem goroutine.
func (w *AuctionWatcher) Tick() {
	if !w.Service.SettlementDue() {
		return
	}

	result, err := w.Service.CompleteBuyout()
	if err != nil {
		// Outra entrada pode ter liquidado no meio do caminho; tenta de novo
		// no próximo tique.
		w.logger.Warnw("falha ao liquidar leilão vencido", "err", err)
		return
	}
	if result == nil {
		return
	}
	if result.Expired {
		w.logger.Infow("leilão expirou sem lances; liquidação vazia registrada")
		return
	}
	w.logger.Infow("leilão liquidado pelo watcher",
		"winner", result.Winner, "amount", result.Amount, "payouts", len(result.Payouts))
}
