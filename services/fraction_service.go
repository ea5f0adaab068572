package services

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/google/uuid"
	"github.com/petermattis/goid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/ferreirogomes/fraciona/models"
)

// Config reúne os parâmetros do fracionamento e do leilão de resgate,
// injetados na construção para permitir testes com números pequenos.
type Config struct {
	AssetMint       string        // Mint do NFT fracionado na Solana
	TotalShares     uint64        // Suprimento fixo de cotas emitido no fracionamento
	QuorumPercent   uint64        // Fração mínima (em %) para iniciar o resgate
	AuctionDuration time.Duration // Janela do leilão a partir do início do resgate
}

// DefaultConfig devolve os parâmetros de produção.
func DefaultConfig() Config {
	return Config{
		TotalShares:     1_000_000,
		QuorumPercent:   75,
		AuctionDuration: 7 * 24 * time.Hour,
	}
}

// Settlement resume o resultado de uma liquidação já executada.
type Settlement struct {
	Winner  string          `json:"winner,omitempty"`
	Amount  uint64          `json:"amount"`
	Expired bool            `json:"expired"` // true quando a janela venceu sem lances
	Dust    uint64          `json:"dust"`    // resto da divisão inteira, retido no cofre
	Payouts []models.Payout `json:"payouts"`
}

// Status é a visão de leitura do estado do serviço.
type Status struct {
	Asset         *models.Asset `json:"asset,omitempty"`
	Phase         models.Phase  `json:"phase"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
	HighestBid    uint64        `json:"highest_bid"`
	HighestBidder string        `json:"highest_bidder,omitempty"`
	TotalSupply   uint64        `json:"total_supply"`
	HolderCount   int           `json:"holder_count"`
	PendingClaims int           `json:"pending_claims"`
}

// FractionService governa o ciclo de vida completo de um ativo fracionado:
// emissão das cotas, leilão de resgate com reembolso automático de lances
// superados, liquidação pró-rata e resgate das cotas de volta à posse plena.
//
// Todos os pontos de entrada rodam até o fim sob exclusão mútua, atendidos na
// ordem de chegada. As únicas saídas para código fora da fronteira de
// confiança são as chamadas de ValueTransfer e AssetRegistry; um callback
// dessas chamadas que reentre um ponto de entrada falha imediatamente com
// ErrReentrantCall, enquanto requisições de outras goroutines apenas esperam
// a vez.
type FractionService struct {
	cfg      Config
	registry AssetRegistry
	vault    ValueTransfer
	store    Store
	clock    clock.Clock
	logger   *zap.SugaredLogger

	// mu serializa os pontos de entrada; holder guarda a goroutine que detém
	// a trava, para distinguir um callback reentrante (mesma goroutine, falha
	// rápido) de uma requisição concorrente (espera no mutex).
	mu     sync.Mutex
	holder atomic.Int64

	asset  *models.Asset
	ledger *ShareLedger

	phase         models.Phase
	endTime       time.Time
	highestBid    uint64
	highestBidder string

	claims     map[string]uint64 // créditos pendentes de pagamentos recusados
	settlement *Settlement       // preenchido uma única vez, na liquidação
}

// NewFractionService monta o serviço com as capacidades externas injetadas.
func NewFractionService(cfg Config, registry AssetRegistry, vault ValueTransfer, store Store, clk clock.Clock, logger *zap.SugaredLogger) *FractionService {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if store == nil {
		store = NopStore{}
	}
	return &FractionService{
		cfg:      cfg,
		registry: registry,
		vault:    vault,
		store:    store,
		clock:    clk,
		logger:   logger,
		ledger:   NewShareLedger(),
		phase:    models.PhaseInactive,
		claims:   make(map[string]uint64),
	}
}

// lock arma a trava de um ponto de entrada. Uma chamada vinda de dentro de um
// callback de transferência de valor roda na mesma goroutine que já detém a
// trava; bloquear nela seria deadlock, então a reentrada falha rápido. Outras
// goroutines esperam normalmente e são atendidas em ordem.
func (s *FractionService) lock() error {
	gid := goid.Get()
	if s.holder.Load() == gid {
		return ErrReentrantCall
	}
	s.mu.Lock()
	s.holder.Store(gid)
	return nil
}

func (s *FractionService) unlock() {
	s.holder.Store(0)
	s.mu.Unlock()
}

// Fractionalize converte a posse única do ativo no suprimento fixo de cotas,
// todo creditado ao fracionador. Só pode acontecer uma vez por instância.
func (s *FractionService) Fractionalize(curator string) (models.Asset, error) {
	if err := s.lock(); err != nil {
		return models.Asset{}, err
	}
	defer s.unlock()

	if curator == "" {
		return models.Asset{}, ErrInvalidAccount
	}
	if s.ledger.Minted() {
		return models.Asset{}, ErrAlreadyFractionalized
	}

	uri, err := s.registry.MetadataURI()
	if err != nil {
		return models.Asset{}, fmt.Errorf("falha ao consultar metadados do ativo: %w", err)
	}

	if err := s.ledger.Mint(curator, s.cfg.TotalShares); err != nil {
		return models.Asset{}, err
	}

	asset := models.Asset{
		ID:          uuid.New().String(),
		MintAddress: s.cfg.AssetMint,
		MetadataURI: uri,
		Curator:     curator,
		TotalShares: s.cfg.TotalShares,
		CreatedAt:   s.clock.Now(),
	}
	s.asset = &asset

	s.mirror("save_asset", s.store.SaveAsset(asset))
	s.mirrorHolding(curator)
	s.emit(models.EventFractionalized, map[string]any{"total_shares": s.cfg.TotalShares})

	s.logger.Infow("ativo fracionado", "asset", asset.ID, "curator", curator, "total_shares", s.cfg.TotalShares)
	return asset, nil
}

// InitiateBuyout abre o leilão de resgate. Exige que o iniciador detenha o
// quórum de cotas; uma vez iniciado, não há caminho de cancelamento além do
// vencimento natural da janela sem lances.
func (s *FractionService) InitiateBuyout(initiator string) (time.Time, error) {
	if err := s.lock(); err != nil {
		return time.Time{}, err
	}
	defer s.unlock()

	if initiator == "" {
		return time.Time{}, ErrInvalidAccount
	}
	if !s.ledger.Minted() {
		return time.Time{}, ErrNotFractionalized
	}
	if s.phase != models.PhaseInactive {
		return time.Time{}, ErrAuctionAlreadyActive
	}

	// Piso da divisão inteira: 75% de 1.000.000 = 750.000. O produto passa
	// por proRata para não estourar uint64 com suprimentos enormes.
	quorum := proRata(s.ledger.TotalSupply(), s.cfg.QuorumPercent, 100)
	if s.ledger.BalanceOf(initiator) < quorum {
		return time.Time{}, ErrQuorumNotMet
	}

	s.phase = models.PhasePending
	s.endTime = s.clock.Now().Add(s.cfg.AuctionDuration)

	s.emit(models.EventBuyoutInitiated, map[string]any{"initiator": initiator, "end_time": s.endTime})
	s.logger.Infow("resgate iniciado", "initiator", initiator, "end_time", s.endTime)
	return s.endTime, nil
}

// PrepareBidDeposit monta a transação de depósito de um lance para assinatura
// do licitante, validando as pré-condições antes para não preparar depósitos
// que serão recusados.
func (s *FractionService) PrepareBidDeposit(bidder string, amount uint64) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.unlock()

	if bidder == "" {
		return "", ErrInvalidAccount
	}
	if err := s.checkBiddable(amount); err != nil {
		return "", err
	}
	return s.vault.PrepareDeposit(bidder, amount)
}

func (s *FractionService) checkBiddable(amount uint64) error {
	if s.phase != models.PhasePending {
		return ErrAuctionNotActive
	}
	if !s.clock.Now().Before(s.endTime) {
		return ErrAuctionEnded
	}
	if amount <= s.highestBid {
		return ErrBidTooLow
	}
	return nil
}

// PlaceBid registra um lance estritamente maior que o atual, como uma unidade
// indivisível: valida, recolhe o depósito do novo licitante para o escrow,
// reembolsa o licitante anterior no valor exato do lance dele e só então grava
// o novo lance. Se o reembolso falhar, o lance inteiro é rejeitado e o
// depósito recém-recolhido é devolvido; o licitante anterior segue na frente.
func (s *FractionService) PlaceBid(bidder string, amount uint64, signedDeposit string) (models.Bid, error) {
	if err := s.lock(); err != nil {
		return models.Bid{}, err
	}
	defer s.unlock()

	if bidder == "" {
		return models.Bid{}, ErrInvalidAccount
	}
	if err := s.checkBiddable(amount); err != nil {
		return models.Bid{}, err
	}

	txID, err := s.vault.Collect(bidder, amount, signedDeposit)
	if err != nil {
		return models.Bid{}, fmt.Errorf("falha ao recolher o depósito do lance: %w", err)
	}

	// Reembolsa o licitante anterior antes de qualquer mutação de estado; a
	// trava de reentrância cobre a operação de ponta a ponta, então um lance
	// reentrante disparado pelo reembolso falha sem observar estado parcial.
	if s.highestBidder != "" {
		if err := s.vault.Pay(s.highestBidder, s.highestBid); err != nil {
			if rbErr := s.vault.Pay(bidder, amount); rbErr != nil {
				// Não conseguimos nem devolver o depósito novo: vira crédito
				// pendente para o licitante reivindicar depois.
				s.addClaim(bidder, amount)
				s.logger.Errorw("depósito do lance retido como crédito pendente",
					"bidder", bidder, "amount", amount, "err", rbErr)
			}
			return models.Bid{}, fmt.Errorf("falha ao reembolsar o lance anterior: %w", err)
		}
	}

	s.highestBid = amount
	s.highestBidder = bidder

	bid := models.Bid{
		ID:            uuid.New().String(),
		AssetID:       s.assetID(),
		Bidder:        bidder,
		Amount:        amount,
		TransactionID: txID,
		PlacedAt:      s.clock.Now(),
	}
	s.mirror("save_bid", s.store.SaveBid(bid))
	s.emit(models.EventBidPlaced, map[string]any{"bidder": bidder, "amount": amount})

	s.logger.Infow("lance registrado", "bidder", bidder, "amount", amount, "tx", txID)
	return bid, nil
}

// CompleteBuyout liquida o leilão depois que a janela encerra. A transição
// para Settled é o primeiro efeito, então uma segunda chamada é um no-op que
// apenas devolve o resumo já calculado. Sem lances, a janela simplesmente
// expira: nada de fundos se move e a posse do ativo não muda.
func (s *FractionService) CompleteBuyout() (*Settlement, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.unlock()

	switch s.phase {
	case models.PhaseSettled:
		return s.settlement, nil
	case models.PhaseInactive:
		return nil, ErrAuctionNotActive
	}
	if s.clock.Now().Before(s.endTime) {
		return nil, ErrAuctionNotEnded
	}

	s.phase = models.PhaseSettled

	if s.highestBidder == "" {
		s.settlement = &Settlement{Expired: true}
		s.logger.Infow("leilão expirou sem lances; nenhuma liquidação")
		return s.settlement, nil
	}

	// Snapshot do suprimento e do conjunto de cotistas antes de qualquer
	// queima: iterar o registro de cotistas, nunca um índice sobre o ledger
	// que está sendo queimado no caminho.
	supply := s.ledger.TotalSupply()
	holders := s.ledger.Holders()
	result := &Settlement{Winner: s.highestBidder, Amount: s.highestBid}

	var distributed uint64
	for _, holder := range holders {
		balance := s.ledger.BalanceOf(holder)
		if balance == 0 {
			continue
		}
		value := proRata(s.highestBid, balance, supply)

		if err := s.ledger.Burn(holder, balance); err != nil {
			// Inalcançável por sequências válidas; registrado como bug.
			s.logger.Errorw("violação de conservação na queima da liquidação",
				"holder", holder, "balance", balance, "err", err)
			continue
		}
		s.mirrorHolding(holder)

		payout := models.Payout{
			ID:      uuid.New().String(),
			AssetID: s.assetID(),
			Account: holder,
			Shares:  balance,
			Amount:  value,
			Paid:    true,
			PaidAt:  s.clock.Now(),
		}
		// A falha de pagamento de um cotista não pode travar os demais nem
		// permitir pagamento em dobro: o valor devido vira crédito pendente.
		if err := s.vault.Pay(holder, value); err != nil {
			payout.Paid = false
			s.addClaim(holder, value)
			s.logger.Warnw("pagamento de liquidação recusado; crédito pendente registrado",
				"holder", holder, "amount", value, "err", err)
		}
		distributed += value
		result.Payouts = append(result.Payouts, payout)
		s.mirror("save_payout", s.store.SavePayout(payout))
	}
	result.Dust = s.highestBid - distributed

	if err := s.registry.TransferOwnership(s.highestBidder); err != nil {
		// A fase já é Settled e as cotas já foram queimadas; a transferência
		// do ativo fica para reconciliação manual contra a chain.
		s.logger.Errorw("falha ao transferir a posse do ativo ao vencedor",
			"winner", s.highestBidder, "err", err)
	}

	s.settlement = result
	s.emit(models.EventBuyoutCompleted, map[string]any{"winner": result.Winner, "amount": result.Amount})
	s.logger.Infow("resgate liquidado", "winner", result.Winner, "amount", result.Amount,
		"payouts", len(result.Payouts), "dust", result.Dust)
	return result, nil
}

// Redeem queima cotas do chamador fora de qualquer leilão. Quando o chamador
// detém exatamente todo o suprimento corrente, o resgate reconstitui a posse
// plena e o ativo é transferido para ele; resgates parciais de várias partes
// deixam o ativo parado até alguém acumular 100%.
func (s *FractionService) Redeem(caller string, shares uint64) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.unlock()

	if caller == "" {
		return false, ErrInvalidAccount
	}
	if !s.ledger.Minted() {
		return false, ErrNotFractionalized
	}
	if s.phase != models.PhaseInactive {
		return false, ErrAuctionActive
	}
	if shares == 0 {
		return false, ErrInvalidAmount
	}
	balance := s.ledger.BalanceOf(caller)
	if balance < shares {
		return false, ErrInsufficientBalance
	}

	// balance == suprimento corrente significa cotista único; a igualdade
	// sobrevive à queima (os dois lados caem pelo mesmo valor). A posse é
	// transferida antes da queima para que a falha externa aborte a operação
	// inteira sem mutação parcial.
	sole := balance == s.ledger.TotalSupply()
	if sole {
		if err := s.registry.TransferOwnership(caller); err != nil {
			return false, fmt.Errorf("falha ao transferir a posse do ativo ao resgatante: %w", err)
		}
	}

	if err := s.ledger.Burn(caller, shares); err != nil {
		return false, err
	}
	s.mirrorHolding(caller)

	s.emit(models.EventRedeemed, map[string]any{"redeemer": caller, "shares": shares})
	s.logger.Infow("cotas resgatadas", "redeemer", caller, "shares", shares, "sole_holder", sole)
	return sole, nil
}

// ClaimPayout tenta de novo um pagamento de liquidação (ou devolução de
// depósito) que havia sido recusado. O crédito só é baixado depois que o
// pagamento de fato sai.
func (s *FractionService) ClaimPayout(account string) (uint64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.unlock()

	amount, ok := s.claims[account]
	if !ok || amount == 0 {
		return 0, ErrNothingToClaim
	}
	if err := s.vault.Pay(account, amount); err != nil {
		return 0, fmt.Errorf("falha ao pagar crédito pendente: %w", err)
	}
	delete(s.claims, account)
	s.mirror("delete_claim", s.store.DeleteClaim(s.assetID(), account))

	s.logger.Infow("crédito pendente pago", "account", account, "amount", amount)
	return amount, nil
}

// ReceiveFunds é o caminho de rejeição explícita: qualquer transferência de
// valor que não esteja vinculada a um lance é recusada, nunca aceita em
// silêncio.
func (s *FractionService) ReceiveFunds(from string, amount uint64) error {
	s.logger.Warnw("transferência de valor não solicitada recusada", "from", from, "amount", amount)
	return ErrUnsolicitedTransfer
}

// TransferShares move cotas entre contas.
func (s *FractionService) TransferShares(from, to string, amount uint64) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlock()

	if !s.ledger.Minted() {
		return ErrNotFractionalized
	}
	if err := s.ledger.Transfer(from, to, amount); err != nil {
		return err
	}
	s.mirrorHolding(from)
	s.mirrorHolding(to)
	return nil
}

// ApproveShares autoriza spender a gastar cotas de owner.
func (s *FractionService) ApproveShares(owner, spender string, amount uint64) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlock()

	if !s.ledger.Minted() {
		return ErrNotFractionalized
	}
	return s.ledger.Approve(owner, spender, amount)
}

// TransferSharesFrom move cotas consumindo uma autorização.
func (s *FractionService) TransferSharesFrom(spender, from, to string, amount uint64) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlock()

	if !s.ledger.Minted() {
		return ErrNotFractionalized
	}
	if err := s.ledger.TransferFrom(spender, from, to, amount); err != nil {
		return err
	}
	s.mirrorHolding(from)
	s.mirrorHolding(to)
	return nil
}

// MetadataURI devolve o localizador dos metadados do ativo, do registro
// externo enquanto o ativo não foi fracionado.
func (s *FractionService) MetadataURI() (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.unlock()

	if s.asset != nil {
		return s.asset.MetadataURI, nil
	}
	return s.registry.MetadataURI()
}

// AssetOwner devolve o dono corrente do ativo no registro externo.
func (s *FractionService) AssetOwner() (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.unlock()
	return s.registry.OwnerOf()
}

// BalanceOf devolve o saldo de cotas de uma conta.
func (s *FractionService) BalanceOf(account string) (uint64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.unlock()
	return s.ledger.BalanceOf(account), nil
}

// Holders devolve o snapshot ordenado das contas com saldo positivo.
func (s *FractionService) Holders() ([]string, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.unlock()
	return s.ledger.Holders(), nil
}

// Status devolve a visão de leitura do estado corrente.
func (s *FractionService) Status() (Status, error) {
	if err := s.lock(); err != nil {
		return Status{}, err
	}
	defer s.unlock()

	st := Status{
		Asset:         s.asset,
		Phase:         s.phase,
		HighestBid:    s.highestBid,
		HighestBidder: s.highestBidder,
		TotalSupply:   s.ledger.TotalSupply(),
		HolderCount:   s.ledger.HolderCount(),
		PendingClaims: len(s.claims),
	}
	if s.phase != models.PhaseInactive {
		end := s.endTime
		st.EndTime = &end
	}
	return st, nil
}

// SettlementDue informa se a janela do leilão já venceu sem liquidação; o
// watcher usa isso para disparar CompleteBuyout.
func (s *FractionService) SettlementDue() bool {
	if s.lock() != nil {
		return false
	}
	defer s.unlock()
	return s.phase == models.PhasePending && !s.clock.Now().Before(s.endTime)
}

func (s *FractionService) assetID() string {
	if s.asset == nil {
		return ""
	}
	return s.asset.ID
}

func (s *FractionService) addClaim(account string, amount uint64) {
	s.claims[account] += amount
	s.mirror("save_claim", s.store.SaveClaim(models.Claim{
		AssetID:   s.assetID(),
		Account:   account,
		Amount:    s.claims[account],
		CreatedAt: s.clock.Now(),
	}))
}

// mirrorHolding espelha no banco o saldo corrente de uma conta.
func (s *FractionService) mirrorHolding(account string) {
	balance := s.ledger.BalanceOf(account)
	if balance == 0 {
		s.mirror("delete_holding", s.store.DeleteHolding(s.assetID(), account))
		return
	}
	s.mirror("save_holding", s.store.SaveHolding(models.Holding{
		AssetID:   s.assetID(),
		Account:   account,
		Balance:   balance,
		UpdatedAt: s.clock.Now(),
	}))
}

// mirror registra falhas de escrita no espelho persistente sem abortar a
// operação: a memória guardada pelo serviço é a fonte de verdade.
func (s *FractionService) mirror(op string, err error) {
	if err != nil {
		s.logger.Errorw("falha ao espelhar estado no banco", "op", op, "err", err)
	}
}

func (s *FractionService) emit(t models.EventType, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	s.mirror("save_event", s.store.SaveEvent(models.Event{
		ID:        uuid.New().String(),
		AssetID:   s.assetID(),
		Type:      t,
		Payload:   string(raw),
		EmittedAt: s.clock.Now(),
	}))
}

// proRata calcula floor(bid * balance / supply) com o produto intermediário em
// 128 bits, para não estourar uint64 com lances grandes.
func proRata(bid, balance, supply uint64) uint64 {
	v := new(big.Int).Mul(new(big.Int).SetUint64(bid), new(big.Int).SetUint64(balance))
	v.Div(v, new(big.Int).SetUint64(supply))
	return v.Uint64()
}
