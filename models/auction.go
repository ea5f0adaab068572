package models

import "time"

// Phase é a fase do ciclo de vida do leilão de resgate.
// As transições válidas são apenas Inactive -> Pending -> Settled.
type Phase string

const (
	PhaseInactive Phase = "inactive"
	PhasePending  Phase = "pending"
	PhaseSettled  Phase = "settled"
)

// Bid representa um lance registrado no leilão de resgate.
type Bid struct {
	ID            string    `json:"id" db:"id"`
	AssetID       string    `json:"asset_id" db:"asset_id"`
	Bidder        string    `json:"bidder" db:"bidder"`
	Amount        uint64    `json:"amount" db:"amount"` // Em lamports
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	PlacedAt      time.Time `json:"placed_at" db:"placed_at"`
}

// Payout representa o pagamento pró-rata de um cotista na liquidação.
type Payout struct {
	ID      string    `json:"id" db:"id"`
	AssetID string    `json:"asset_id" db:"asset_id"`
	Account string    `json:"account" db:"account"`
	Shares  uint64    `json:"shares" db:"shares"` // Cotas queimadas neste pagamento
	Amount  uint64    `json:"amount" db:"amount"`
	Paid    bool      `json:"paid" db:"paid"` // false quando o pagamento falhou e virou crédito pendente
	PaidAt  time.Time `json:"paid_at" db:"paid_at"`
}

// Claim representa um crédito pendente: um pagamento de liquidação que o
// destinatário recusou ou que falhou, guardado para ser reivindicado depois.
type Claim struct {
	AssetID   string    `json:"asset_id" db:"asset_id"`
	Account   string    `json:"account" db:"account"`
	Amount    uint64    `json:"amount" db:"amount"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EventType identifica as notificações de ciclo de vida emitidas pelo serviço.
type EventType string

const (
	EventFractionalized  EventType = "fractionalized"
	EventBuyoutInitiated EventType = "buyout_initiated"
	EventBidPlaced       EventType = "bid_placed"
	EventBuyoutCompleted EventType = "buyout_completed"
	EventRedeemed        EventType = "redeemed"
)

// Event é uma notificação de ciclo de vida, também espelhada no banco.
// Payload carrega os campos fixos de cada tipo de evento em JSON.
type Event struct {
	ID        string    `json:"id" db:"id"`
	AssetID   string    `json:"asset_id" db:"asset_id"`
	Type      EventType `json:"type" db:"type"`
	Payload   string    `json:"payload" db:"payload"`
	EmittedAt time.Time `json:"emitted_at" db:"emitted_at"`
}
