package services

import "github.com/ferreirogomes/fraciona/models"

// AssetRegistry é a capacidade externa de identidade e transferência do ativo
// único. A implementação de produção fala com a Solana; os testes injetam um
// mock.
type AssetRegistry interface {
	// OwnerOf devolve a conta dona do ativo no registro externo.
	OwnerOf() (string, error)
	// TransferOwnership move a posse do ativo para a conta destino.
	TransferOwnership(to string) error
	// MetadataURI devolve o localizador imutável dos metadados do ativo.
	MetadataURI() (string, error)
}

// ValueTransfer é a capacidade externa de movimentar valor (lamports) entre o
// cofre de escrow do serviço e contas que o serviço não controla. Pay pode
// falhar se o destinatário recusar; o chamador precisa sobreviver a isso sem
// perder a correção contábil.
type ValueTransfer interface {
	// PrepareDeposit monta a transação de depósito do lance para a conta de
	// escrow e a devolve serializada em Base64, pronta para a assinatura do
	// licitante (mesmo fluxo prepare/complete das transferências de token).
	PrepareDeposit(from string, amount uint64) (string, error)
	// Collect submete o depósito assinado pelo licitante e confirma que o
	// valor do lance entrou no escrow.
	Collect(from string, amount uint64, signedDeposit string) (txID string, err error)
	// Pay envia amount do escrow para a conta destino.
	Pay(to string, amount uint64) error
}

// Store é o espelho persistente do estado do serviço. A memória guardada pelo
// FractionService é a fonte de verdade; falhas de escrita no espelho são
// registradas e não abortam a operação, como na reconciliação de tokens do
// backend de tokenização.
type Store interface {
	SaveAsset(asset models.Asset) error
	SaveHolding(holding models.Holding) error
	DeleteHolding(assetID, account string) error
	SaveBid(bid models.Bid) error
	SavePayout(payout models.Payout) error
	SaveClaim(claim models.Claim) error
	DeleteClaim(assetID, account string) error
	SaveEvent(event models.Event) error
}

// NopStore descarta todas as escritas; usado quando o espelho persistente
// está desabilitado.
type NopStore struct{}

func (NopStore) SaveAsset(models.Asset) error       { return nil }
func (NopStore) SaveHolding(models.Holding) error   { return nil }
func (NopStore) DeleteHolding(string, string) error { return nil }
func (NopStore) SaveBid(models.Bid) error           { return nil }
func (NopStore) SavePayout(models.Payout) error     { return nil }
func (NopStore) SaveClaim(models.Claim) error       { return nil }
func (NopStore) DeleteClaim(string, string) error   { return nil }
func (NopStore) SaveEvent(models.Event) error       { return nil }
