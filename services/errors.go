package services

import "errors"

// Erros de pré-condição: a operação é abortada inteira, sem mutação parcial.
var (
	ErrNotFractionalized     = errors.New("ativo ainda não foi fracionado")
	ErrAlreadyFractionalized = errors.New("ativo já foi fracionado")
	ErrAuctionAlreadyActive  = errors.New("leilão de resgate já foi iniciado")
	ErrQuorumNotMet          = errors.New("quórum de cotas não atingido para iniciar o resgate")
	ErrAuctionNotActive      = errors.New("nenhum leilão de resgate ativo")
	ErrAuctionEnded          = errors.New("a janela do leilão já encerrou")
	ErrAuctionNotEnded       = errors.New("a janela do leilão ainda não encerrou")
	ErrBidTooLow             = errors.New("lance menor ou igual ao lance mais alto atual")
	ErrAuctionActive         = errors.New("resgate de cotas bloqueado enquanto há leilão ativo ou liquidado")
	ErrInvalidAmount         = errors.New("quantidade deve ser maior que zero")
	ErrNothingToClaim        = errors.New("nenhum crédito pendente para esta conta")
)

// Erros de conservação do ledger: inalcançáveis por sequências válidas de
// operações públicas; se aparecem, há bug interno.
var (
	ErrInsufficientBalance   = errors.New("saldo de cotas insuficiente")
	ErrInsufficientAllowance = errors.New("autorização de cotas insuficiente")
	ErrSupplyExceeded        = errors.New("emissão excederia o suprimento total")
)

// ErrInvalidAccount indica o uso da conta vazia/nula como ponta de uma
// transferência ou emissão.
var ErrInvalidAccount = errors.New("conta inválida para a operação")

// Erros da superfície de valor.
var (
	ErrReentrantCall       = errors.New("chamada reentrante rejeitada durante transferência de valor")
	ErrUnsolicitedTransfer = errors.New("transferência de valor não vinculada a um lance é recusada")
)
