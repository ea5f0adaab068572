package services

import "sort"

// ShareLedger mantém a contabilidade fungível das cotas de um ativo
// fracionado: saldos, autorizações e suprimento total. O conjunto de cotistas
// é atualizado na mesma mutação que escreve o saldo, para que a liquidação
// possa enumerar quem tem saldo sem varrer índices numéricos.
//
// O ledger não é seguro para uso concorrente por conta própria; o
// FractionService serializa todos os pontos de entrada que o mutam.
type ShareLedger struct {
	totalSupply uint64
	minted      bool
	balances    map[string]uint64
	allowances  map[string]map[string]uint64
	holders     map[string]struct{}
}

// NewShareLedger cria um ledger vazio, ainda sem emissão.
func NewShareLedger() *ShareLedger {
	return &ShareLedger{
		balances:   make(map[string]uint64),
		allowances: make(map[string]map[string]uint64),
		holders:    make(map[string]struct{}),
	}
}

// Mint emite o suprimento total de cotas para a conta do fracionador.
// Só pode acontecer uma vez, durante o fracionamento.
func (l *ShareLedger) Mint(to string, amount uint64) error {
	if to == "" {
		return ErrInvalidAccount
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if l.minted {
		return ErrSupplyExceeded
	}
	l.minted = true
	l.totalSupply = amount
	l.credit(to, amount)
	return nil
}

// Transfer move cotas entre contas, conservando o suprimento total.
func (l *ShareLedger) Transfer(from, to string, amount uint64) error {
	if from == "" || to == "" {
		return ErrInvalidAccount
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	return nil
}

// Approve autoriza spender a gastar até amount das cotas de owner.
func (l *ShareLedger) Approve(owner, spender string, amount uint64) error {
	if owner == "" || spender == "" {
		return ErrInvalidAccount
	}
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[string]uint64)
	}
	l.allowances[owner][spender] = amount
	return nil
}

// TransferFrom move cotas de from para to consumindo a autorização de spender.
func (l *ShareLedger) TransferFrom(spender, from, to string, amount uint64) error {
	if spender == "" || from == "" || to == "" {
		return ErrInvalidAccount
	}
	if l.allowances[from][spender] < amount {
		return ErrInsufficientAllowance
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.allowances[from][spender] -= amount
	l.credit(to, amount)
	return nil
}

// Burn destrói cotas de uma conta, reduzindo o suprimento total. Usado apenas
// pela liquidação e pelo resgate.
func (l *ShareLedger) Burn(account string, amount uint64) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if err := l.debit(account, amount); err != nil {
		return err
	}
	l.totalSupply -= amount
	return nil
}

// BalanceOf devolve o saldo de cotas da conta.
func (l *ShareLedger) BalanceOf(account string) uint64 {
	return l.balances[account]
}

// Allowance devolve quanto spender ainda pode gastar das cotas de owner.
func (l *ShareLedger) Allowance(owner, spender string) uint64 {
	return l.allowances[owner][spender]
}

// TotalSupply devolve o suprimento corrente (degrada com as queimas).
func (l *ShareLedger) TotalSupply() uint64 {
	return l.totalSupply
}

// Minted informa se a emissão única já aconteceu.
func (l *ShareLedger) Minted() bool {
	return l.minted
}

// Holders devolve um snapshot ordenado das contas com saldo positivo.
// A liquidação itera sobre esse snapshot, imune às queimas feitas no caminho.
func (l *ShareLedger) Holders() []string {
	out := make([]string, 0, len(l.holders))
	for h := range l.holders {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// HolderCount devolve quantas contas têm saldo positivo.
func (l *ShareLedger) HolderCount() int {
	return len(l.holders)
}

// credit adiciona saldo e inclui a conta no conjunto de cotistas na mesma
// mutação, sem janela em que os dois discordem.
func (l *ShareLedger) credit(account string, amount uint64) {
	if amount == 0 {
		return
	}
	l.balances[account] += amount
	l.holders[account] = struct{}{}
}

// debit remove saldo e tira a conta do conjunto de cotistas quando zera.
func (l *ShareLedger) debit(account string, amount uint64) error {
	if l.balances[account] < amount {
		return ErrInsufficientBalance
	}
	if amount == 0 {
		return nil
	}
	l.balances[account] -= amount
	if l.balances[account] == 0 {
		delete(l.balances, account)
		delete(l.holders, account)
	}
	return nil
}
