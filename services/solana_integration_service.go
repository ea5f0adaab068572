package services

import (
	"context"
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// SolanaVaultService implementa ValueTransfer e AssetRegistry contra a
// Solana: a conta de escrow guarda os lances em lamports e a custódia do NFT
// fracionado, e paga reembolsos e liquidações a partir dela.
//
// Os depósitos de lance seguem o fluxo prepare/complete: o backend monta a
// transação e assina como fee payer, o licitante assina no cliente e devolve
// a transação completa para submissão.
type SolanaVaultService struct {
	RPCClient *rpc.Client
	Escrow    solana.PrivateKey // paga taxas, guarda lances e custodia o NFT
	AssetMint solana.PublicKey

	metadataURI string
	owner       solana.PublicKey // dono corrente do ativo; a chain é a fonte de verdade

	logger *zap.SugaredLogger
}

// NewSolanaVaultService conecta ao RPC e carrega as chaves e endereços do
// cofre.
func NewSolanaVaultService(rpcEndpoint, escrowKeyBase58, assetMintBase58, initialOwnerBase58, metadataURI string, logger *zap.SugaredLogger) (*SolanaVaultService, error) {
	escrow, err := solana.PrivateKeyFromBase58(escrowKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("falha ao carregar chave privada do escrow: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(assetMintBase58)
	if err != nil {
		return nil, fmt.Errorf("endereço de mint do ativo inválido: %w", err)
	}
	owner, err := solana.PublicKeyFromBase58(initialOwnerBase58)
	if err != nil {
		return nil, fmt.Errorf("endereço do dono inicial inválido: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SolanaVaultService{
		RPCClient:   rpc.New(rpcEndpoint),
		Escrow:      escrow,
		AssetMint:   mint,
		metadataURI: metadataURI,
		owner:       owner,
		logger:      logger,
	}, nil
}

// PrepareDeposit monta a transação que move amount lamports do licitante para
// a conta de escrow e a devolve em Base64, já assinada pelo fee payer. A
// assinatura do licitante é adicionada no cliente.
func (s *SolanaVaultService) PrepareDeposit(from string, amount uint64) (string, error) {
	fromPubKey, err := solana.PublicKeyFromBase58(from)
	if err != nil {
		return "", fmt.Errorf("chave pública do licitante inválida: %w", err)
	}

	resp, err := s.RPCClient.GetRecentBlockhash(context.Background(), rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("falha ao obter blockhash: %w", err)
	}

	depositInstruction := system.NewTransferInstruction(
		amount,
		fromPubKey,
		s.Escrow.PublicKey(),
	).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{depositInstruction},
		resp.Value.Blockhash,
		solana.TransactionPayer(s.Escrow.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("falha ao criar transação de depósito: %w", err)
	}

	// O escrow assina como fee payer; o licitante assinará no cliente.
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.Escrow.PublicKey()) {
			return &s.Escrow
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("falha ao assinar depósito pelo fee payer: %w", err)
	}

	serialized, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("falha ao serializar transação de depósito: %w", err)
	}
	return base64.StdEncoding.EncodeToString(serialized), nil
}

// Collect recebe o depósito assinado pelo licitante e o submete à rede,
// confirmando que o valor do lance entrou no escrow.
func (s *SolanaVaultService) Collect(from string, amount uint64, signedDeposit string) (string, error) {
	signedBytes, err := base64.StdEncoding.DecodeString(signedDeposit)
	if err != nil {
		return "", fmt.Errorf("falha ao decodificar depósito assinado: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signedBytes))
	if err != nil {
		return "", fmt.Errorf("falha ao deserializar depósito assinado: %w", err)
	}

	txID, err := s.RPCClient.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("falha ao submeter depósito do lance: %w", err)
	}
	s.logger.Infow("depósito de lance submetido", "from", from, "amount", amount, "tx", txID.String())

	if _, err := s.RPCClient.GetSignatureStatuses(context.Background(), true, txID); err != nil {
		s.logger.Warnw("erro ao verificar status do depósito", "tx", txID.String(), "err", err)
	}
	return txID.String(), nil
}

// Pay envia amount lamports do escrow para a conta destino. Pode falhar se o
// destinatário for inválido ou a rede recusar; o chamador trata a falha sem
// perder a contabilidade interna.
func (s *SolanaVaultService) Pay(to string, amount uint64) error {
	toPubKey, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return fmt.Errorf("chave pública do destinatário inválida: %w", err)
	}

	resp, err := s.RPCClient.GetRecentBlockhash(context.Background(), rpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("falha ao obter blockhash: %w", err)
	}

	payInstruction := system.NewTransferInstruction(
		amount,
		s.Escrow.PublicKey(),
		toPubKey,
	).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{payInstruction},
		resp.Value.Blockhash,
		solana.TransactionPayer(s.Escrow.PublicKey()),
	)
	if err != nil {
		return fmt.Errorf("falha ao criar transação de pagamento: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.Escrow.PublicKey()) {
			return &s.Escrow
		}
		return nil
	}); err != nil {
		return fmt.Errorf("falha ao assinar pagamento: %w", err)
	}

	txID, err := s.RPCClient.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return fmt.Errorf("falha ao enviar pagamento: %w", err)
	}
	s.logger.Infow("pagamento enviado", "to", to, "amount", amount, "tx", txID.String())
	return nil
}

// OwnerOf devolve o dono corrente do ativo conforme a última transferência
// feita por este serviço; a reconciliação contra a chain corre por fora, como
// na sincronização de tokens.
func (s *SolanaVaultService) OwnerOf() (string, error) {
	return s.owner.String(), nil
}

// TransferOwnership move o NFT (quantidade 1) da custódia do escrow para a
// conta associada do novo dono.
func (s *SolanaVaultService) TransferOwnership(to string) error {
	toPubKey, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return fmt.Errorf("chave pública do novo dono inválida: %w", err)
	}

	fromATA, _, err := solana.FindAssociatedTokenAddress(s.Escrow.PublicKey(), s.AssetMint)
	if err != nil {
		return fmt.Errorf("falha ao encontrar ATA do escrow: %w", err)
	}
	toATA, _, err := solana.FindAssociatedTokenAddress(toPubKey, s.AssetMint)
	if err != nil {
		return fmt.Errorf("falha ao encontrar ATA do novo dono: %w", err)
	}

	resp, err := s.RPCClient.GetRecentBlockhash(context.Background(), rpc.CommitmentFinalized)
	if err != nil {
		return fmt.Errorf("falha ao obter blockhash: %w", err)
	}

	transferInstruction := token.NewTransferInstruction(
		1, // o ativo é único e indivisível
		fromATA,
		toATA,
		s.Escrow.PublicKey(),
		nil,
	).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{transferInstruction},
		resp.Value.Blockhash,
		solana.TransactionPayer(s.Escrow.PublicKey()),
	)
	if err != nil {
		return fmt.Errorf("falha ao criar transação de transferência do ativo: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.Escrow.PublicKey()) {
			return &s.Escrow
		}
		return nil
	}); err != nil {
		return fmt.Errorf("falha ao assinar transferência do ativo: %w", err)
	}

	txID, err := s.RPCClient.SendTransactionWithOpts(context.Background(), tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return fmt.Errorf("falha ao enviar transferência do ativo: %w", err)
	}

	s.owner = toPubKey
	s.logger.Infow("posse do ativo transferida", "to", to, "tx", txID.String())
	return nil
}

// MetadataURI devolve o localizador imutável dos metadados do ativo.
func (s *SolanaVaultService) MetadataURI() (string, error) {
	return s.metadataURI, nil
}
