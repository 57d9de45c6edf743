package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"flowkora/internal/core/domain"
	"flowkora/pkg/apperror"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

// transferEventTopic is keccak256("Transfer(address,address,uint256)").
var transferEventTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// ReceiptFetcher is the subset of ethclient.Client the verifier needs.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TokenContract is an ERC-20 accepted for a settlement currency.
type TokenContract struct {
	Address  common.Address
	Decimals int32
}

// EthChainVerifier implements ports.ChainVerifier against an EVM JSON-RPC node.
type EthChainVerifier struct {
	client ReceiptFetcher
	tokens map[domain.Currency]TokenContract
	log    zerolog.Logger
}

// NewEthChainVerifier creates a verifier for the given token contracts.
func NewEthChainVerifier(client ReceiptFetcher, tokens map[domain.Currency]TokenContract, log zerolog.Logger) *EthChainVerifier {
	return &EthChainVerifier{client: client, tokens: tokens, log: log}
}

// VerifyTransfer checks that txHash succeeded and moved at least the session
// amount of the session's token to its payout snapshot.
func (v *EthChainVerifier) VerifyTransfer(ctx context.Context, txn *domain.Transaction, txHash string) error {
	if txn.MerchantPayoutWalletAddress == nil {
		return apperror.ErrChainVerificationFailed("session has no verified payout address")
	}
	token, ok := v.tokens[txn.Currency]
	if !ok {
		return apperror.ErrChainVerificationFailed("no token contract configured for " + string(txn.Currency))
	}

	receipt, err := v.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return apperror.ErrChainVerificationFailed("transaction not found")
	}
	if err != nil {
		return apperror.InternalError(fmt.Errorf("fetch receipt: %w", err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return apperror.ErrChainVerificationFailed("transaction reverted")
	}

	recipient := common.HexToAddress(*txn.MerchantPayoutWalletAddress)
	// Fractions below the token's precision round up to the next base unit.
	want := txn.Amount.Shift(token.Decimals).Ceil().BigInt()

	for _, lg := range receipt.Logs {
		if lg.Address != token.Address || len(lg.Topics) != 3 || lg.Topics[0] != transferEventTopic {
			continue
		}
		if common.BytesToAddress(lg.Topics[2].Bytes()) != recipient {
			continue
		}
		if new(big.Int).SetBytes(lg.Data).Cmp(want) >= 0 {
			v.log.Debug().
				Str("session_id", txn.ID.String()).
				Str("tx_hash", txHash).
				Uint64("block", receipt.BlockNumber.Uint64()).
				Msg("on-chain transfer verified")
			return nil
		}
	}
	return apperror.ErrChainVerificationFailed("no matching token transfer to payout address")
}
