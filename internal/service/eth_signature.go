package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var errMalformedSignature = errors.New("malformed signature")

// EthSignatureVerifier implements ports.WalletSignatureVerifier for EIP-191
// personal_sign signatures.
type EthSignatureVerifier struct{}

// NewEthSignatureVerifier creates a new EthSignatureVerifier.
func NewEthSignatureVerifier() *EthSignatureVerifier {
	return &EthSignatureVerifier{}
}

// RecoverAddress returns the lowercase address that signed message.
// signature is the 65-byte r||s||v form, hex encoded, with v in {0,1,27,28}.
func (v *EthSignatureVerifier) RecoverAddress(message string, signature string) (string, error) {
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(strings.ToLower(signature))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errMalformedSignature, err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("%w: want %d bytes, got %d", errMalformedSignature, crypto.SignatureLength, len(sig))
	}

	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return "", fmt.Errorf("%w: invalid recovery id", errMalformedSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("recovering public key: %w", err)
	}
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex()), nil
}
