package service

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// personalSign mimics a wallet: EIP-191 hash, then v shifted to 27/28.
func personalSign(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestEthSignatureVerifier_RecoversSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())

	v := NewEthSignatureVerifier()
	msg := "Verify ownership of this address for FlowKora\nNonce: abc"

	got, err := v.RecoverAddress(msg, personalSign(t, key, msg))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEthSignatureVerifier_AcceptsRawRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	msg := "hello"
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	require.NoError(t, err)

	got, err := NewEthSignatureVerifier().RecoverAddress(msg, hexutil.Encode(sig)[2:])
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()), got)
}

func TestEthSignatureVerifier_DifferentMessageRecoversDifferentSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())

	sig := personalSign(t, key, "original")
	got, err := NewEthSignatureVerifier().RecoverAddress("tampered", sig)
	if err == nil {
		assert.NotEqual(t, signer, got)
	}
}

func TestEthSignatureVerifier_Malformed(t *testing.T) {
	v := NewEthSignatureVerifier()

	tests := []struct {
		name string
		sig  string
	}{
		{"not hex", "0xnothex"},
		{"too short", "0x1234"},
		{"bad recovery id", "0x" + strings.Repeat("11", 64) + "05"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.RecoverAddress("msg", tt.sig)
			assert.Error(t, err)
		})
	}
}
