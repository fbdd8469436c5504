// Package eth implements EIP-191 personal message signing and signer recovery.
package eth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of an [R || S || V] signature
const SignatureLength = crypto.SignatureLength

var (
	ErrMalformedSignature = errors.New("malformed signature")
	ErrInvalidRecoveryID  = errors.New("invalid signature recovery id")
)

// RecoverAddress returns the address whose key produced signature over the
// EIP-191 personal message hash of message. The recovery id may be 0/1 or 27/28.
func RecoverAddress(message string, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, SignatureLength, len(sig))
	}

	// Don't mutate the caller's buffer
	sig = append([]byte(nil), sig...)
	switch sig[crypto.RecoveryIDOffset] {
	case 0, 1:
	case 27, 28:
		sig[crypto.RecoveryIDOffset] -= 27
	default:
		return common.Address{}, ErrInvalidRecoveryID
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// SignMessage signs the EIP-191 personal message hash of message and returns
// the hex signature with a 27/28 recovery id, as wallets do.
func SignMessage(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// Recoverer adapts RecoverAddress to ports.SignatureRecoverer
type Recoverer struct{}

// RecoverAddress returns the checksummed hex address of the signer
func (Recoverer) RecoverAddress(message, signature string) (string, error) {
	addr, err := RecoverAddress(message, signature)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}
