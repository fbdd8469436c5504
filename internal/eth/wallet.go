package eth

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet holds a secp256k1 key and signs personal messages with it
type Wallet struct {
	key *ecdsa.PrivateKey
}

// GenerateWallet creates a wallet with a fresh random key
func GenerateWallet() (*Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &Wallet{key: key}, nil
}

// WalletFromHex loads a wallet from a hex-encoded private key
func WalletFromHex(hexKey string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{key: key}, nil
}

// Address returns the checksummed address of the wallet
func (w *Wallet) Address() string {
	return crypto.PubkeyToAddress(w.key.PublicKey).Hex()
}

// SignMessage signs message as an EIP-191 personal message
func (w *Wallet) SignMessage(message string) (string, error) {
	return SignMessage(w.key, message)
}
