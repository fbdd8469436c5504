package app

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// LoadSigningKey returns the ES256 key used to sign access tokens.
//
// With no key file configured a fresh P-256 key is generated on every start,
// so all issued sessions become invalid when the process restarts.
func LoadSigningKey(cfg Config, logger *slog.Logger) (*ecdsa.PrivateKey, error) {
	if cfg.SigningKeyFile == "" {
		logger.Warn("no signing key configured, generating ephemeral key")

		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		return key, nil
	}

	raw, err := os.ReadFile(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	key, err := jwt.ParseECPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signing key must be on curve P-256, got %s", key.Curve.Params().Name)
	}

	logger.Info("signing key loaded", "path", cfg.SigningKeyFile)
	return key, nil
}
