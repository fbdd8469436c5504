package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with the wallet the identity belongs to
type AccessClaims struct {
	jwt.RegisteredClaims
	WalletAddress string `json:"wallet_address"`
}
