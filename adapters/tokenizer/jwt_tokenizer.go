package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/storefront/core"
	"github.com/layer-3/storefront/ports"
)

const AudienceAccess = "session:access"

// JWTTokenizer implements ports.Tokenizer with ES256-signed JWTs
type JWTTokenizer struct {
	signKey   *ecdsa.PrivateKey
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, issuer string, accessTTL time.Duration) *JWTTokenizer {
	return &JWTTokenizer{
		signKey:   signKey,
		issuer:    issuer,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// IdentityToAccessToken mints an access token whose subject is the identity id
func (j *JWTTokenizer) IdentityToAccessToken(identity *core.Identity) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.accessTTL)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   identity.ID,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		WalletAddress: identity.Address,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// AccessTokenToIdentity parses an access token and returns the identity it is bound to
func (j *JWTTokenizer) AccessTokenToIdentity(tokenStr string) (*core.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithAudience(AudienceAccess),
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, core.ErrInvalidToken
	}

	return &core.Identity{
		ID:      claims.Subject,
		Address: claims.WalletAddress,
	}, nil
}
