package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/storefront/core"
	"github.com/layer-3/storefront/pkg/idx"
	"github.com/layer-3/storefront/pkg/slogx"
	"github.com/layer-3/storefront/ports"
)

// AuthService handles the wallet challenge/response exchange
type AuthService struct {
	identities ports.IdentityStore
	tokenizer  ports.Tokenizer
	recoverer  ports.SignatureRecoverer
	eventPub   ports.EventPublisher
	nonces     ports.NonceStore // nil disables replay protection

	defaultDomain string
	statement     string
	chainID       string
	challengeTTL  time.Duration
	notBeforeSkew time.Duration

	now func() time.Time
}

// Option configures an AuthService
type Option func(*AuthService)

// WithDefaultDomain sets the domain used when the request carries none
func WithDefaultDomain(domain string) Option {
	return func(s *AuthService) { s.defaultDomain = domain }
}

// WithStatement overrides the disclosure statement
func WithStatement(statement string) Option {
	return func(s *AuthService) { s.statement = statement }
}

// WithChainID overrides the chain identifier
func WithChainID(chainID string) Option {
	return func(s *AuthService) { s.chainID = chainID }
}

// WithReplayProtection makes Verify reject expired challenges and reused
// nonces. Without it a challenge may be verified any number of times.
func WithReplayProtection(nonces ports.NonceStore) Option {
	return func(s *AuthService) { s.nonces = nonces }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new authentication service
func NewAuthService(
	identities ports.IdentityStore,
	tokenizer ports.Tokenizer,
	recoverer ports.SignatureRecoverer,
	eventPub ports.EventPublisher,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		identities:    identities,
		tokenizer:     tokenizer,
		recoverer:     recoverer,
		eventPub:      eventPub,
		defaultDomain: core.DefaultDomain,
		statement:     core.DefaultStatement,
		chainID:       core.DefaultChainID,
		challengeTTL:  core.ChallengeTTL,
		notBeforeSkew: core.NotBeforeSkew,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueChallenge generates a new sign-in challenge for address.
// The challenge is not stored; the client holds it until verification.
func (s *AuthService) IssueChallenge(address, domain string) (*core.Challenge, error) {
	// Generate a random nonce
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Fall back to the configured domain when the request has no host
	if domain == "" {
		domain = s.defaultDomain
	}

	// invalid_before precedes issued_at by the skew
	now := s.now()
	return &core.Challenge{
		Domain:         domain,
		Address:        address,
		Statement:      s.statement,
		URI:            domain,
		Version:        core.ChallengeVersion,
		ChainID:        s.chainID,
		Nonce:          hex.EncodeToString(nonceBytes),
		IssuedAt:       core.FormatTimestamp(now),
		ExpirationTime: core.FormatTimestamp(now.Add(s.challengeTTL)),
		InvalidBefore:  core.FormatTimestamp(now.Add(-s.notBeforeSkew)),
	}, nil
}

// Verify checks that signature was produced by address over the canonical
// rendering of payload, provisions the identity and mints a session.
func (s *AuthService) Verify(ctx context.Context, payload *core.Challenge, signature, address string) (*core.Session, error) {
	if payload == nil || signature == "" || address == "" {
		return nil, core.ErrValidation
	}

	// Recover the signer from the canonical message
	recovered, err := s.recoverer.RecoverAddress(payload.Message(), signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSignatureRecovery, err)
	}

	// Verify the signer is the claimed wallet
	if !strings.EqualFold(recovered, address) {
		return nil, &core.AddressMismatchError{Expected: address, Received: recovered}
	}

	// Claim the nonce
	if s.nonces != nil {
		if err := s.consumeChallenge(ctx, payload); err != nil {
			return nil, err
		}
	}

	// Provision the identity and mint the session
	session, created, err := s.openSession(ctx, strings.ToLower(address))
	if err != nil {
		if s.nonces != nil {
			s.releaseChallenge(ctx, payload)
		}
		return nil, err
	}

	// Publish login event, best effort
	if err := s.eventPub.PublishLogin(ctx, &session.Identity, created); err != nil {
		slogx.FromContext(ctx).Warn("failed to publish login event", "identity_id", session.Identity.ID, "error", err)
	}

	return session, nil
}

// openSession finds or creates the identity for address and issues its
// access token. created reports whether the identity was inserted.
func (s *AuthService) openSession(ctx context.Context, address string) (*core.Session, bool, error) {
	identity, created, err := s.provisionIdentity(ctx, address)
	if err != nil {
		return nil, false, err
	}

	token, expiresAt, err := s.tokenizer.IdentityToAccessToken(identity)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", core.ErrSessionIssuance, err)
	}

	return &core.Session{
		Identity:    *identity,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, created, nil
}

// consumeChallenge enforces expiration and single use of the challenge nonce
func (s *AuthService) consumeChallenge(ctx context.Context, payload *core.Challenge) error {
	now := s.now()

	// Check expiration
	expiresAt, ok := payload.ExpiresAt()
	if !ok || !now.Before(expiresAt) {
		return core.ErrChallengeExpired
	}

	// Mark the nonce used for the rest of the challenge lifetime
	fresh, err := s.nonces.Consume(ctx, payload.Nonce, expiresAt.Sub(now))
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !fresh {
		return core.ErrNonceReused
	}
	return nil
}

// releaseChallenge hands a claimed nonce back after a server-side failure so
// the client can retry the same signed challenge
func (s *AuthService) releaseChallenge(ctx context.Context, payload *core.Challenge) {
	if err := s.nonces.Release(ctx, payload.Nonce); err != nil {
		slogx.FromContext(ctx).Warn("failed to release nonce", "error", err)
	}
}

// provisionIdentity finds or creates the identity for address. created
// reports whether this call inserted it.
func (s *AuthService) provisionIdentity(ctx context.Context, address string) (*core.Identity, bool, error) {
	log := slogx.FromContext(ctx)
	now := s.now().UTC()

	// Look up the identity
	identity, err := s.identities.FindByAddress(ctx, address)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		// Create it on first sign-in
		identity, err = s.identities.CreateIdentity(ctx, address, now)
		if errors.Is(err, ports.ErrAlreadyExists) {
			// Lost a race with a concurrent verification of the same address
			identity, err = s.identities.FindByAddress(ctx, address)
			if err != nil {
				return nil, false, fmt.Errorf("%w: %w", core.ErrIdentityStore, err)
			}
			return s.touchIdentity(ctx, identity, now), false, nil
		}
		if err != nil {
			log.Error("failed to create identity", "address", address, "error", err)
			return nil, false, fmt.Errorf("%w: %w", core.ErrIdentityStore, err)
		}
		log.Info("created identity", "identity_id", identity.ID, "address", address)
		return identity, true, nil

	case err != nil:
		return nil, false, fmt.Errorf("%w: %w", core.ErrIdentityStore, err)
	}

	return s.touchIdentity(ctx, identity, now), false, nil
}

// touchIdentity bumps last_login. Failure is logged and ignored: the
// identity remains usable with a stale timestamp.
func (s *AuthService) touchIdentity(ctx context.Context, identity *core.Identity, now time.Time) *core.Identity {
	if err := s.identities.UpdateLastLogin(ctx, identity.ID, now); err != nil {
		slogx.FromContext(ctx).Warn("failed to update last login", "identity_id", identity.ID, "error", err)
		return identity
	}
	identity.LastLogin = now
	return identity
}

// ValidateAccessToken returns the identity an access token is bound to
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Identity, error) {
	// Parse and verify the token
	identity, err := s.tokenizer.AccessTokenToIdentity(accessToken)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	// Subjects are store-issued ULIDs
	if _, err := idx.Parse(identity.ID); err != nil {
		return nil, fmt.Errorf("%w: malformed subject: %w", core.ErrInvalidToken, err)
	}
	return identity, nil
}

// CurrentIdentity loads the stored identity for an authenticated wallet
func (s *AuthService) CurrentIdentity(ctx context.Context, address string) (*core.Identity, error) {
	identity, err := s.identities.FindByAddress(ctx, strings.ToLower(address))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIdentityStore, err)
	}
	return identity, nil
}

// Ready reports whether the identity store is reachable
func (s *AuthService) Ready(ctx context.Context) error {
	return s.identities.Ping(ctx)
}
