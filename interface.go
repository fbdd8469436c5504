// Package storefront is a Go client for the storefront wallet sign-in API.
//
// A sign-in is three steps: request a challenge for an address, sign the
// challenge's canonical message with the wallet key, then submit payload and
// signature for a session. SignIn does all three with a Signer.
package storefront

import (
	"context"

	"github.com/layer-3/storefront/core"
)

// Client represents the public interface for interacting with the auth service
type Client interface {
	// Challenge requests a fresh sign-in challenge for address
	Challenge(ctx context.Context, address string) (*core.Challenge, error)

	// Login submits a signed challenge and returns a session
	Login(ctx context.Context, challenge *core.Challenge, signature, address string) (*Session, error)

	// SignIn runs the full challenge, sign and login exchange with signer
	SignIn(ctx context.Context, signer Signer) (*Session, error)

	// Me returns the identity behind an access token
	Me(ctx context.Context, accessToken string) (*Profile, error)
}

// Signer signs EIP-191 personal messages on behalf of a wallet
type Signer interface {
	// Address returns the wallet address in hex
	Address() string

	// SignMessage returns the 65 byte signature of message in 0x-prefixed hex
	SignMessage(message string) (string, error)
}
