package storefront

import (
	"time"

	"github.com/layer-3/storefront/core"
)

// User is the identity part of a session
type User struct {
	ID            string `json:"id"`
	WalletAddress string `json:"wallet_address"`
}

// Session is returned by a successful login
type Session struct {
	User        User      `json:"user"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Profile is the stored identity of the authenticated wallet
type Profile struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	LastLogin     time.Time `json:"last_login"`
}

type authRequest struct {
	Action    string          `json:"action"`
	Address   string          `json:"address,omitempty"`
	Payload   *core.Challenge `json:"payload,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

type challengeResponse struct {
	Payload *core.Challenge `json:"payload"`
}

type loginResponse struct {
	Success bool     `json:"success"`
	Session *Session `json:"session"`
}
