package core

import "time"

const (
	// ChallengeVersion is the fixed message version
	ChallengeVersion = "1"

	// DefaultChainID is Ethereum mainnet
	DefaultChainID = "1"

	// DefaultDomain is used when the request carries no Host header
	DefaultDomain = "localhost:3000"

	// DefaultStatement is the disclosure shown to the wallet owner
	DefaultStatement = "Please ensure that the domain above matches the URL of the current website."

	// ChallengeTTL is how long after issuance a challenge expires
	ChallengeTTL = 10 * time.Minute

	// NotBeforeSkew backdates invalid_before relative to issued_at
	NotBeforeSkew = 10 * time.Minute

	// TimestampLayout renders ISO 8601 UTC timestamps with millisecond precision
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Challenge represents the sign-in payload handed to the wallet.
// It is never stored server-side; the client echoes it back on verify.
type Challenge struct {
	Domain         string `json:"domain"`
	Address        string `json:"address"`
	Statement      string `json:"statement"`
	URI            string `json:"uri"`
	Version        string `json:"version"`
	ChainID        string `json:"chain_id"`
	Nonce          string `json:"nonce"`
	IssuedAt       string `json:"issued_at"`
	ExpirationTime string `json:"expiration_time,omitempty"`
	InvalidBefore  string `json:"invalid_before,omitempty"`
}

// ExpiresAt parses the expiration time. ok is false when the field is absent or malformed.
func (c *Challenge) ExpiresAt() (t time.Time, ok bool) {
	if c.ExpirationTime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, c.ExpirationTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp renders t the way challenge timestamps are rendered
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Identity represents an application user keyed by wallet address
type Identity struct {
	ID        string    // Store-assigned identifier
	Address   string    // Lower-cased wallet address
	LastLogin time.Time // Time of the most recent successful verification
	CreatedAt time.Time // When the identity was first provisioned
}

// Session represents the result of a successful verification
type Session struct {
	Identity    Identity
	AccessToken string    // Opaque bearer credential bound to Identity.ID
	ExpiresAt   time.Time // When the credential stops being accepted
}
