package ports

import (
	"time"

	"github.com/layer-3/storefront/core"
)

// Tokenizer mints and parses session credentials
type Tokenizer interface {
	IdentityToAccessToken(identity *core.Identity) (token string, expiresAt time.Time, err error)
	AccessTokenToIdentity(token string) (*core.Identity, error)
}
