package ports

import (
	"context"

	"github.com/layer-3/storefront/core"
)

// EventPublisher publishes events to notify other services
type EventPublisher interface {
	PublishLogin(ctx context.Context, identity *core.Identity, created bool) error
}
