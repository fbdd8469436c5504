package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/storefront/core"
	"github.com/layer-3/storefront/ports"
)

// LoginTopic carries one message per successful wallet verification
const LoginTopic = "storefront.auth.login"

// LoginEvent represents a login event
type LoginEvent struct {
	IdentityID    string    `json:"identity_id"`
	WalletAddress string    `json:"wallet_address"`
	NewIdentity   bool      `json:"new_identity"`
	LoggedInAt    time.Time `json:"logged_in_at"`
}

// WatermillPublisher implements ports.EventPublisher using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     LoginTopic,
	}
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, identity *core.Identity, created bool) error {
	event := LoginEvent{
		IdentityID:    identity.ID,
		WalletAddress: identity.Address,
		NewIdentity:   created,
		LoggedInAt:    identity.LastLogin,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishLogin(context.Context, *core.Identity, bool) error { return nil }
