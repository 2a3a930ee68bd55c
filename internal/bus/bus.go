package bus

import (
	"fmt"

	"github.com/opengov-labs/kestrel/internal/domain"
)

// New selects the event bus carrying the kestrel.* topics for the deployment
// tier: an in-process channel bus for Community, NATS for Pro.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
