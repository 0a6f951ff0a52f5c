package events

import (
	platformevents "dizimo_backend/platform/events"
	"dizimo_backend/platform/logger"
)

// InMemoryBus is re-exported from the platform layer.
type InMemoryBus = platformevents.InMemoryBus

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
