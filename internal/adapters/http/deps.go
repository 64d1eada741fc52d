package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/nightmap/internal/adapters/postgres"
	"github.com/samirrijal/nightmap/internal/adapters/valkey"
	"github.com/samirrijal/nightmap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Venues *usecases.VenueService
	Map    *usecases.MapService
	// GridSize is the cluster cell size for WebSocket map sessions.
	GridSize int
	// SpecPath overrides DefaultSpecPath for /docs.
	SpecPath string
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}
