package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/samirrijal/nightmap/internal/adapters/cluster"
	natsadapter "github.com/samirrijal/nightmap/internal/adapters/nats"
	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/usecases"
	"github.com/samirrijal/nightmap/internal/pkg/metrics"
)

// wsRequest is a client command on a map session.
//
//	{"action":"refresh","category":"club"}
//	{"action":"viewport","bounds":{"min_lat":37.4,"min_lng":126.8,"max_lat":37.7,"max_lng":127.2}}
//	{"action":"clusters","zoom":13}
//	{"action":"select","venue_id":"..."}
//	{"action":"subscribe_status"}
type wsRequest struct {
	Action string `json:"action"`
	usecases.MarkersRequest
	VenueID string `json:"venue_id,omitempty"`
}

// wsEvent is pushed to the client. Type names the payload carried.
type wsEvent struct {
	Type       string             `json:"type"`
	Session    string             `json:"session,omitempty"`
	Generation uint64             `json:"generation,omitempty"`
	Layer      *cluster.Event     `json:"layer,omitempty"`
	Markers    []domain.Marker    `json:"markers,omitempty"`
	Clusters   []domain.Cluster   `json:"clusters,omitempty"`
	Marker     *domain.Marker     `json:"marker,omitempty"`
	Hours      *domain.HoursLabel `json:"hours,omitempty"`
	Change     json.RawMessage    `json:"change,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// MapSessionHandler returns a handler that upgrades to WebSocket and
// runs one live map per connection: the client asks for venue lists,
// the server streams marker layer changes as geocodes settle.
func MapSessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		sessionID := uuid.NewString()
		logger := slog.Default().With("session", sessionID, "remote", c.RemoteAddr().String())
		logger.Info("map session opened")

		// Frames go through the outbox so layer hooks, which run under
		// the refresher's lock, never wait on the network.
		var mu sync.Mutex
		box := newOutbox(outboxSize)
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			box.run(func(data []byte) error {
				mu.Lock()
				defer mu.Unlock()
				return c.WriteMessage(websocket.TextMessage, data)
			})
			// Unblocks ReadMessage when the client fell behind.
			_ = c.Close()
		}()
		defer func() {
			box.shut()
			<-writerDone
		}()

		send := func(ev wsEvent) {
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Error("encode ws event", "error", err)
				return
			}
			if !box.push(data) {
				logger.Debug("ws event dropped", "type", ev.Type)
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		layer := cluster.NewGrid(deps.GridSize)
		layer.OnChange(func(e cluster.Event) {
			send(wsEvent{Type: "layer", Layer: &e})
		})

		var selectedVenue string
		refresher := deps.Map.NewRefresher(layer, func(m domain.Marker) {
			selectedVenue = m.VenueID
		})
		defer refresher.Close()

		var statusSub *nats.Subscription
		defer func() {
			if statusSub != nil {
				_ = statusSub.Unsubscribe()
			}
		}()

		send(wsEvent{Type: "hello", Session: sessionID})

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				send(wsEvent{Type: "error", Error: "invalid JSON"})
				continue
			}

			switch req.Action {
			case "refresh":
				loadCtx, loadCancel := context.WithTimeout(ctx, 10*time.Second)
				venues, err := deps.Map.LoadVenues(loadCtx, req.MarkersRequest)
				loadCancel()
				if err != nil {
					logger.Warn("load venues", "error", err)
					send(wsEvent{Type: "error", Error: "could not load venues"})
					continue
				}
				gen := refresher.Refresh(ctx, venues)
				send(wsEvent{Type: "refreshed", Generation: gen})

			case "viewport":
				area := req.Area()
				if area == nil {
					send(wsEvent{Type: "error", Error: "bounds or center and radius_m required"})
					continue
				}
				visible := usecases.NearestFirst(refresher.Visible(*area), area.Center())
				send(wsEvent{Type: "visible", Markers: visible})

			case "clusters":
				send(wsEvent{Type: "clusters", Clusters: layer.Clusters(req.Zoom)})

			case "select":
				m, ok := refresher.Select(req.VenueID)
				if !ok {
					send(wsEvent{Type: "error", Error: "venue not on map"})
					continue
				}
				ev := wsEvent{Type: "selected", Marker: &m}
				if label, _, err := deps.Venues.Hours(ctx, m.VenueID); err == nil {
					ev.Hours = &label
				}
				send(ev)

			case "subscribe_status":
				if statusSub != nil {
					send(wsEvent{Type: "error", Error: "already subscribed"})
					continue
				}
				if deps.NATS == nil {
					send(wsEvent{Type: "error", Error: "status feed unavailable"})
					continue
				}
				statusSub, err = deps.NATS.Subscribe(natsadapter.SubjectStatusAll, func(msg *nats.Msg) {
					relayStatus(msg.Data, refresher.Has, send, logger)
				})
				if err != nil {
					statusSub = nil
					send(wsEvent{Type: "error", Error: "subscribe failed"})
					continue
				}
				send(wsEvent{Type: "subscribed"})

			default:
				send(wsEvent{Type: "error", Error: "unknown action: " + req.Action})
			}
		}

		logger.Info("map session closed", "selected", selectedVenue, "overflowed", box.overflowed())
	}
}

const outboxSize = 256

// outbox queues encoded frames for one connection. A single writer
// drains it.
type outbox struct {
	frames   chan []byte
	closed   chan struct{}
	once     sync.Once
	overflow atomic.Bool
}

func newOutbox(size int) *outbox {
	return &outbox{frames: make(chan []byte, size), closed: make(chan struct{})}
}

// push queues data without blocking. A full queue means the client has
// fallen behind; the outbox shuts and push reports false.
func (o *outbox) push(data []byte) bool {
	select {
	case <-o.closed:
		return false
	default:
	}
	select {
	case o.frames <- data:
		return true
	default:
		o.overflow.Store(true)
		o.shut()
		return false
	}
}

func (o *outbox) shut() {
	o.once.Do(func() { close(o.closed) })
}

func (o *outbox) overflowed() bool { return o.overflow.Load() }

// run writes queued frames in order until the outbox shuts or a write
// fails.
func (o *outbox) run(write func([]byte) error) {
	for {
		select {
		case data := <-o.frames:
			if err := write(data); err != nil {
				o.shut()
				return
			}
		case <-o.closed:
			return
		}
	}
}

// relayStatus forwards a status change for a venue on this session's map,
// re-encoded from protobuf to JSON.
func relayStatus(data []byte, onMap func(string) bool, send func(wsEvent), logger *slog.Logger) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		logger.Warn("drop malformed status change", "error", err)
		return
	}
	if !onMap(s.GetFields()["venue_id"].GetStringValue()) {
		return
	}
	raw, err := protojson.Marshal(&s)
	if err != nil {
		logger.Warn("encode status change", "error", err)
		return
	}
	send(wsEvent{Type: "status", Change: raw})
}
