package http

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	natsadapter "github.com/samirrijal/nightmap/internal/adapters/nats"
	"github.com/samirrijal/nightmap/internal/core/domain"
)

func TestRelayStatus_OnlyVenuesOnMap(t *testing.T) {
	data, err := natsadapter.EncodeStatusChange(&domain.StatusChange{
		VenueID: "oct",
		Current: domain.StatusAlmostClose,
		Label:   domain.HoursLabel{Status: domain.StatusAlmostClose, Label: "곧 영업종료"},
		Time:    time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	var got []wsEvent
	send := func(ev wsEvent) { got = append(got, ev) }

	relayStatus(data, func(id string) bool { return false }, send, slog.Default())
	if len(got) != 0 {
		t.Fatalf("expected nothing relayed for venue off the map, got %d", len(got))
	}

	relayStatus(data, func(id string) bool { return id == "oct" }, send, slog.Default())
	if len(got) != 1 || got[0].Type != "status" {
		t.Fatalf("expected one status event, got %+v", got)
	}
	var change map[string]any
	if err := json.Unmarshal(got[0].Change, &change); err != nil {
		t.Fatalf("relayed change is not JSON: %v", err)
	}
	if change["venue_id"] != "oct" {
		t.Errorf("expected venue_id oct, got %v", change["venue_id"])
	}
}

func TestRelayStatus_DropsGarbage(t *testing.T) {
	called := false
	relayStatus([]byte{0xff, 0x01}, func(string) bool { return true }, func(wsEvent) { called = true }, slog.Default())
	if called {
		t.Error("expected malformed payload to be dropped")
	}
}
