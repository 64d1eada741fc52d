package natsadapter_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	natsadapter "github.com/samirrijal/nightmap/internal/adapters/nats"
	"github.com/samirrijal/nightmap/internal/core/domain"
)

func TestStatusChangeCodec(t *testing.T) {
	in := &domain.StatusChange{
		VenueID:  "v1",
		Previous: domain.StatusOpen,
		Current:  domain.StatusAlmostClose,
		Label: domain.HoursLabel{
			Status: domain.StatusAlmostClose,
			Label:  "곧 영업종료",
			Detail: "05:00에 영업 종료",
			Color:  "orange",
		},
		Time: time.Date(2024, 1, 1, 4, 0, 0, 0, time.UTC),
	}

	data, err := natsadapter.EncodeStatusChange(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := natsadapter.DecodeStatusChange(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("status change mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeStatusChange_RejectsGarbage(t *testing.T) {
	if _, err := natsadapter.DecodeStatusChange([]byte{0xff, 0x01}); err == nil {
		t.Error("expected error for garbage payload")
	}
}

func TestGeocodedCodec(t *testing.T) {
	data, err := natsadapter.EncodeGeocoded("서울 강남구 강남대로 396", domain.GeoPoint{Lat: 37.4979, Lng: 127.0276})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	addr, p, err := natsadapter.DecodeGeocoded(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if addr != "서울 강남구 강남대로 396" || p.Lat != 37.4979 || p.Lng != 127.0276 {
		t.Errorf("unexpected decode: %q %+v", addr, p)
	}
}
