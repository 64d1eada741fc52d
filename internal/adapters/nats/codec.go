package natsadapter

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/samirrijal/nightmap/internal/core/domain"
)

// Payloads travel as protobuf-encoded google.protobuf.Struct so consumers
// in any language can decode them without a shared schema.

func statusChangeStruct(c *domain.StatusChange) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"venue_id": c.VenueID,
		"previous": string(c.Previous),
		"current":  string(c.Current),
		"label": map[string]any{
			"status": string(c.Label.Status),
			"label":  c.Label.Label,
			"detail": c.Label.Detail,
			"color":  c.Label.Color,
		},
		"time": c.Time.UTC().Format(time.RFC3339),
	})
}

// EncodeStatusChange marshals a status change for the wire.
func EncodeStatusChange(c *domain.StatusChange) ([]byte, error) {
	s, err := statusChangeStruct(c)
	if err != nil {
		return nil, fmt.Errorf("encode status change: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeStatusChange is the inverse of EncodeStatusChange.
func DecodeStatusChange(data []byte) (*domain.StatusChange, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode status change: %w", err)
	}
	f := s.GetFields()
	c := &domain.StatusChange{
		VenueID:  f["venue_id"].GetStringValue(),
		Previous: domain.HoursStatus(f["previous"].GetStringValue()),
		Current:  domain.HoursStatus(f["current"].GetStringValue()),
	}
	if label := f["label"].GetStructValue().GetFields(); label != nil {
		c.Label = domain.HoursLabel{
			Status: domain.HoursStatus(label["status"].GetStringValue()),
			Label:  label["label"].GetStringValue(),
			Detail: label["detail"].GetStringValue(),
			Color:  label["color"].GetStringValue(),
		}
	}
	if ts := f["time"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("decode status change time: %w", err)
		}
		c.Time = t
	}
	if c.VenueID == "" {
		return nil, fmt.Errorf("decode status change: missing venue_id")
	}
	return c, nil
}

// EncodeGeocoded marshals a resolved address.
func EncodeGeocoded(address string, p domain.GeoPoint) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"address": address,
		"lat":     p.Lat,
		"lng":     p.Lng,
	})
	if err != nil {
		return nil, fmt.Errorf("encode geocoded: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeGeocoded is the inverse of EncodeGeocoded.
func DecodeGeocoded(data []byte) (string, domain.GeoPoint, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return "", domain.GeoPoint{}, fmt.Errorf("decode geocoded: %w", err)
	}
	f := s.GetFields()
	return f["address"].GetStringValue(), domain.GeoPoint{
		Lat: f["lat"].GetNumberValue(),
		Lng: f["lng"].GetNumberValue(),
	}, nil
}
