package naver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/ports"
	"github.com/samirrijal/nightmap/internal/pkg/metrics"
)

const DefaultURL = "https://naveropenapi.apigw.ntruss.com/map-geocode/v2/geocode"

var tracer = otel.Tracer("nightmap/naver")

// Config holds the Naver Cloud Platform credentials.
type Config struct {
	URL     string
	KeyID   string
	Key     string
	Timeout time.Duration
}

// Geocoder implements ports.Geocoder against the Naver geocode API.
type Geocoder struct {
	cfg    Config
	client *fasthttp.Client
}

// NewGeocoder creates a geocoder. A nil client gets a default one.
func NewGeocoder(cfg Config, client *fasthttp.Client) *Geocoder {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if client == nil {
		client = &fasthttp.Client{
			Name:                "nightmap",
			MaxConnsPerHost:     64,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 30 * time.Second,
		}
	}
	return &Geocoder{cfg: cfg, client: client}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	Addresses    []struct {
		RoadAddress string `json:"roadAddress"`
		X           string `json:"x"`
		Y           string `json:"y"`
	} `json:"addresses"`
}

// Geocode resolves address to its first match. The request is bounded by
// the configured timeout or the context deadline, whichever is earlier.
func (g *Geocoder) Geocode(ctx context.Context, address string) (domain.GeoPoint, error) {
	ctx, span := tracer.Start(ctx, "naver.Geocode", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("geocode.address", address))

	p, err := g.geocode(ctx, address)
	switch {
	case err == nil:
		metrics.GeocodeRequests.WithLabelValues("ok").Inc()
	case errors.Is(err, ports.ErrGeocodeNoResult):
		metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	default:
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return p, err
}

func (g *Geocoder) geocode(ctx context.Context, address string) (domain.GeoPoint, error) {
	if err := ctx.Err(); err != nil {
		return domain.GeoPoint{}, err
	}

	timeout := g.cfg.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	// fasthttp has no context support; the round trip runs on its own
	// goroutine so cancellation returns at once.
	done := make(chan roundTrip, 1)
	go func() {
		done <- g.roundTrip(address, timeout)
	}()

	var rt roundTrip
	select {
	case rt = <-done:
	case <-ctx.Done():
		return domain.GeoPoint{}, ctx.Err()
	}
	if rt.err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.GeoPoint{}, ctxErr
		}
		return domain.GeoPoint{}, fmt.Errorf("geocode request: %w", rt.err)
	}
	if rt.status != fasthttp.StatusOK {
		return domain.GeoPoint{}, fmt.Errorf("geocode request: unexpected status %d", rt.status)
	}

	return decode(rt.body)
}

type roundTrip struct {
	status int
	body   []byte
	err    error
}

func (g *Geocoder) roundTrip(address string, timeout time.Duration) roundTrip {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(g.cfg.URL)
	req.URI().QueryArgs().Set("query", address)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-NCP-APIGW-API-KEY-ID", g.cfg.KeyID)
	req.Header.Set("X-NCP-APIGW-API-KEY", g.cfg.Key)

	start := time.Now()
	err := g.client.DoTimeout(req, resp, timeout)
	metrics.GeocodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return roundTrip{err: err}
	}
	// resp is released on return.
	return roundTrip{status: resp.StatusCode(), body: append([]byte(nil), resp.Body()...)}
}

func decode(data []byte) (domain.GeoPoint, error) {
	var body geocodeResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return domain.GeoPoint{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if body.Status != "OK" {
		if body.ErrorMessage != "" {
			return domain.GeoPoint{}, fmt.Errorf("%w: %s", ports.ErrGeocodeNoResult, body.ErrorMessage)
		}
		return domain.GeoPoint{}, ports.ErrGeocodeNoResult
	}
	if len(body.Addresses) == 0 {
		return domain.GeoPoint{}, ports.ErrGeocodeNoResult
	}

	first := body.Addresses[0]
	lng, err := strconv.ParseFloat(first.X, 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("parse longitude %q: %w", first.X, err)
	}
	lat, err := strconv.ParseFloat(first.Y, 64)
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("parse latitude %q: %w", first.Y, err)
	}
	return domain.GeoPoint{Lat: lat, Lng: lng}, nil
}
