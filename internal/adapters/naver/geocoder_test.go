package naver_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/samirrijal/nightmap/internal/adapters/naver"
	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/ports"
)

// startServer serves handler over an in-memory listener and returns a
// geocoder wired to it.
func startServer(t *testing.T, handler fasthttp.RequestHandler) *naver.Geocoder {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	client := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
	return naver.NewGeocoder(naver.Config{
		URL:     "http://naver.test/map-geocode/v2/geocode",
		KeyID:   "id",
		Key:     "secret",
		Timeout: time.Second,
	}, client)
}

func TestGeocode_FirstAddress(t *testing.T) {
	var gotQuery, gotKeyID, gotKey string
	g := startServer(t, func(ctx *fasthttp.RequestCtx) {
		gotQuery = string(ctx.QueryArgs().Peek("query"))
		gotKeyID = string(ctx.Request.Header.Peek("X-NCP-APIGW-API-KEY-ID"))
		gotKey = string(ctx.Request.Header.Peek("X-NCP-APIGW-API-KEY"))
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"status":"OK","addresses":[
			{"roadAddress":"서울 강남구 강남대로 396","x":"127.0276","y":"37.4979"},
			{"roadAddress":"elsewhere","x":"0","y":"0"}]}`)
	})

	p, err := g.Geocode(context.Background(), "서울 강남구 강남대로 396")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != (domain.GeoPoint{Lat: 37.4979, Lng: 127.0276}) {
		t.Errorf("expected first address, got %+v", p)
	}
	if gotQuery != "서울 강남구 강남대로 396" {
		t.Errorf("expected query param to carry the address, got %q", gotQuery)
	}
	if gotKeyID != "id" || gotKey != "secret" {
		t.Errorf("expected api key headers, got %q / %q", gotKeyID, gotKey)
	}
}

func TestGeocode_NoResult(t *testing.T) {
	cases := map[string]string{
		"empty addresses": `{"status":"OK","addresses":[]}`,
		"invalid request": `{"status":"INVALID_REQUEST","errorMessage":"query is invalid"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			g := startServer(t, func(ctx *fasthttp.RequestCtx) {
				ctx.SetBodyString(body)
			})
			_, err := g.Geocode(context.Background(), "nowhere")
			if !errors.Is(err, ports.ErrGeocodeNoResult) {
				t.Errorf("expected ErrGeocodeNoResult, got %v", err)
			}
		})
	}
}

func TestGeocode_HTTPError(t *testing.T) {
	g := startServer(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	})
	_, err := g.Geocode(context.Background(), "x")
	if err == nil || errors.Is(err, ports.ErrGeocodeNoResult) {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestGeocode_CanceledContext(t *testing.T) {
	g := startServer(t, func(ctx *fasthttp.RequestCtx) {
		t.Error("request should not be sent")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Geocode(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGeocode_CancelDuringRequest(t *testing.T) {
	release := make(chan struct{})
	g := startServer(t, func(ctx *fasthttp.RequestCtx) {
		<-release
		ctx.SetBodyString(`{"status":"OK","addresses":[]}`)
	})
	// Registered after startServer so it runs before srv.Shutdown (LIFO).
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := g.Geocode(ctx, "x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected Geocode to return on cancel, took %v", elapsed)
	}
}
