package usecases_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/goleak"

	"github.com/samirrijal/nightmap/internal/adapters/cluster"
	"github.com/samirrijal/nightmap/internal/adapters/naver"
	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/geocache"
	"github.com/samirrijal/nightmap/internal/core/ports"
	"github.com/samirrijal/nightmap/internal/core/usecases"
)

var (
	gangnam = domain.GeoPoint{Lat: 37.4979, Lng: 127.0276}
	hongdae = domain.GeoPoint{Lat: 37.5563, Lng: 126.9220}
	itaewon = domain.GeoPoint{Lat: 37.5345, Lng: 126.9946}
)

func newGrid() ports.ClusterLayer { return cluster.NewGrid(0) }

func newMapService(repo ports.VenueRepository, geo ports.Geocoder, pub ports.EventPublisher, timeout time.Duration) (*usecases.MapService, *geocache.Cache) {
	cache := geocache.New(context.Background(), geocache.NewMemoryStore(nil), geocache.Options{Normalize: true})
	svc := usecases.NewMapService(repo, cache, geo, pub, newGrid, usecases.MapOptions{
		MaxConcurrent: 4,
		Timeout:       timeout,
	})
	return svc, cache
}

func TestMapService_Markers_SettlesMisses(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	stored := map[string]domain.GeoPoint{}
	repo := &mockVenueRepo{
		listFn: func(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error) {
			return []domain.Venue{
				{ID: "a", Name: "A", Address: "강남", Location: &gangnam},
				{ID: "b", Name: "B", Address: "홍대"},
				{ID: "c", Name: "C", Address: "nowhere"},
				{ID: "d", Name: "D"},
			}, 4, nil
		},
		setLocationFn: func(ctx context.Context, id string, p domain.GeoPoint) error {
			mu.Lock()
			defer mu.Unlock()
			stored[id] = p
			return nil
		},
	}
	geo := &mockGeocoder{points: map[string]domain.GeoPoint{"홍대": hongdae}}
	pub := &mockPublisher{}
	svc, cache := newMapService(repo, geo, pub, time.Second)

	res, err := svc.Markers(context.Background(), usecases.MarkersRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Pending {
		t.Error("expected every geocode to settle before the timeout")
	}
	if len(res.Markers) != 2 || res.Markers[0].VenueID != "a" || res.Markers[1].VenueID != "b" {
		t.Fatalf("expected markers a and b, got %+v", res.Markers)
	}
	if _, ok := cache.Get("홍대"); !ok {
		t.Error("expected resolved address to be cached")
	}
	if stored["b"] != hongdae {
		t.Errorf("expected venue b location stored, got %+v", stored)
	}
	if len(pub.geocoded) != 1 {
		t.Errorf("expected one geocoded event, got %v", pub.geocoded)
	}
	if !res.Viewport.Contains(gangnam) || !res.Viewport.Contains(hongdae) {
		t.Errorf("expected viewport to cover every marker, got %+v", res.Viewport)
	}
	if len(res.Clusters) == 0 {
		t.Error("expected clusters")
	}
}

func TestMapService_Markers_TimeoutReportsPending(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := &mockVenueRepo{
		getByIDsFn: func(ctx context.Context, ids []string) ([]domain.Venue, error) {
			return []domain.Venue{
				{ID: "a", Address: "강남", Location: &gangnam},
				{ID: "slow", Address: "somewhere slow"},
			}, nil
		},
	}
	geo := &mockGeocoder{block: true}
	svc, _ := newMapService(repo, geo, nil, 20*time.Millisecond)

	res, err := svc.Markers(context.Background(), usecases.MarkersRequest{VenueIDs: []string{"a", "slow"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Pending {
		t.Error("expected pending when the geocoder outlives the timeout")
	}
	if len(res.Markers) != 1 {
		t.Errorf("expected only the cached marker, got %+v", res.Markers)
	}
}

func TestMapService_Markers_VisibleNearestFirst(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := &mockVenueRepo{
		listFn: func(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error) {
			return []domain.Venue{
				{ID: "gangnam", Address: "a", Location: &gangnam},
				{ID: "hongdae", Address: "b", Location: &hongdae},
				{ID: "itaewon", Address: "c", Location: &itaewon},
			}, 3, nil
		},
	}
	svc, _ := newMapService(repo, &mockGeocoder{}, nil, time.Second)

	// A box around Itaewon and Gangnam, centered nearer Itaewon.
	bounds := domain.Bounds{MinLat: 37.49, MinLng: 126.98, MaxLat: 37.56, MaxLng: 127.03}
	res, err := svc.Markers(context.Background(), usecases.MarkersRequest{Bounds: &bounds, Zoom: 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Visible) != 2 {
		t.Fatalf("expected 2 visible markers, got %+v", res.Visible)
	}
	if res.Visible[0].VenueID != "itaewon" {
		t.Errorf("expected itaewon first, got %s", res.Visible[0].VenueID)
	}
	if res.Zoom != 12 {
		t.Errorf("expected requested zoom kept, got %d", res.Zoom)
	}
}

func TestMapService_Markers_RadiusSearch(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := &mockVenueRepo{
		listFn: func(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error) {
			return []domain.Venue{
				{ID: "gangnam", Address: "a", Location: &gangnam},
				{ID: "hongdae", Address: "b", Location: &hongdae},
			}, 2, nil
		},
	}
	svc, _ := newMapService(repo, &mockGeocoder{}, nil, time.Second)

	res, err := svc.Markers(context.Background(), usecases.MarkersRequest{Center: &gangnam, RadiusM: 2000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Visible) != 1 || res.Visible[0].VenueID != "gangnam" {
		t.Errorf("expected only gangnam within 2km, got %+v", res.Visible)
	}
}

func TestMarkersRequest_Area(t *testing.T) {
	if (usecases.MarkersRequest{}).Area() != nil {
		t.Error("expected no area for an empty request")
	}
	b := domain.Bounds{MinLat: 1, MinLng: 2, MaxLat: 3, MaxLng: 4}
	if got := (usecases.MarkersRequest{Bounds: &b, Center: &gangnam, RadiusM: 10}).Area(); got == nil || *got != b {
		t.Errorf("expected bounds to win over center, got %+v", got)
	}
	area := (usecases.MarkersRequest{Center: &gangnam, RadiusM: 500}).Area()
	if area == nil || !area.Contains(gangnam) {
		t.Errorf("expected area around center, got %+v", area)
	}
}

func TestMapService_Markers_TooManyIDs(t *testing.T) {
	cache := geocache.New(context.Background(), nil, geocache.Options{})
	svc := usecases.NewMapService(&mockVenueRepo{}, cache, &mockGeocoder{}, nil, newGrid, usecases.MapOptions{MaxVenues: 1})
	_, err := svc.Markers(context.Background(), usecases.MarkersRequest{VenueIDs: []string{"a", "b"}})
	if !errors.Is(err, usecases.ErrTooManyVenues) {
		t.Errorf("expected ErrTooManyVenues, got %v", err)
	}
}

func TestMapService_Geocode_CacheFirst(t *testing.T) {
	geo := &mockGeocoder{points: map[string]domain.GeoPoint{"서울 강남구 강남대로 396": gangnam}}
	pub := &mockPublisher{}
	svc, _ := newMapService(&mockVenueRepo{}, geo, pub, time.Second)

	p, cached, err := svc.Geocode(context.Background(), "서울 강남구 강남대로 396")
	if err != nil || cached || p != gangnam {
		t.Fatalf("first lookup: got %+v cached=%v err=%v", p, cached, err)
	}
	p, cached, err = svc.Geocode(context.Background(), "  서울  강남구 강남대로 396 ")
	if err != nil || !cached || p != gangnam {
		t.Fatalf("second lookup: got %+v cached=%v err=%v", p, cached, err)
	}
	if geo.callCount() != 1 {
		t.Errorf("expected 1 provider call, got %d", geo.callCount())
	}
	if len(pub.geocoded) != 1 {
		t.Errorf("expected one geocoded event, got %d", len(pub.geocoded))
	}
}

func TestMapService_Geocode_Empty(t *testing.T) {
	svc, _ := newMapService(&mockVenueRepo{}, &mockGeocoder{}, nil, time.Second)
	if _, _, err := svc.Geocode(context.Background(), " "); err == nil {
		t.Error("expected error for empty address")
	}
}

// A slow geocode server cannot hold the response past the wait timeout.
// Kept last: the abandoned round trip outlives the test.
func TestMapService_Markers_TimeoutBoundsSlowGeocoder(t *testing.T) {
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		time.Sleep(1500 * time.Millisecond)
		ctx.SetBodyString(`{"status":"OK","addresses":[{"x":"126.9220","y":"37.5563"}]}`)
	}}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	geo := naver.NewGeocoder(naver.Config{URL: "http://naver.test/geocode", Timeout: 5 * time.Second}, &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	})
	repo := &mockVenueRepo{
		getByIDsFn: func(ctx context.Context, ids []string) ([]domain.Venue, error) {
			return []domain.Venue{
				{ID: "a", Address: "강남", Location: &gangnam},
				{ID: "slow", Address: "홍대"},
			}, nil
		},
	}
	svc, cache := newMapService(repo, geo, nil, 50*time.Millisecond)

	start := time.Now()
	res, err := svc.Markers(context.Background(), usecases.MarkersRequest{VenueIDs: []string{"a", "slow"}})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("expected Markers to return near the 50ms timeout, took %v", elapsed)
	}
	if !res.Pending {
		t.Error("expected pending while the geocoder is still answering")
	}
	if len(res.Markers) != 1 || res.Markers[0].VenueID != "a" {
		t.Errorf("expected only the stored marker, got %+v", res.Markers)
	}
	if _, ok := cache.Get("홍대"); ok {
		t.Error("expected the abandoned address to stay uncached")
	}
}
