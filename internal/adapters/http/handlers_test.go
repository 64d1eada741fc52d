package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/nightmap/internal/adapters/cluster"
	handler "github.com/samirrijal/nightmap/internal/adapters/http"
	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/geocache"
	"github.com/samirrijal/nightmap/internal/core/ports"
	"github.com/samirrijal/nightmap/internal/core/usecases"
)

// ---- Mocks ----

type mockVenueRepo struct {
	getByIDFn  func(ctx context.Context, id string) (*domain.Venue, error)
	getByIDsFn func(ctx context.Context, ids []string) ([]domain.Venue, error)
	listFn     func(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error)
}

func (m *mockVenueRepo) Upsert(ctx context.Context, v *domain.Venue) error        { return nil }
func (m *mockVenueRepo) UpsertBatch(ctx context.Context, vs []domain.Venue) error { return nil }
func (m *mockVenueRepo) ListAll(ctx context.Context) ([]domain.Venue, error)      { return nil, nil }
func (m *mockVenueRepo) SetLocation(ctx context.Context, id string, p domain.GeoPoint) error {
	return nil
}
func (m *mockVenueRepo) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ports.ErrNotFound
}
func (m *mockVenueRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Venue, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return nil, nil
}
func (m *mockVenueRepo) List(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, 0, nil
}

type mockGeocoder struct {
	points map[string]domain.GeoPoint
	err    error
}

func (g *mockGeocoder) Geocode(ctx context.Context, address string) (domain.GeoPoint, error) {
	if g.err != nil {
		return domain.GeoPoint{}, g.err
	}
	if p, ok := g.points[address]; ok {
		return p, nil
	}
	return domain.GeoPoint{}, ports.ErrGeocodeNoResult
}

// ---- Test helpers ----

var (
	kst     = time.FixedZone("KST", 9*60*60)
	gangnam = domain.GeoPoint{Lat: 37.4979, Lng: 127.0276}
	hongdae = domain.GeoPoint{Lat: 37.5563, Lng: 126.9220}
)

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

type depsConfig struct {
	repo  *mockVenueRepo
	geo   *mockGeocoder
	clock func() time.Time
}

func makeDeps(opts ...func(*depsConfig)) *handler.Dependencies {
	cfg := &depsConfig{repo: &mockVenueRepo{}, geo: &mockGeocoder{}}
	for _, o := range opts {
		o(cfg)
	}
	venues := usecases.NewVenueService(cfg.repo, nil, kst)
	if cfg.clock != nil {
		venues.WithClock(cfg.clock)
	}
	cache := geocache.New(context.Background(), geocache.NewMemoryStore(nil), geocache.Options{Normalize: true})
	newLayer := func() ports.ClusterLayer { return cluster.NewGrid(0) }
	return &handler.Dependencies{
		Venues: venues,
		Map:    usecases.NewMapService(cfg.repo, cache, cfg.geo, nil, newLayer, usecases.MapOptions{Timeout: time.Second}),
	}
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

// ---- Venue handler tests ----

func TestListVenues_Success(t *testing.T) {
	deps := makeDeps(func(c *depsConfig) {
		c.repo.listFn = func(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error) {
			if f.Category != "club" {
				t.Errorf("expected category club, got %q", f.Category)
			}
			return []domain.Venue{
				{ID: "v1", Name: "Octagon", Category: "club"},
				{ID: "v2", Name: "Face Off", Category: "club"},
			}, 7, nil
		}
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/venues?category=club&limit=2", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data       []domain.Venue `json:"data"`
		Pagination struct {
			Total int `json:"total"`
			Limit int `json:"limit"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 7 || result.Pagination.Limit != 2 {
		t.Errorf("unexpected pagination %+v", result.Pagination)
	}
	if len(result.Data) != 2 {
		t.Errorf("expected 2 venues, got %d", len(result.Data))
	}
	link := resp.Header.Get("Link")
	if !strings.Contains(link, `offset=2&limit=2>; rel="next"`) {
		t.Errorf("expected next link at offset 2, got %q", link)
	}
	if !strings.Contains(link, "category=club") {
		t.Errorf("expected filters carried into links, got %q", link)
	}
}

func TestListVenues_EmptyIsArray(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/venues", nil), -1)
	body := string(readBody(t, resp.Body))
	if !strings.Contains(body, `"data":[]`) {
		t.Errorf("expected empty data array, got %s", body)
	}
}

func TestSearchVenues_Deprecated(t *testing.T) {
	deps := makeDeps(func(c *depsConfig) {
		c.repo.listFn = func(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error) {
			return []domain.Venue{{ID: "v1", Name: "Club Mansion"}}, 1, nil
		}
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/venues/search?q=mansion", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	if !strings.Contains(resp.Header.Get("Link"), "successor-version") {
		t.Errorf("expected successor link, got %q", resp.Header.Get("Link"))
	}
}

func TestSearchVenues_MissingQuery(t *testing.T) {
	app := setupApp(makeDeps())
	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/venues/search", nil), -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestBatchVenues(t *testing.T) {
	deps := makeDeps(func(c *depsConfig) {
		c.repo.getByIDsFn = func(ctx context.Context, ids []string) ([]domain.Venue, error) {
			if len(ids) != 2 {
				t.Errorf("expected 2 ids, got %v", ids)
			}
			return []domain.Venue{{ID: "a"}, {ID: "b"}}, nil
		}
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/venues/batch?ids=a,b", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/venues/batch", nil), -1)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 without ids, got %d", resp.StatusCode)
	}
}

func TestGetVenue_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/venues/missing", nil), -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var apiErr handler.APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		t.Fatal(err)
	}
	if apiErr.Code != "not_found" || apiErr.RequestID == "" {
		t.Errorf("unexpected error envelope %+v", apiErr)
	}
}

func TestGetVenue_InternalErrorHidesCause(t *testing.T) {
	deps := makeDeps(func(c *depsConfig) {
		c.repo.getByIDFn = func(ctx context.Context, id string) (*domain.Venue, error) {
			return nil, fmt.Errorf("dial tcp 10.0.0.5:5432: connection refused")
		}
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/venues/v1", nil), -1)
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if body := string(readBody(t, resp.Body)); strings.Contains(body, "10.0.0.5") {
		t.Errorf("expected internal details hidden, got %s", body)
	}
}

func TestVenueHours(t *testing.T) {
	deps := makeDeps(func(c *depsConfig) {
		c.repo.getByIDFn = func(ctx context.Context, id string) (*domain.Venue, error) {
			return &domain.Venue{ID: id, OperationHours: domain.WeeklyHours{"월요일": "20:00~late"}}, nil
		}
		// Monday 2024-01-01 04:30 in Seoul.
		c.clock = func() time.Time { return time.Date(2024, 1, 1, 4, 30, 0, 0, kst) }
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/venues/v1/hours", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result handler.HoursResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Status != domain.StatusAlmostClose || result.Color != "orange" {
		t.Errorf("expected ALMOST_CLOSE/orange, got %s/%s", result.Status, result.Color)
	}
	if !result.Report.LateClose || result.Report.TodayClose != "05:00" {
		t.Errorf("expected late close at 05:00, got %+v", result.Report)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=30" {
		t.Errorf("expected short cache for hours, got %q", cc)
	}
}

// ---- Map handler tests ----

func TestGeocode(t *testing.T) {
	deps := makeDeps(func(c *depsConfig) {
		c.geo.points = map[string]domain.GeoPoint{"서울 강남구 강남대로 396": gangnam}
	})
	app := setupApp(deps)

	q := "/v1/geocode?address=" + url.QueryEscape("서울 강남구 강남대로 396")
	for i, wantCached := range []bool{false, true} {
		resp, _ := app.Test(httptest.NewRequest("GET", q, nil), -1)
		if resp.StatusCode != 200 {
			t.Fatalf("call %d: expected 200, got %d", i, resp.StatusCode)
		}
		var result handler.GeocodeResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatal(err)
		}
		if result.Location != gangnam || result.Cached != wantCached {
			t.Errorf("call %d: unexpected result %+v", i, result)
		}
	}
}

func TestGeocode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		geoErr error
		want   int
	}{
		{"missing address", "/v1/geocode", nil, 400},
		{"no result", "/v1/geocode?address=nowhere", nil, 404},
		{"provider down", "/v1/geocode?address=x", fmt.Errorf("timeout"), 502},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupApp(makeDeps(func(c *depsConfig) { c.geo.err = tt.geoErr }))
			resp, _ := app.Test(httptest.NewRequest("GET", tt.url, nil), -1)
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestMarkers(t *testing.T) {
	deps := makeDeps(func(c *depsConfig) {
		c.repo.listFn = func(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error) {
			return []domain.Venue{
				{ID: "a", Name: "A", Address: "강남", Location: &gangnam},
				{ID: "b", Name: "B", Address: "홍대"},
			}, 2, nil
		}
		c.geo.points = map[string]domain.GeoPoint{"홍대": hongdae}
	})
	app := setupApp(deps)

	req := httptest.NewRequest("POST", "/v1/map/markers", strings.NewReader(`{"category":"club","zoom":8}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result usecases.MarkersResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Markers) != 2 || result.Pending {
		t.Errorf("expected 2 settled markers, got %+v", result)
	}
	if len(result.Clusters) != 1 || result.Clusters[0].Count != 2 {
		t.Errorf("expected one cluster of 2 at zoom 8, got %+v", result.Clusters)
	}
}

func TestMarkers_BadRequest(t *testing.T) {
	app := setupApp(makeDeps())
	for _, body := range []string{
		`{"zoom":40}`,
		`{"bounds":{"min_lat":38,"min_lng":127,"max_lat":37,"max_lng":128}}`,
		`not json`,
	} {
		req := httptest.NewRequest("POST", "/v1/map/markers", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", body, resp.StatusCode)
		}
	}
}

// ---- GraphQL ----

func TestGraphQL_VenueWithHours(t *testing.T) {
	deps := makeDeps(func(c *depsConfig) {
		c.repo.getByIDFn = func(ctx context.Context, id string) (*domain.Venue, error) {
			return &domain.Venue{ID: id, Name: "Octagon", Location: &gangnam,
				OperationHours: domain.WeeklyHours{"월요일": "휴무"}}, nil
		}
		c.clock = func() time.Time { return time.Date(2024, 1, 1, 23, 0, 0, 0, kst) }
	})
	app := setupApp(deps)

	body := `{"query":"{ venue(id: \"oct\") { name location { lat lng } hours { status label } } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Venue struct {
				Name     string          `json:"name"`
				Location domain.GeoPoint `json:"location"`
				Hours    struct {
					Status string `json:"status"`
					Label  string `json:"label"`
				} `json:"hours"`
			} `json:"venue"`
		} `json:"data"`
		Errors []any `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected graphql errors: %v", result.Errors)
	}
	v := result.Data.Venue
	if v.Name != "Octagon" || v.Location != gangnam {
		t.Errorf("unexpected venue %+v", v)
	}
	if v.Hours.Status != "HOLIDAY" || v.Hours.Label != "휴무" {
		t.Errorf("unexpected hours %+v", v.Hours)
	}
}

// ---- System ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/health", nil), -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
	if result["geocode_cache_entries"] != float64(0) {
		t.Errorf("expected empty geocode cache, got %v", result["geocode_cache_entries"])
	}
	if v := resp.Header.Get("X-API-Version"); v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

func TestReady_NoDB(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/ready", nil), -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestETag_NotModified(t *testing.T) {
	deps := makeDeps(func(c *depsConfig) {
		c.repo.getByIDFn = func(ctx context.Context, id string) (*domain.Venue, error) {
			return &domain.Venue{ID: id, Name: "Octagon"}, nil
		}
	})
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/venues/oct", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest("GET", "/v1/venues/oct", nil)
	req.Header.Set("If-None-Match", `W/"other", `+etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestDocs(t *testing.T) {
	deps := makeDeps()
	deps.SpecPath = findOpenAPISpec(t)
	app := setupApp(deps)

	resp, _ := app.Test(httptest.NewRequest("GET", "/docs", nil), -1)
	if resp.StatusCode != 200 || !strings.Contains(string(readBody(t, resp.Body)), "swagger-ui") {
		t.Errorf("expected swagger page, got %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	if resp.StatusCode != 200 || !strings.Contains(string(readBody(t, resp.Body)), "openapi: 3") {
		t.Errorf("expected openapi document, got %d", resp.StatusCode)
	}

	deps.SpecPath = "missing.yaml"
	resp, _ = setupApp(deps).Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for missing document, got %d", resp.StatusCode)
	}
}

// TestAccessLogMiddleware verifies structured access logging passes the
// response through.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}
