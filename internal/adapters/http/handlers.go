package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/ports"
	"github.com/samirrijal/nightmap/internal/core/usecases"
)

// ListVenuesHandler returns a page of venues filtered by q and category.
func ListVenuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := c.Query("q")
		if len(q) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		pg := parsePage(c)

		venues, total, err := deps.Venues.List(c.UserContext(), domain.VenueFilter{
			Query:    q,
			Category: c.Query("category"),
			Offset:   pg.Offset,
			Limit:    pg.Limit,
		})
		if err != nil {
			return errInternal(c, err)
		}
		if venues == nil {
			venues = []domain.Venue{}
		}

		pg.Total = total
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: venues, Pagination: pg})
	}
}

// SearchVenuesHandler matches venue names and addresses.
func SearchVenuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		venues, err := deps.Venues.Search(c.UserContext(), query, c.QueryInt("limit", 20))
		if err != nil {
			return errInternal(c, err)
		}
		return c.JSON(venues)
	}
}

// BatchVenuesHandler returns venues for a comma-separated ids list.
func BatchVenuesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Query("ids")
		if raw == "" {
			return errBadRequest(c, "ids query parameter is required")
		}
		ids := strings.Split(raw, ",")
		if len(ids) > 100 {
			return errBadRequest(c, "at most 100 ids per request")
		}
		venues, err := deps.Venues.GetByIDs(c.UserContext(), ids)
		if err != nil {
			return errInternal(c, err)
		}
		if venues == nil {
			venues = []domain.Venue{}
		}
		return c.JSON(venues)
	}
}

// GetVenueHandler returns a single venue by ID.
func GetVenueHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := deps.Venues.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromService(c, err, "venue not found")
		}
		return c.JSON(v)
	}
}

// HoursResponse is the display label plus the raw report.
type HoursResponse struct {
	VenueID string `json:"venue_id"`
	domain.HoursLabel
	Report domain.HoursReport `json:"report"`
}

// VenueHoursHandler reports where a venue is in its opening hours.
func VenueHoursHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		label, report, err := deps.Venues.Hours(c.UserContext(), id)
		if err != nil {
			return errFromService(c, err, "venue not found")
		}
		c.Set("Cache-Control", "public, max-age=30")
		return c.JSON(HoursResponse{VenueID: id, HoursLabel: label, Report: report})
	}
}

// GeocodeResponse is one resolved address.
type GeocodeResponse struct {
	Address  string          `json:"address"`
	Location domain.GeoPoint `json:"location"`
	Cached   bool            `json:"cached"`
}

// GeocodeHandler resolves an address through the shared geocode cache.
func GeocodeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		address := strings.TrimSpace(c.Query("address"))
		if address == "" {
			return errBadRequest(c, "address query parameter is required")
		}
		if len(address) > 300 {
			return errBadRequest(c, "address too long (max 300 characters)")
		}
		p, cached, err := deps.Map.Geocode(c.UserContext(), address)
		switch {
		case err == nil:
		case errors.Is(err, ports.ErrGeocodeNoResult):
			return errFromService(c, err, "")
		default:
			LoggerFromCtx(c.UserContext()).Warn("geocode failed", "address", address, "error", err)
			return errUpstream(c, "geocoding provider unavailable")
		}
		return c.JSON(GeocodeResponse{Address: address, Location: p, Cached: cached})
	}
}

// MarkersHandler places venues on a map server-side.
func MarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req usecases.MarkersRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return errBadRequest(c, "invalid request body")
			}
		}
		if req.Zoom < 0 || req.Zoom > 21 {
			return errBadRequest(c, "zoom must be between 0 and 21")
		}
		if b := req.Bounds; b != nil && (b.MinLat > b.MaxLat || b.MinLng > b.MaxLng) {
			return errBadRequest(c, "bounds min must not exceed max")
		}
		if req.RadiusM < 0 || req.RadiusM > 50000 {
			return errBadRequest(c, "radius_m must be between 0 and 50000")
		}

		res, err := deps.Map.Markers(c.UserContext(), req)
		if err != nil {
			if errors.Is(err, usecases.ErrTooManyVenues) {
				return errBadRequest(c, err.Error())
			}
			return errInternal(c, err)
		}
		if res.Markers == nil {
			res.Markers = []domain.Marker{}
		}
		if res.Clusters == nil {
			res.Clusters = []domain.Cluster{}
		}
		return c.JSON(res)
	}
}
