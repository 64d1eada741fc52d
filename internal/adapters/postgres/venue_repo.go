package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/ports"
)

// VenueRepo implements ports.VenueRepository with pgx.
type VenueRepo struct {
	db *DB
}

func NewVenueRepo(db *DB) *VenueRepo {
	return &VenueRepo{db: db}
}

const venueColumns = `id, name, category, address, lat, lng,
       operation_hours, image_url, tags, metadata, created_at`

const upsertVenue = `
	INSERT INTO venues (id, name, category, address, lat, lng, operation_hours, image_url, tags, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, category = EXCLUDED.category,
	    address = EXCLUDED.address,
	    lat = COALESCE(EXCLUDED.lat, CASE WHEN venues.address = EXCLUDED.address THEN venues.lat END),
	    lng = COALESCE(EXCLUDED.lng, CASE WHEN venues.address = EXCLUDED.address THEN venues.lng END),
	    operation_hours = EXCLUDED.operation_hours,
	    image_url = EXCLUDED.image_url, tags = EXCLUDED.tags,
	    metadata = EXCLUDED.metadata
`

func upsertArgs(v *domain.Venue) []any {
	var lat, lng *float64
	if v.Location != nil {
		lat, lng = &v.Location.Lat, &v.Location.Lng
	}
	hours := v.OperationHours
	if hours == nil {
		hours = domain.WeeklyHours{}
	}
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	meta := v.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return []any{v.ID, v.Name, v.Category, v.Address, lat, lng, hours, v.ImageURL, tags, meta}
}

// Upsert inserts or updates a venue. A known location survives an
// update that carries none, unless the address changed.
func (r *VenueRepo) Upsert(ctx context.Context, v *domain.Venue) error {
	_, err := r.db.Pool.Exec(ctx, upsertVenue, upsertArgs(v)...)
	return err
}

// UpsertBatch inserts many venues using pgx.Batch.
func (r *VenueRepo) UpsertBatch(ctx context.Context, venues []domain.Venue) error {
	batch := &pgx.Batch{}
	for i := range venues {
		batch.Queue(upsertVenue, upsertArgs(&venues[i])...)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range venues {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

func scanVenue(row pgx.Row) (domain.Venue, error) {
	var (
		v        domain.Venue
		lat, lng *float64
	)
	if err := row.Scan(
		&v.ID, &v.Name, &v.Category, &v.Address, &lat, &lng,
		&v.OperationHours, &v.ImageURL, &v.Tags, &v.Metadata, &v.CreatedAt,
	); err != nil {
		return v, err
	}
	if lat != nil && lng != nil {
		v.Location = &domain.GeoPoint{Lat: *lat, Lng: *lng}
	}
	return v, nil
}

func collectVenues(rows pgx.Rows) ([]domain.Venue, error) {
	defer rows.Close()
	var venues []domain.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// GetByID returns ports.ErrNotFound when no venue has id.
func (r *VenueRepo) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	v, err := scanVenue(r.db.Pool.QueryRow(ctx,
		`SELECT `+venueColumns+` FROM venues WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetByIDs returns the venues that exist among ids, ordered by name.
func (r *VenueRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Venue, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+venueColumns+` FROM venues WHERE id = ANY($1) ORDER BY name`, ids)
	if err != nil {
		return nil, err
	}
	return collectVenues(rows)
}

// List pages through venues matching filter and reports the total match count.
func (r *VenueRepo) List(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR address ILIKE $%d)", len(args), len(args)))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM venues`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count venues: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	rows, err := r.db.Pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM venues%s ORDER BY name, id LIMIT $%d OFFSET $%d`,
			venueColumns, cond, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	venues, err := collectVenues(rows)
	return venues, total, err
}

func (r *VenueRepo) ListAll(ctx context.Context) ([]domain.Venue, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+venueColumns+` FROM venues ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	return collectVenues(rows)
}

// SetLocation stores a geocoded coordinate on the venue row.
func (r *VenueRepo) SetLocation(ctx context.Context, id string, p domain.GeoPoint) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE venues SET lat = $2, lng = $3 WHERE id = $1`, id, p.Lat, p.Lng)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}
