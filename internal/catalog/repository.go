package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a catalog row does not exist for the
// addressed business. Foreign or stale identifiers surface as ErrNotFound,
// never as another tenant's data.
var ErrNotFound = errors.New("catalog: not found")

// DB is the subset of pgxpool.Pool the repository needs. pgxmock satisfies
// it for tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads the business catalog from PostgreSQL.
type Repository struct {
	db DB
}

// NewRepository creates a catalog repository backed by a pgx pool.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("catalog: db required")
	}
	return &Repository{db: db}
}

// GetBusinessByTag loads a business by its routing tag.
func (r *Repository) GetBusinessByTag(ctx context.Context, tag string) (*Business, error) {
	var b Business
	err := r.db.QueryRow(ctx, `
		SELECT id, tag, name, phone, email, instagram_handle, address
		FROM businesses
		WHERE tag = $1
	`, tag).Scan(&b.ID, &b.Tag, &b.Name, &b.Phone, &b.Email, &b.InstagramHandle, &b.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load business: %w", err)
	}
	return &b, nil
}

// GetBusinessByID loads a business by its primary key.
func (r *Repository) GetBusinessByID(ctx context.Context, id uuid.UUID) (*Business, error) {
	var b Business
	err := r.db.QueryRow(ctx, `
		SELECT id, tag, name, phone, email, instagram_handle, address
		FROM businesses
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Tag, &b.Name, &b.Phone, &b.Email, &b.InstagramHandle, &b.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load business: %w", err)
	}
	return &b, nil
}

// GetConfig loads the booking policy for a business.
func (r *Repository) GetConfig(ctx context.Context, businessID uuid.UUID) (*BusinessConfig, error) {
	var (
		cfg        BusinessConfig
		depositPct string
	)
	err := r.db.QueryRow(ctx, `
		SELECT business_id, deposit_percentage::text, currency, contact_phone, contact_email, location_display
		FROM business_configurations
		WHERE business_id = $1
	`, businessID).Scan(&cfg.BusinessID, &depositPct, &cfg.Currency, &cfg.ContactPhone, &cfg.ContactEmail, &cfg.LocationDisplay)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load configuration: %w", err)
	}
	cfg.DepositPercentage, err = decimal.NewFromString(depositPct)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse deposit percentage: %w", err)
	}
	return &cfg, nil
}

// ListCategories returns the business's categories in display order.
func (r *Repository) ListCategories(ctx context.Context, businessID uuid.UUID) ([]ServiceCategory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, business_id, slug, name, position
		FROM service_categories
		WHERE business_id = $1
		ORDER BY position, name
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list categories: %w", err)
	}
	defer rows.Close()

	var categories []ServiceCategory
	for rows.Next() {
		var c ServiceCategory
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.Slug, &c.Name, &c.Position); err != nil {
			return nil, fmt.Errorf("catalog: scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate categories: %w", err)
	}
	return categories, nil
}

// GetCategoryBySlug resolves a selection token's slug within the business.
func (r *Repository) GetCategoryBySlug(ctx context.Context, businessID uuid.UUID, slug string) (*ServiceCategory, error) {
	var c ServiceCategory
	err := r.db.QueryRow(ctx, `
		SELECT id, business_id, slug, name, position
		FROM service_categories
		WHERE business_id = $1 AND slug = $2
	`, businessID, slug).Scan(&c.ID, &c.BusinessID, &c.Slug, &c.Name, &c.Position)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load category: %w", err)
	}
	return &c, nil
}

const serviceColumns = `
	s.id, s.business_id, s.category_id, c.slug, c.name, s.slug, s.name, s.price::text, s.duration_minutes`

func scanService(row pgx.Row) (*Service, error) {
	var (
		s     Service
		price string
	)
	err := row.Scan(&s.ID, &s.BusinessID, &s.CategoryID, &s.CategorySlug, &s.CategoryName, &s.Slug, &s.Name, &price, &s.DurationMinutes)
	if err != nil {
		return nil, err
	}
	s.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse service price: %w", err)
	}
	return &s, nil
}

// ListServicesByCategory returns a category's services ordered by name for
// stable list presentation.
func (r *Repository) ListServicesByCategory(ctx context.Context, businessID, categoryID uuid.UUID) ([]Service, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+serviceColumns+`
		FROM services s
		JOIN service_categories c ON c.id = s.category_id
		WHERE s.business_id = $1 AND s.category_id = $2
		ORDER BY s.name
	`, businessID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()
	return collectServices(rows)
}

// ListServices returns every service for the business, grouped by category
// order then name.
func (r *Repository) ListServices(ctx context.Context, businessID uuid.UUID) ([]Service, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+serviceColumns+`
		FROM services s
		JOIN service_categories c ON c.id = s.category_id
		WHERE s.business_id = $1
		ORDER BY c.position, c.name, s.name
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()
	return collectServices(rows)
}

func collectServices(rows pgx.Rows) ([]Service, error) {
	var services []Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		services = append(services, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate services: %w", err)
	}
	return services, nil
}

// GetServiceBySlug resolves a service token's slug within the business.
func (r *Repository) GetServiceBySlug(ctx context.Context, businessID uuid.UUID, slug string) (*Service, error) {
	s, err := scanService(r.db.QueryRow(ctx, `
		SELECT`+serviceColumns+`
		FROM services s
		JOIN service_categories c ON c.id = s.category_id
		WHERE s.business_id = $1 AND s.slug = $2
	`, businessID, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load service: %w", err)
	}
	return s, nil
}

// ListActivePromotions returns the business's enabled promotions. Date
// filtering (validity window, recurrence, redemption cap) happens in Go via
// FilterApplicable so the rules live in one place.
func (r *Repository) ListActivePromotions(ctx context.Context, businessID uuid.UUID) ([]Promotion, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, business_id, name, kind, value::text, start_date, end_date,
		       max_redemptions, current_redemptions, applicable_service_ids, recurrence_rule
		FROM promotions
		WHERE business_id = $1 AND enabled
		ORDER BY created_at
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list promotions: %w", err)
	}
	defer rows.Close()

	var promos []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate promotions: %w", err)
	}
	return promos, nil
}

func scanPromotion(rows pgx.Rows) (*Promotion, error) {
	var (
		p          Promotion
		kind       string
		value      string
		start, end *time.Time
		serviceIDs []byte
		recurrence []byte
	)
	err := rows.Scan(&p.ID, &p.BusinessID, &p.Name, &kind, &value, &start, &end,
		&p.MaxRedemptions, &p.CurrentRedemptions, &serviceIDs, &recurrence)
	if err != nil {
		return nil, fmt.Errorf("catalog: scan promotion: %w", err)
	}
	p.Kind = PromotionKind(kind)
	p.Value, err = decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse promotion value: %w", err)
	}
	p.StartDate = start
	p.EndDate = end
	if len(serviceIDs) > 0 {
		var raw []string
		if err := json.Unmarshal(serviceIDs, &raw); err != nil {
			return nil, fmt.Errorf("catalog: decode applicable services: %w", err)
		}
		for _, v := range raw {
			id, err := uuid.Parse(v)
			if err != nil {
				continue
			}
			p.ApplicableServiceIDs = append(p.ApplicableServiceIDs, id)
		}
	}
	if len(recurrence) > 0 {
		var rule RecurrenceRule
		if err := json.Unmarshal(recurrence, &rule); err != nil {
			return nil, fmt.Errorf("catalog: decode recurrence rule: %w", err)
		}
		if rule.Type != "" {
			p.Recurrence = &rule
		}
	}
	return &p, nil
}
