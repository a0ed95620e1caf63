package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Directory scopes repository reads to one business so callers never pass
// (or leak) tenant ids around.
type Directory struct {
	repo       *Repository
	businessID uuid.UUID
}

// NewDirectory binds a repository to a business.
func NewDirectory(repo *Repository, businessID uuid.UUID) *Directory {
	if repo == nil {
		panic("catalog: repository required")
	}
	return &Directory{repo: repo, businessID: businessID}
}

func (d *Directory) BusinessID() uuid.UUID {
	return d.businessID
}

func (d *Directory) Business(ctx context.Context) (*Business, error) {
	return d.repo.GetBusinessByID(ctx, d.businessID)
}

func (d *Directory) Config(ctx context.Context) (*BusinessConfig, error) {
	return d.repo.GetConfig(ctx, d.businessID)
}

func (d *Directory) Categories(ctx context.Context) ([]ServiceCategory, error) {
	return d.repo.ListCategories(ctx, d.businessID)
}

func (d *Directory) CategoryBySlug(ctx context.Context, slug string) (*ServiceCategory, error) {
	return d.repo.GetCategoryBySlug(ctx, d.businessID, slug)
}

func (d *Directory) Services(ctx context.Context) ([]Service, error) {
	return d.repo.ListServices(ctx, d.businessID)
}

func (d *Directory) ServicesByCategory(ctx context.Context, categoryID uuid.UUID) ([]Service, error) {
	return d.repo.ListServicesByCategory(ctx, d.businessID, categoryID)
}

func (d *Directory) ServiceBySlug(ctx context.Context, slug string) (*Service, error) {
	return d.repo.GetServiceBySlug(ctx, d.businessID, slug)
}

func (d *Directory) ActivePromotions(ctx context.Context) ([]Promotion, error) {
	return d.repo.ListActivePromotions(ctx, d.businessID)
}
