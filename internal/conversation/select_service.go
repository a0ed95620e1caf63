package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glowhaven/whatsapp-booking/internal/catalog"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// SelectServiceHandler routes by the inbound token: a category token shows
// that category's services, a service token locks the choice in and moves
// to datetime selection, anything else falls back to the category list.
type SelectServiceHandler struct {
	directory Directory
	logger    *logging.Logger
}

func NewSelectServiceHandler(directory Directory, logger *logging.Logger) *SelectServiceHandler {
	if directory == nil {
		panic("conversation: directory required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SelectServiceHandler{directory: directory, logger: logger}
}

func (h *SelectServiceHandler) Handle(ctx context.Context, session *Session, messageContent string, customerName string) (Outcome, error) {
	if slug, ok := catalog.ParseCategoryToken(messageContent); ok {
		category, err := h.directory.CategoryBySlug(ctx, slug)
		if errors.Is(err, catalog.ErrNotFound) {
			h.logger.Warn("unknown category token, showing categories",
				"customer", session.CustomerPhone, "slug", slug)
			return h.showCategories(ctx, "Something went wrong. Let's start over.")
		}
		if err != nil {
			return Outcome{}, err
		}
		return h.showServices(ctx, category)
	}

	if slug, ok := catalog.ParseServiceToken(messageContent); ok {
		service, err := h.directory.ServiceBySlug(ctx, slug)
		if errors.Is(err, catalog.ErrNotFound) {
			// Stale token or a service belonging to another business; both
			// look identical from here and both fall back safely.
			h.logger.Warn("service not found, showing categories",
				"customer", session.CustomerPhone, "slug", slug)
			return h.showCategories(ctx, "")
		}
		if err != nil {
			return Outcome{}, err
		}
		return h.confirmService(ctx, service, customerName)
	}

	// First entry or free text: the safe, idempotent fallback.
	return h.showCategories(ctx, "")
}

func (h *SelectServiceHandler) showCategories(ctx context.Context, errorLine string) (Outcome, error) {
	categories, err := h.directory.Categories(ctx)
	if err != nil {
		return Outcome{}, err
	}

	rows := make([]ListRow, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, ListRow{
			ID:          catalog.CategoryToken(c.Slug),
			Title:       c.Name,
			Description: "Explore " + strings.ToLower(c.Name) + " services",
		})
	}

	body := "Great! Let's find the perfect service for you. 💅\n\n"
	if errorLine != "" {
		body = "⚠️ " + errorLine + "\n\n" + body
	}
	body += "Which type of service are you interested in?"

	out := ListOutcome(body, "View Services", []ListSection{{Title: "Service Categories", Rows: rows}})
	out.Footer = "Tap to browse our services"
	return out, nil
}

func (h *SelectServiceHandler) showServices(ctx context.Context, category *catalog.ServiceCategory) (Outcome, error) {
	services, err := h.directory.ServicesByCategory(ctx, category.ID)
	if err != nil {
		return Outcome{}, err
	}
	if len(services) == 0 {
		h.logger.Error("category has no services", "category", category.Slug)
		return h.showCategories(ctx, "Something went wrong. Let's start over.")
	}
	config, err := h.directory.Config(ctx)
	if err != nil {
		return Outcome{}, err
	}

	rows := make([]ListRow, 0, len(services))
	for _, s := range services {
		deposit := catalog.Deposit(s.Price, config.DepositPercentage)
		rows = append(rows, ListRow{
			ID:    catalog.ServiceToken(s.Slug),
			Title: s.Name,
			Description: fmt.Sprintf("%s (Deposit: %s) • %d mins",
				catalog.FormatAmount(config.Currency, s.Price),
				catalog.FormatAmount(config.Currency, deposit),
				s.DurationMinutes),
		})
	}

	body := fmt.Sprintf("Here are our *%s* services:\n\nSelect the service you'd like to book:", category.Name)
	out := ListOutcome(body, "Select Service", []ListSection{{Title: category.Name, Rows: rows}})
	out.Footer = fmt.Sprintf("A %s%% deposit confirms your booking", config.DepositPercentage.Round(0).String())
	return out.WithContext(Context{
		ctxSelectedCategoryID: category.Slug,
	}), nil
}

func (h *SelectServiceHandler) confirmService(ctx context.Context, service *catalog.Service, customerName string) (Outcome, error) {
	config, err := h.directory.Config(ctx)
	if err != nil {
		return Outcome{}, err
	}
	deposit := catalog.Deposit(service.Price, config.DepositPercentage)

	greeting := "Perfect choice!"
	if customerName != "" {
		greeting = fmt.Sprintf("Perfect choice, %s!", customerName)
	}

	body := fmt.Sprintf(
		"%s\n\n✨ *%s*\n💰 %s (Deposit: %s)\n⏱️ %d mins\n\nLet's schedule your appointment. When would you like to come in?",
		greeting,
		service.Name,
		catalog.FormatAmount(config.Currency, service.Price),
		catalog.FormatAmount(config.Currency, deposit),
		service.DurationMinutes,
	)

	h.logger.Info("service selected",
		"service", service.Slug,
		"price", service.Price.StringFixed(2),
	)

	return TextOutcome(body).
		WithContext(Context{
			ctxSelectedService: map[string]any{
				"id":               service.ID.String(),
				"slug":             service.Slug,
				"name":             service.Name,
				"price":            service.Price.StringFixed(2),
				"duration_minutes": service.DurationMinutes,
				"category":         service.CategoryName,
			},
		}).
		WithTransition(StateSelectDateTime), nil
}
