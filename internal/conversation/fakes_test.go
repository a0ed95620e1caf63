package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowhaven/whatsapp-booking/internal/bookings"
	"github.com/glowhaven/whatsapp-booking/internal/catalog"
	"github.com/glowhaven/whatsapp-booking/internal/intent"
)

// Fixture ids shared across handler tests.
var (
	testBusinessID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testHairCatID  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	testNailsCatID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	testBraidsID   = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	testManicureID = uuid.MustParse("55555555-5555-5555-5555-555555555555")
	testPedicureID = uuid.MustParse("66666666-6666-6666-6666-666666666666")
)

type fakeDirectory struct {
	business   *catalog.Business
	config     *catalog.BusinessConfig
	categories []catalog.ServiceCategory
	services   []catalog.Service
	promotions []catalog.Promotion
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		business: &catalog.Business{
			ID:      testBusinessID,
			Tag:     "glow-haven",
			Name:    "Glow Haven",
			Phone:   "+254700000000",
			Email:   "hello@glowhaven.co.ke",
			Address: "Westlands, Nairobi",
		},
		config: &catalog.BusinessConfig{
			BusinessID:        testBusinessID,
			DepositPercentage: decimal.NewFromInt(30),
			Currency:          "KES",
			ContactPhone:      "+254700000000",
			LocationDisplay:   "Glow Haven, Westlands, Nairobi",
		},
		categories: []catalog.ServiceCategory{
			{ID: testHairCatID, BusinessID: testBusinessID, Slug: "hair", Name: "Hair", Position: 1},
			{ID: testNailsCatID, BusinessID: testBusinessID, Slug: "nails", Name: "Nails", Position: 2},
		},
		services: []catalog.Service{
			{
				ID: testBraidsID, BusinessID: testBusinessID, CategoryID: testHairCatID,
				CategorySlug: "hair", CategoryName: "Hair", Slug: "box-braids", Name: "Box Braids",
				Price: decimal.NewFromInt(2000), DurationMinutes: 120,
			},
			{
				ID: testManicureID, BusinessID: testBusinessID, CategoryID: testNailsCatID,
				CategorySlug: "nails", CategoryName: "Nails", Slug: "gel-manicure", Name: "Gel Manicure",
				Price: decimal.NewFromInt(1500), DurationMinutes: 60,
			},
			{
				ID: testPedicureID, BusinessID: testBusinessID, CategoryID: testNailsCatID,
				CategorySlug: "nails", CategoryName: "Nails", Slug: "spa-pedicure", Name: "Spa Pedicure",
				Price: decimal.NewFromInt(1800), DurationMinutes: 75,
			},
		},
	}
}

func (d *fakeDirectory) Business(ctx context.Context) (*catalog.Business, error) {
	return d.business, nil
}

func (d *fakeDirectory) Config(ctx context.Context) (*catalog.BusinessConfig, error) {
	return d.config, nil
}

func (d *fakeDirectory) Categories(ctx context.Context) ([]catalog.ServiceCategory, error) {
	return d.categories, nil
}

func (d *fakeDirectory) CategoryBySlug(ctx context.Context, slug string) (*catalog.ServiceCategory, error) {
	for i := range d.categories {
		if d.categories[i].Slug == slug {
			return &d.categories[i], nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (d *fakeDirectory) Services(ctx context.Context) ([]catalog.Service, error) {
	return d.services, nil
}

func (d *fakeDirectory) ServicesByCategory(ctx context.Context, categoryID uuid.UUID) ([]catalog.Service, error) {
	var out []catalog.Service
	for _, s := range d.services {
		if s.CategoryID == categoryID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (d *fakeDirectory) ServiceBySlug(ctx context.Context, slug string) (*catalog.Service, error) {
	for i := range d.services {
		if d.services[i].Slug == slug {
			return &d.services[i], nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (d *fakeDirectory) ActivePromotions(ctx context.Context) ([]catalog.Promotion, error) {
	return d.promotions, nil
}

type fakeBookings struct {
	created   []bookings.CreateParams
	createErr error
	byID      map[uuid.UUID]*bookings.Booking
	cancelled []uuid.UUID
	attached  map[uuid.UUID]string
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{
		byID:     map[uuid.UUID]*bookings.Booking{},
		attached: map[uuid.UUID]string{},
	}
}

func (f *fakeBookings) Create(ctx context.Context, p bookings.CreateParams) (*bookings.Booking, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, p)
	b := &bookings.Booking{
		ID:                 uuid.New(),
		Reference:          "GLW-20260830-TEST",
		BusinessID:         p.BusinessID,
		CustomerPhone:      p.CustomerPhone,
		CustomerName:       p.CustomerName,
		ServiceName:        p.ServiceName,
		ServiceCategory:    p.ServiceCategory,
		DurationMinutes:    p.DurationMinutes,
		AppointmentDate:    p.AppointmentDate,
		AppointmentTime:    p.AppointmentTime,
		AppointmentDisplay: p.AppointmentDisplay,
		ServicePrice:       p.ServicePrice,
		DiscountAmount:     p.DiscountAmount,
		PromotionName:      p.PromotionName,
		DepositAmount:      p.DepositAmount,
		BalanceAmount:      p.BalanceAmount,
		TotalAmount:        p.ServicePrice.Sub(p.DiscountAmount),
		Status:             bookings.StatusConfirmed,
		PaymentStatus:      bookings.PaymentPending,
	}
	f.byID[b.ID] = b
	return b, nil
}

func (f *fakeBookings) Get(ctx context.Context, id uuid.UUID) (*bookings.Booking, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, bookings.ErrNotFound
	}
	return b, nil
}

func (f *fakeBookings) Cancel(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return bookings.ErrNotFound
	}
	f.cancelled = append(f.cancelled, id)
	f.byID[id].Status = bookings.StatusCancelled
	return nil
}

func (f *fakeBookings) AttachCheckoutRequest(ctx context.Context, id uuid.UUID, checkoutRequestID string) error {
	if _, ok := f.byID[id]; !ok {
		return bookings.ErrNotFound
	}
	f.attached[id] = checkoutRequestID
	f.byID[id].CheckoutRequestID = checkoutRequestID
	return nil
}

// seed installs a booking directly, for handlers that read existing records.
func (f *fakeBookings) seed(b *bookings.Booking) *bookings.Booking {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	f.byID[b.ID] = b
	return b
}

type fakeGateway struct {
	pushes []pushCall
	err    error
}

type pushCall struct {
	phone     string
	amount    decimal.Decimal
	reference string
}

func (g *fakeGateway) InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal, reference, description string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.pushes = append(g.pushes, pushCall{phone: phone, amount: amount, reference: reference})
	return "ws_CO_TEST_0001", nil
}

type fakeVerifier struct {
	safaricom map[string]bool
}

func (v fakeVerifier) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "+254") && len(raw) == 13:
		return raw, nil
	case strings.HasPrefix(raw, "0") && len(raw) == 10:
		return "+254" + raw[1:], nil
	default:
		return "", errors.New("phone: unparseable number")
	}
}

func (v fakeVerifier) IsSafaricom(number string) bool {
	return v.safaricom[number]
}

type stubClassifier struct {
	result intent.Result
	err    error
}

func (s stubClassifier) Classify(ctx context.Context, message, businessContext string) (intent.Result, error) {
	return s.result, s.err
}

type fakeFeedbackStore struct {
	saved []savedFeedback
	err   error
}

type savedFeedback struct {
	phone   string
	name    string
	rating  int
	comment string
}

func (f *fakeFeedbackStore) Save(ctx context.Context, customerPhone, customerName string, rating int, comment string) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, savedFeedback{phone: customerPhone, name: customerName, rating: rating, comment: comment})
	return nil
}

func newSession(state State, sctx Context) *Session {
	if sctx == nil {
		sctx = Context{}
	}
	return &Session{
		CustomerPhone: "+254722000100",
		State:         state,
		Context:       sctx,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}
