// Package tests exercises the full booking conversation against real
// handlers, with only the network edges (WhatsApp, Daraja, OpenAI,
// Postgres) replaced by fakes. Sessions live in a real Redis protocol
// via miniredis.
package tests

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glowhaven/whatsapp-booking/internal/bookings"
	"github.com/glowhaven/whatsapp-booking/internal/catalog"
	"github.com/glowhaven/whatsapp-booking/internal/conversation"
	"github.com/glowhaven/whatsapp-booking/internal/intent"
	"github.com/glowhaven/whatsapp-booking/internal/phone"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

var (
	flowBusinessID = uuid.MustParse("11111111-1111-4111-8111-111111111111")
	flowNailsCatID = uuid.MustParse("22222222-2222-4222-8222-222222222222")
	flowManiID     = uuid.MustParse("33333333-3333-4333-8333-333333333333")
)

type flowDirectory struct{}

func (flowDirectory) Business(context.Context) (*catalog.Business, error) {
	return &catalog.Business{ID: flowBusinessID, Tag: "glow-haven", Name: "Glow Haven Beauty Lounge", Address: "Westlands, Nairobi"}, nil
}

func (flowDirectory) Config(context.Context) (*catalog.BusinessConfig, error) {
	return &catalog.BusinessConfig{
		BusinessID:        flowBusinessID,
		DepositPercentage: decimal.NewFromInt(30),
		Currency:          "KES",
		LocationDisplay:   "Delta Towers, Westlands, Nairobi",
	}, nil
}

func (flowDirectory) Categories(context.Context) ([]catalog.ServiceCategory, error) {
	return []catalog.ServiceCategory{
		{ID: flowNailsCatID, BusinessID: flowBusinessID, Slug: "nails", Name: "Nails", Position: 1},
	}, nil
}

func (d flowDirectory) CategoryBySlug(ctx context.Context, slug string) (*catalog.ServiceCategory, error) {
	if slug != "nails" {
		return nil, catalog.ErrNotFound
	}
	cats, _ := d.Categories(ctx)
	return &cats[0], nil
}

func (d flowDirectory) Services(ctx context.Context) ([]catalog.Service, error) {
	return []catalog.Service{{
		ID:              flowManiID,
		BusinessID:      flowBusinessID,
		CategoryID:      flowNailsCatID,
		CategorySlug:    "nails",
		CategoryName:    "Nails",
		Slug:            "gel-manicure",
		Name:            "Gel Manicure",
		Price:           decimal.NewFromInt(1500),
		DurationMinutes: 60,
	}}, nil
}

func (d flowDirectory) ServicesByCategory(ctx context.Context, categoryID uuid.UUID) ([]catalog.Service, error) {
	if categoryID != flowNailsCatID {
		return nil, nil
	}
	return d.Services(ctx)
}

func (d flowDirectory) ServiceBySlug(ctx context.Context, slug string) (*catalog.Service, error) {
	if slug != "gel-manicure" {
		return nil, catalog.ErrNotFound
	}
	services, _ := d.Services(ctx)
	return &services[0], nil
}

func (flowDirectory) ActivePromotions(context.Context) ([]catalog.Promotion, error) {
	return nil, nil
}

type flowBookings struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*bookings.Booking
}

func newFlowBookings() *flowBookings {
	return &flowBookings{bookings: make(map[uuid.UUID]*bookings.Booking)}
}

func (f *flowBookings) Create(_ context.Context, p bookings.CreateParams) (*bookings.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := &bookings.Booking{
		ID:                 uuid.New(),
		Reference:          bookings.NewReference(time.Now()),
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
	f.bookings[b.ID] = b
	return b, nil
}

func (f *flowBookings) Get(_ context.Context, id uuid.UUID) (*bookings.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, bookings.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *flowBookings) Cancel(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		b.Status = bookings.StatusCancelled
	}
	return nil
}

func (f *flowBookings) AttachCheckoutRequest(_ context.Context, id uuid.UUID, checkoutRequestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		b.CheckoutRequestID = checkoutRequestID
	}
	return nil
}

func (f *flowBookings) markPaid(id uuid.UUID, receipt string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		b.PaymentStatus = bookings.PaymentPaid
		b.MpesaReceipt = receipt
	}
}

func (f *flowBookings) only() *bookings.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		return b
	}
	return nil
}

type flowGateway struct {
	mu     sync.Mutex
	pushes []decimal.Decimal
}

func (f *flowGateway) InitiateSTKPush(_ context.Context, _ string, amount decimal.Decimal, _, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, amount)
	return fmt.Sprintf("ws_CO_FLOW_%04d", len(f.pushes)), nil
}

type flowClassifier struct{}

func (flowClassifier) Classify(_ context.Context, message, _ string) (intent.Result, error) {
	if strings.Contains(strings.ToLower(message), "book") {
		return intent.Result{Type: intent.TypeBookAppointment, Confidence: 0.95}, nil
	}
	return intent.Result{Type: intent.TypeUnknown, Confidence: 0.2}, nil
}

type flowFeedback struct{}

func (flowFeedback) Save(context.Context, string, string, int, string) error { return nil }

// flowMessenger records everything the customer would see.
type flowMessenger struct {
	mu    sync.Mutex
	sends []sentMessage
}

type sentMessage struct {
	kind string
	body string
}

func (m *flowMessenger) record(kind, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, sentMessage{kind: kind, body: body})
	return fmt.Sprintf("wamid.FLOW%d", len(m.sends)), nil
}

func (m *flowMessenger) SendText(_ context.Context, _, body string) (string, error) {
	return m.record("text", body)
}

func (m *flowMessenger) SendButtons(_ context.Context, _, body string, _ []conversation.Button, _, _ string) (string, error) {
	return m.record("buttons", body)
}

func (m *flowMessenger) SendList(_ context.Context, _, body, _ string, _ []conversation.ListSection, _, _ string) (string, error) {
	return m.record("list", body)
}

func (m *flowMessenger) SendDocument(_ context.Context, _, _, _, _ string) (string, error) {
	return m.record("document", "")
}

func (m *flowMessenger) last() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sends) == 0 {
		return sentMessage{}
	}
	return m.sends[len(m.sends)-1]
}

func (m *flowMessenger) find(substr string) *sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sends {
		if strings.Contains(m.sends[i].body, substr) {
			return &m.sends[i]
		}
	}
	return nil
}

func TestBookingFlowEndToEnd(t *testing.T) {
	logger := logging.New("error")
	mr := miniredis.RunT(t)
	store := conversation.NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	directory := flowDirectory{}
	bookingSvc := newFlowBookings()
	gateway := &flowGateway{}
	messenger := &flowMessenger{}

	idle := conversation.NewIdleHandler(directory, flowClassifier{}, logger)
	registry := conversation.NewRegistry(map[conversation.State]conversation.Handler{
		conversation.StateIdle:             idle,
		conversation.StateProcessingIntent: idle,
		conversation.StateSelectService:    conversation.NewSelectServiceHandler(directory, logger),
		conversation.StateSelectDateTime:   conversation.NewSelectDateTimeHandler(7, 9, 18, time.UTC, logger),
		conversation.StateConfirm:          conversation.NewConfirmHandler(directory, bookingSvc, logger),
		conversation.StatePaymentInitiated: conversation.NewPaymentInitiatedHandler(directory, bookingSvc, gateway, phone.KenyaVerifier{}, logger),
		conversation.StatePaymentPending:   conversation.NewPaymentPendingHandler(bookingSvc, logger),
		conversation.StateFeedbackRating:   conversation.NewFeedbackRatingHandler(logger),
		conversation.StateFeedbackComment:  conversation.NewFeedbackCommentHandler(flowFeedback{}, logger),
	})
	engine := conversation.NewEngine(store, registry, conversation.NewResponder(messenger, nil, logger), logger)

	ctx := context.Background()
	const customer = "+254722123456"
	seq := 0
	send := func(content string) {
		seq++
		err := engine.Process(ctx, conversation.Inbound{
			CustomerPhone:     customer,
			CustomerName:      "Amina",
			Content:           content,
			ProviderMessageID: fmt.Sprintf("wamid.IN%04d", seq),
		})
		require.NoError(t, err, "processing %q", content)
	}
	stateNow := func() conversation.State {
		session, err := store.Get(ctx, customer)
		require.NoError(t, err)
		return session.State
	}

	send("I'd like to book an appointment")
	assert.Equal(t, conversation.StateSelectService, stateNow())
	assert.Equal(t, "list", messenger.last().kind)

	send("category_nails")
	assert.Equal(t, conversation.StateSelectService, stateNow())
	assert.Equal(t, "list", messenger.last().kind)

	send("service_gel-manicure")
	assert.Equal(t, conversation.StateSelectDateTime, stateNow())
	assert.Equal(t, "list", messenger.last().kind)

	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	send("date_" + tomorrow.Format("2006-01-02"))
	assert.Equal(t, conversation.StateSelectDateTime, stateNow())

	send("time_14:00")
	assert.Equal(t, conversation.StateConfirm, stateNow())
	assert.Contains(t, messenger.last().body, "KES 450.00")

	send("confirm_booking")
	assert.Equal(t, conversation.StatePaymentPending, stateNow())

	booking := bookingSvc.only()
	require.NotNil(t, booking)
	assert.Equal(t, "Gel Manicure", booking.ServiceName)
	assert.True(t, booking.DepositAmount.Equal(decimal.RequireFromString("450.00")), "deposit %s", booking.DepositAmount)
	assert.True(t, booking.BalanceAmount.Equal(decimal.RequireFromString("1050.00")), "balance %s", booking.BalanceAmount)
	assert.Equal(t, "ws_CO_FLOW_0001", booking.CheckoutRequestID)
	require.Len(t, gateway.pushes, 1)
	assert.True(t, gateway.pushes[0].Equal(decimal.RequireFromString("450.00")))

	bookingSvc.markPaid(booking.ID, "RHV31KTQAB")
	send("hello?")
	assert.Equal(t, conversation.StateIdle, stateNow())
	confirmation := messenger.find(booking.Reference)
	require.NotNil(t, confirmation)
	assert.Contains(t, confirmation.body, "RHV31KTQAB")

	session, err := store.Get(ctx, customer)
	require.NoError(t, err)
	assert.Empty(t, session.Context)
}

func TestBookingIntentCreatesSessionOnFirstContact(t *testing.T) {
	logger := logging.New("error")
	mr := miniredis.RunT(t)
	store := conversation.NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	messenger := &flowMessenger{}
	idle := conversation.NewIdleHandler(flowDirectory{}, flowClassifier{}, logger)
	registry := conversation.NewRegistry(map[conversation.State]conversation.Handler{
		conversation.StateIdle:             idle,
		conversation.StateProcessingIntent: idle,
		conversation.StateSelectService:    conversation.NewSelectServiceHandler(flowDirectory{}, logger),
		conversation.StateSelectDateTime:   conversation.NewSelectDateTimeHandler(7, 9, 18, time.UTC, logger),
		conversation.StateConfirm:          conversation.NewConfirmHandler(flowDirectory{}, newFlowBookings(), logger),
		conversation.StatePaymentInitiated: conversation.NewPaymentInitiatedHandler(flowDirectory{}, newFlowBookings(), &flowGateway{}, phone.KenyaVerifier{}, logger),
		conversation.StatePaymentPending:   conversation.NewPaymentPendingHandler(newFlowBookings(), logger),
		conversation.StateFeedbackRating:   conversation.NewFeedbackRatingHandler(logger),
		conversation.StateFeedbackComment:  conversation.NewFeedbackCommentHandler(flowFeedback{}, logger),
	})
	engine := conversation.NewEngine(store, registry, conversation.NewResponder(messenger, nil, logger), logger)

	ctx := context.Background()
	err := engine.Process(ctx, conversation.Inbound{
		CustomerPhone:     "+254722000200",
		Content:           "book",
		ProviderMessageID: "wamid.DUP1",
	})
	require.NoError(t, err)

	session, err := store.Get(ctx, "+254722000200")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateSelectService, session.State)
}
