package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowhaven/whatsapp-booking/internal/catalog"
	"github.com/glowhaven/whatsapp-booking/internal/intent"
	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// IdleHandler routes the first message of a flow by classified intent:
// booking and feedback intents transition away, informational intents are
// answered in place.
type IdleHandler struct {
	directory  Directory
	classifier IntentClassifier
	logger     *logging.Logger
}

func NewIdleHandler(directory Directory, classifier IntentClassifier, logger *logging.Logger) *IdleHandler {
	if directory == nil {
		panic("conversation: directory required")
	}
	if classifier == nil {
		classifier = intent.KeywordClassifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &IdleHandler{directory: directory, classifier: classifier, logger: logger}
}

func (h *IdleHandler) Handle(ctx context.Context, session *Session, messageContent string, customerName string) (Outcome, error) {
	businessContext, err := h.renderBusinessContext(ctx)
	if err != nil {
		h.logger.Error("failed to build business context for classification", "error", err)
		businessContext = ""
	}

	result, err := h.classifier.Classify(ctx, messageContent, businessContext)
	if err != nil {
		return Outcome{}, &ExternalServiceError{Service: "intent classifier", Err: err}
	}

	h.logger.Info("intent recognized",
		"customer", session.CustomerPhone,
		"intent", result.Type,
		"confidence", result.Confidence,
	)

	if result.Confidence < intent.MinConfidence {
		return h.lowConfidence(customerName), nil
	}

	switch result.Type {
	case intent.TypeBookAppointment:
		return h.bookingIntent(customerName), nil
	case intent.TypeGeneralInquiry:
		return h.generalInquiry(ctx, messageContent, customerName)
	case intent.TypePriceCheck:
		return h.priceCheck(ctx, result)
	case intent.TypeFeedback:
		return h.feedbackIntent(customerName), nil
	case intent.TypePaymentRelated:
		return h.paymentInquiry(ctx)
	default:
		return h.unknownIntent(customerName), nil
	}
}

func (h *IdleHandler) lowConfidence(customerName string) Outcome {
	greeting := "there"
	if customerName != "" {
		greeting = customerName
	}
	return TextOutcome(fmt.Sprintf(
		"Hi %s! I'd love to help, but I'm not quite sure what you're asking. Could you rephrase that? I can help you:\n"+
			"• Book an appointment\n"+
			"• Check service prices\n"+
			"• Learn about our location and hours\n"+
			"• View current promotions", greeting))
}

func (h *IdleHandler) bookingIntent(customerName string) Outcome {
	greeting := "Great!"
	if customerName != "" {
		greeting = fmt.Sprintf("Great, %s!", customerName)
	}
	return TextOutcome(greeting + " Let's book your appointment. I'll show you our available services next.").
		WithTransition(StateSelectService)
}

func (h *IdleHandler) feedbackIntent(customerName string) Outcome {
	greeting := "Thank you!"
	if customerName != "" {
		greeting = fmt.Sprintf("Thank you, %s!", customerName)
	}
	return TextOutcome(greeting + " We value your feedback. Let me help you share your experience with us.").
		WithTransition(StateFeedbackRating)
}

func (h *IdleHandler) unknownIntent(customerName string) Outcome {
	greeting := "there"
	if customerName != "" {
		greeting = customerName
	}
	return TextOutcome(fmt.Sprintf(
		"Hi %s! I'm not sure I understood that. I'm here to help you with:\n\n"+
			"• *Booking* appointments\n"+
			"• Checking *prices* for our services\n"+
			"• *Location* and operating hours\n"+
			"• Current *promotions*\n"+
			"• Providing *feedback*\n\n"+
			"What would you like to do?", greeting))
}

func (h *IdleHandler) generalInquiry(ctx context.Context, messageContent, customerName string) (Outcome, error) {
	lower := strings.ToLower(messageContent)
	contains := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("hour", "open", "when"):
		return TextOutcome("We're open every day! 🕐\n\n*Operating Hours:*\n9:00 AM - 7:00 PM, Monday to Sunday\n\nWe're here to serve you 7 days a week!"), nil

	case contains("location", "where", "address", "find"):
		business, err := h.directory.Business(ctx)
		if err != nil {
			return Outcome{}, err
		}
		lines := []string{"📍 *Our Location:*\n" + business.Address, "\n*Contact Us:*"}
		if business.Phone != "" {
			lines = append(lines, "📞 "+business.Phone)
		}
		if business.Email != "" {
			lines = append(lines, "📧 "+business.Email)
		}
		if business.InstagramHandle != "" {
			lines = append(lines, "📱 Instagram: @"+business.InstagramHandle)
		}
		return TextOutcome(strings.Join(lines, "\n")), nil

	case contains("promo", "deal", "discount", "offer", "special"):
		return h.promotionsReply(ctx)

	case contains("service", "offer", "what do you"):
		return h.servicesOverview(ctx)
	}

	business, err := h.directory.Business(ctx)
	if err != nil {
		return Outcome{}, err
	}
	greeting := "Hello!"
	if customerName != "" {
		greeting = fmt.Sprintf("Hi %s!", customerName)
	}
	return TextOutcome(fmt.Sprintf(
		"%s Welcome to %s! 🌟\n\nI can help you with:\n"+
			"• Booking appointments\n"+
			"• Viewing our services and prices\n"+
			"• Checking our location and hours\n"+
			"• Learning about current promotions\n\n"+
			"What would you like to know?", greeting, business.Name)), nil
}

func (h *IdleHandler) promotionsReply(ctx context.Context) (Outcome, error) {
	promos, err := h.directory.ActivePromotions(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if len(promos) == 0 {
		return TextOutcome("We don't have any active promotions at the moment. Check back soon!"), nil
	}
	var b strings.Builder
	b.WriteString("🎉 *Current Promotions:*\n\n")
	for _, p := range promos {
		switch p.Kind {
		case catalog.PromotionPercentage:
			fmt.Fprintf(&b, "• %s — %s%% off\n", p.Name, p.Value.String())
		case catalog.PromotionFixedAmount:
			fmt.Fprintf(&b, "• %s — KES %s off\n", p.Name, p.Value.StringFixed(2))
		default:
			fmt.Fprintf(&b, "• %s\n", p.Name)
		}
	}
	b.WriteString("\nReady to book and save? Just let me know!")
	return TextOutcome(b.String()), nil
}

func (h *IdleHandler) servicesOverview(ctx context.Context) (Outcome, error) {
	categories, err := h.directory.Categories(ctx)
	if err != nil {
		return Outcome{}, err
	}
	services, err := h.directory.Services(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if len(services) == 0 {
		return TextOutcome("We're updating our services. Please check back soon!"), nil
	}

	var b strings.Builder
	b.WriteString("✨ *Our Services:*\n\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "• %s\n", c.Name)
	}
	min, max := services[0].Price, services[0].Price
	for _, s := range services[1:] {
		if s.Price.LessThan(min) {
			min = s.Price
		}
		if s.Price.GreaterThan(max) {
			max = s.Price
		}
	}
	fmt.Fprintf(&b, "\n💰 Prices range from %s - %s\n",
		catalog.FormatAmount("KES", min), catalog.FormatAmount("KES", max))
	b.WriteString("Would you like to see specific service prices or book an appointment?")
	return TextOutcome(b.String()), nil
}

func (h *IdleHandler) priceCheck(ctx context.Context, result intent.Result) (Outcome, error) {
	categories, err := h.directory.Categories(ctx)
	if err != nil {
		return Outcome{}, err
	}
	services, err := h.directory.Services(ctx)
	if err != nil {
		return Outcome{}, err
	}

	wanted := strings.ToLower(result.Entities["service_category"])
	if wanted != "" {
		for _, c := range categories {
			if !strings.Contains(strings.ToLower(c.Name), wanted) {
				continue
			}
			inCategory := servicesIn(services, c.ID)
			if len(inCategory) == 0 {
				continue
			}
			var b strings.Builder
			fmt.Fprintf(&b, "💰 *%s Prices:*\n\n", c.Name)
			writePriceLines(&b, inCategory)
			b.WriteString("\nWould you like to book any of these services?")
			return TextOutcome(b.String()), nil
		}
	}

	var b strings.Builder
	b.WriteString("💰 *Our Service Prices:*\n\n")
	for _, c := range categories {
		inCategory := servicesIn(services, c.ID)
		if len(inCategory) == 0 {
			continue
		}
		fmt.Fprintf(&b, "*%s:*\n", c.Name)
		writePriceLines(&b, inCategory)
		b.WriteString("\n")
	}
	b.WriteString("Ready to book? Just let me know! 💅")
	return TextOutcome(b.String()), nil
}

func (h *IdleHandler) paymentInquiry(ctx context.Context) (Outcome, error) {
	config, err := h.directory.Config(ctx)
	if err != nil {
		return Outcome{}, err
	}
	return TextOutcome(fmt.Sprintf(
		"💳 *Payment Information:*\n\n"+
			"We accept the following payment methods:\n"+
			"• M-Pesa\n• Cash\n• Card\n\n"+
			"*Booking Policy:*\n"+
			"A %s%% deposit is required to confirm your appointment. "+
			"You can pay the deposit via M-Pesa when booking.\n\n"+
			"Would you like to book an appointment?", config.DepositPercentage.Round(0).String())), nil
}

func (h *IdleHandler) renderBusinessContext(ctx context.Context) (string, error) {
	business, err := h.directory.Business(ctx)
	if err != nil {
		return "", err
	}
	services, err := h.directory.Services(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\nAddress: %s\n\nServices Offered:\n", business.Name, business.Address)
	for _, s := range services {
		fmt.Fprintf(&b, "- %s (%s): KES %s, %d mins\n", s.Name, s.CategoryName, s.Price.StringFixed(2), s.DurationMinutes)
	}
	return b.String(), nil
}

func servicesIn(services []catalog.Service, categoryID uuid.UUID) []catalog.Service {
	var out []catalog.Service
	for _, s := range services {
		if s.CategoryID == categoryID {
			out = append(out, s)
		}
	}
	return out
}

func writePriceLines(b *strings.Builder, services []catalog.Service) {
	for _, s := range services {
		fmt.Fprintf(b, "• %s: KES %s (%d mins)\n", s.Name, formatPrice(s.Price), s.DurationMinutes)
	}
}

func formatPrice(p decimal.Decimal) string {
	return catalog.FormatAmount("", p)
}
