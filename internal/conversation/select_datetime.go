package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/glowhaven/whatsapp-booking/pkg/logging"
)

// SelectDateTimeHandler routes by token prefix: date_* shows time slots,
// time_* completes the selection, anything else shows the date list.
type SelectDateTimeHandler struct {
	logger     *logging.Logger
	windowDays int
	startHour  int
	endHour    int
	location   *time.Location
	now        func() time.Time
}

func NewSelectDateTimeHandler(windowDays, startHour, endHour int, location *time.Location, logger *logging.Logger) *SelectDateTimeHandler {
	if windowDays <= 0 {
		windowDays = 7
	}
	if endHour <= startHour {
		startHour, endHour = 9, 18
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SelectDateTimeHandler{
		logger:     logger,
		windowDays: windowDays,
		startHour:  startHour,
		endHour:    endHour,
		location:   location,
		now:        time.Now,
	}
}

func (h *SelectDateTimeHandler) Handle(ctx context.Context, session *Session, messageContent string, customerName string) (Outcome, error) {
	if dateStr, ok := ParseDateToken(messageContent); ok {
		return h.showTimeSlots(dateStr), nil
	}

	if timeStr, ok := ParseTimeToken(messageContent); ok {
		selectedDate := session.Context.String(ctxSelectedDate)
		if selectedDate == "" {
			h.logger.Error("time selected but no date in context",
				"customer", session.CustomerPhone, "time", timeStr)
			return h.showDates("Something went wrong. Let's start over with the date."), nil
		}
		return h.confirmDateTime(selectedDate, timeStr, customerName), nil
	}

	return h.showDates(""), nil
}

func (h *SelectDateTimeHandler) showDates(errorLine string) Outcome {
	days := NextDays(h.now(), h.windowDays, h.location)

	rows := make([]ListRow, 0, len(days))
	for _, day := range days {
		title := day.Display
		if day.IsToday {
			title = "Today"
		}
		rows = append(rows, ListRow{
			ID:          DateToken(day.Date),
			Title:       title,
			Description: day.DayName + " - Available",
		})
	}

	body := "📅 When would you like to come in?\n\n"
	if errorLine != "" {
		body = "⚠️ " + errorLine + "\n\n" + body
	}
	body += "Select a date for your appointment:"

	out := ListOutcome(body, "Select Date", []ListSection{{Title: "Available Dates", Rows: rows}})
	out.Footer = "Choose any day in the next week"
	return out
}

func (h *SelectDateTimeHandler) showTimeSlots(dateStr string) Outcome {
	slots := HourlySlots(h.startHour, h.endHour)

	rows := make([]ListRow, 0, len(slots))
	for _, slot := range slots {
		rows = append(rows, ListRow{
			ID:          TimeToken(slot.Time),
			Title:       slot.Display,
			Description: "Available",
		})
	}

	dayDisplay := dateStr
	for _, day := range NextDays(h.now(), h.windowDays, h.location) {
		if day.Date == dateStr {
			dayDisplay = day.Display
			break
		}
	}

	body := fmt.Sprintf("🕐 What time works best for you on *%s*?\n\nSelect a time slot:", dayDisplay)
	out := ListOutcome(body, "Select Time", []ListSection{{Title: "Available Times", Rows: rows}})
	out.Footer = "All times are in your local timezone"
	return out.WithContext(Context{ctxSelectedDate: dateStr})
}

func (h *SelectDateTimeHandler) confirmDateTime(dateStr, timeStr, customerName string) Outcome {
	display := FormatDateTimeDisplay(dateStr, timeStr)

	greeting := "Excellent!"
	if customerName != "" {
		greeting = fmt.Sprintf("Excellent, %s!", customerName)
	}

	h.logger.Info("appointment slot selected", "date", dateStr, "time", timeStr)

	body := fmt.Sprintf("%s\n\n📅 *%s*\n\nLet me show you a summary of your booking for confirmation.", greeting, display)
	return TextOutcome(body).
		WithContext(Context{
			ctxSelectedTime:    timeStr,
			ctxDateTimeDisplay: display,
		}).
		WithTransition(StateConfirm)
}
