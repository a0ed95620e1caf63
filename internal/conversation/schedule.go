package conversation

import (
	"fmt"
	"strings"
	"time"
)

// Token prefixes for interactive date/time rows. The prefix routes the
// next inbound message inside the datetime handler.
const (
	datePrefix = "date_"
	timePrefix = "time_"
)

// DaySlot is one selectable calendar day.
type DaySlot struct {
	Date    string // ISO, e.g. "2026-08-30"
	Display string // "Sunday, August 30"
	DayName string // "Sunday"
	IsToday bool
}

// TimeSlot is one selectable appointment time.
type TimeSlot struct {
	Time    string // "14:00"
	Display string // "2:00 PM"
}

// NextDays returns the next count calendar days starting today, in loc.
func NextDays(now time.Time, count int, loc *time.Location) []DaySlot {
	if loc == nil {
		loc = time.UTC
	}
	today := now.In(loc)
	days := make([]DaySlot, 0, count)
	for i := 0; i < count; i++ {
		d := today.AddDate(0, 0, i)
		days = append(days, DaySlot{
			Date:    d.Format("2006-01-02"),
			Display: formatDayDisplay(d),
			DayName: d.Weekday().String(),
			IsToday: i == 0,
		})
	}
	return days
}

// HourlySlots returns hourly appointment times from startHour through
// endHour inclusive.
func HourlySlots(startHour, endHour int) []TimeSlot {
	slots := make([]TimeSlot, 0, endHour-startHour+1)
	for hour := startHour; hour <= endHour; hour++ {
		t := time.Date(2000, 1, 1, hour, 0, 0, 0, time.UTC)
		slots = append(slots, TimeSlot{
			Time:    t.Format("15:04"),
			Display: formatClockDisplay(t),
		})
	}
	return slots
}

// FormatDateTimeDisplay renders a combined human-readable date and time,
// e.g. "Monday, August 31 at 2:00 PM". Unparseable input falls back to the
// raw values rather than failing the flow.
func FormatDateTimeDisplay(dateStr, timeStr string) string {
	d, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return dateStr + " at " + timeStr
	}
	t, err := time.Parse("15:04", timeStr)
	if err != nil {
		return formatDayDisplay(d) + " at " + timeStr
	}
	return formatDayDisplay(d) + " at " + formatClockDisplay(t)
}

func formatDayDisplay(d time.Time) string {
	return fmt.Sprintf("%s, %s %d", d.Weekday(), d.Month(), d.Day())
}

func formatClockDisplay(t time.Time) string {
	return t.Format("3:04 PM")
}

// DateToken and TimeToken build the opaque row ids for date/time lists.
func DateToken(dateStr string) string { return datePrefix + dateStr }
func TimeToken(timeStr string) string { return timePrefix + timeStr }

// ParseDateToken extracts the ISO date from a date row id.
func ParseDateToken(token string) (string, bool) {
	rest, ok := strings.CutPrefix(token, datePrefix)
	if !ok || rest == "" {
		return "", false
	}
	if _, err := time.Parse("2006-01-02", rest); err != nil {
		return "", false
	}
	return rest, true
}

// ParseTimeToken extracts the HH:MM time from a time row id.
func ParseTimeToken(token string) (string, bool) {
	rest, ok := strings.CutPrefix(token, timePrefix)
	if !ok || rest == "" {
		return "", false
	}
	if _, err := time.Parse("15:04", rest); err != nil {
		return "", false
	}
	return rest, true
}
