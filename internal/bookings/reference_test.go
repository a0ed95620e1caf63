package bookings

import (
	"regexp"
	"testing"
	"time"
)

func TestNewReferenceFormat(t *testing.T) {
	now := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	ref := NewReference(now)
	if ok, _ := regexp.MatchString(`^GLW-20260830-[A-Z0-9]{4}$`, ref); !ok {
		t.Fatalf("unexpected reference format: %q", ref)
	}
}

func TestNewReferenceUsesUTCDate(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*3600)
	// 01:30 local is still the previous day in UTC.
	now := time.Date(2026, 8, 31, 1, 30, 0, 0, nairobi)
	ref := NewReference(now)
	if got := ref[4:12]; got != "20260830" {
		t.Fatalf("expected UTC date 20260830, got %s", got)
	}
}
