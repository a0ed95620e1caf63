// Package phone normalizes customer phone numbers and answers carrier
// eligibility questions for the M-Pesa payment flow.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the fallback region for numbers supplied without a
// country prefix.
const DefaultRegion = "KE"

// ErrInvalidNumber is returned when the input cannot be parsed into a
// possible, valid phone number.
var ErrInvalidNumber = errors.New("phone: invalid phone number")

// Normalize parses the input and returns it in canonical E.164 form
// (e.g. "+254722123456"). Inputs without a country code are interpreted
// against DefaultRegion.
func Normalize(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	if cleaned == "" {
		return "", ErrInvalidNumber
	}

	parsed, err := phonenumbers.Parse(cleaned, "")
	if err != nil {
		parsed, err = phonenumbers.Parse(cleaned, DefaultRegion)
		if err != nil {
			return "", ErrInvalidNumber
		}
	}

	if !phonenumbers.IsPossibleNumber(parsed) {
		return "", ErrInvalidNumber
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", ErrInvalidNumber
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// IsSafaricom reports whether the number is on the Safaricom network and
// therefore reachable by an M-Pesa STK push. Unparseable input is simply
// not eligible, never an error.
func IsSafaricom(number string) bool {
	parsed, err := phonenumbers.Parse(number, DefaultRegion)
	if err != nil {
		return false
	}
	carrier, err := phonenumbers.GetCarrierForNumber(parsed, "en")
	if err != nil {
		return false
	}
	return strings.EqualFold(carrier, "Safaricom")
}

// KenyaVerifier bundles the package functions behind a value so callers
// can depend on an interface and substitute a stub in tests.
type KenyaVerifier struct{}

func (KenyaVerifier) Normalize(raw string) (string, error) { return Normalize(raw) }
func (KenyaVerifier) IsSafaricom(number string) bool       { return IsSafaricom(number) }
