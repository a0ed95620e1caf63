package bookings

import (
	"crypto/rand"
	"math/big"
	"time"
)

const referenceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReference generates a customer-facing booking reference such as
// "GLW-20260830-7K2Q". The random suffix keeps same-day references unique
// without leaking booking volume.
func NewReference(now time.Time) string {
	suffix := make([]byte, 4)
	max := big.NewInt(int64(len(referenceCharset)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken;
			// fall back to a fixed character rather than aborting a booking.
			suffix[i] = referenceCharset[0]
			continue
		}
		suffix[i] = referenceCharset[n.Int64()]
	}
	return "GLW-" + now.UTC().Format("20060102") + "-" + string(suffix)
}
