// Package fingerprint derives the opaque visitor identifier used to
// de-duplicate page views. It is a best-effort heuristic, not an identity.
package fingerprint

import (
	"strconv"
	"strings"
)

// Traits are the device characteristics a browser exposes.
type Traits struct {
	ScreenWidth  int
	ScreenHeight int
	ColorDepth   int
	Timezone     string
	Language     string
	Platform     string
	CPUCores     int
	// DeviceMemory is in GiB; zero means the browser does not expose it.
	DeviceMemory float64
	Touch        bool
}

// Canonical joins the traits in a fixed order.
func (t Traits) Canonical() string {
	parts := []string{
		strconv.Itoa(t.ScreenWidth) + "x" + strconv.Itoa(t.ScreenHeight),
		strconv.Itoa(t.ColorDepth),
		t.Timezone,
		t.Language,
		t.Platform,
		strconv.Itoa(t.CPUCores),
		"",
		strconv.FormatBool(t.Touch),
	}
	if t.DeviceMemory > 0 {
		parts[6] = strconv.FormatFloat(t.DeviceMemory, 'f', -1, 64)
	}
	return strings.Join(parts, "|")
}

// Compute hashes the canonical traits and renders the result in base 36.
func Compute(t Traits) string {
	return Hash(t.Canonical())
}

// Hash is the 31-multiplier string hash over UTF-16 code units, folded to a
// signed 32-bit value, rendered as the base-36 magnitude.
func Hash(s string) string {
	var h int32
	for _, r := range s {
		if r >= 0x10000 {
			hi, lo := surrogates(r)
			h = h*31 + int32(hi)
			h = h*31 + int32(lo)
			continue
		}
		h = h*31 + int32(r)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}

func surrogates(r rune) (rune, rune) {
	r -= 0x10000
	return 0xd800 + (r>>10)&0x3ff, 0xdc00 + r&0x3ff
}
