// Package scramble contains the pure text-processing core of scramblecast:
// locating the scramble clue inside a transcript, extracting hyphen-separated
// letter sequences, resolving them against a fixed candidate word list, and
// normalising decoded values into the canonical single-uppercase-token form.
//
// Everything in this package is deterministic and free of I/O, so the
// surrounding pipeline stages (analysis orchestrator, run executor) can be
// tested against it without fakes.
package scramble

import (
	"math"
	"strings"
	"unicode"
)

// Unknown is the canonical sentinel for "no confident answer". All decoded
// fields that cannot be resolved carry this value instead of being empty.
const Unknown = "UNKNOWN"

// ToSingleWordUpper collapses s to its first alphanumeric token, uppercased.
// Non-alphanumeric runes inside the token are stripped, so "t.n.t!" becomes
// "TNT". Returns "" when s contains no alphanumeric rune at all.
//
// The function is idempotent: applying it twice yields the same result.
func ToSingleWordUpper(s string) string {
	for _, field := range strings.Fields(s) {
		var b strings.Builder
		for _, r := range field {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			return strings.ToUpper(b.String())
		}
	}
	return ""
}

// ClampConfidence normalises a confidence value into [0, 1]. NaN and ±Inf
// collapse to 0 so a malformed remote response can never persist a value
// outside the documented range.
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
