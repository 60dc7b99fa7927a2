package domain

import (
	"regexp"
	"strconv"
)

var (
	nonPriceCharsRegex = regexp.MustCompile(`[^\d.]`)
	leadingNumberRegex = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)
)

// ParsePrice extracts the numeric value from a display price such as "EGP 1,200.50".
// Everything except digits and dots is stripped and the leading number is parsed, so
// "1.200.5" yields 1.2. The second return value is false when nothing could be parsed.
func ParsePrice(raw string) (float64, bool) {
	stripped := nonPriceCharsRegex.ReplaceAllString(raw, "")
	match := leadingNumberRegex.FindString(stripped)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// NumericPrice is ParsePrice with unparsable values mapped to 0
func NumericPrice(raw string) float64 {
	value, _ := ParsePrice(raw)
	return value
}
