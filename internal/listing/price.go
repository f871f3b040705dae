package listing

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount parses a human formatted price such as "€ 1.234,56" or
// "350.000". Everything except ASCII digits, '.' and ',' is dropped, then
// separators are disambiguated:
//
//   - both '.' and ',' present: '.' groups thousands, ',' is the decimal mark
//   - more than one '.' (no ','): every '.' groups thousands
//   - more than one ',' (no '.'): every ',' groups thousands
//   - a single separator followed by exactly three digits groups thousands
//   - a single ',' otherwise is the decimal mark
//
// It reports false when nothing numeric remains.
func ParseAmount(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	dots := strings.Count(cleaned, ".")
	commas := strings.Count(cleaned, ",")

	switch {
	case dots > 0 && commas > 0:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case dots > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	case commas > 1:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case dots == 1:
		if groupsThousands(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	case commas == 1:
		if groupsThousands(cleaned, ",") {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	}

	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func groupsThousands(s, sep string) bool {
	head, tail, ok := strings.Cut(s, sep)
	if !ok {
		return false
	}
	return head != "" && head != "0" && len(tail) == 3
}

func amountOf(v Value) (float64, bool) {
	if f, ok := v.Number(); ok {
		return f, true
	}
	if s, ok := v.raw.(string); ok {
		return ParseAmount(s)
	}
	return 0, false
}

func sanitizePrice(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
