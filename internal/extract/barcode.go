package extract

import (
	"strings"
	"unicode"
)

// IsLikelyBarcode reports whether text looks like the number printed under a
// voucher barcode. Such text is never a date or a product name.
//
// Text qualifies when it holds only digits and whitespace and either has
// 8-16 digits in total or is made of at least two groups of exactly four
// digits ("7698 8656 3188").
func IsLikelyBarcode(text string) bool {
	digits := 0
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	if digits == 0 {
		return false
	}

	if digits >= 8 && digits <= 16 {
		return true
	}

	groups := strings.Fields(text)
	if len(groups) < 2 {
		return false
	}
	for _, g := range groups {
		if len([]rune(g)) != 4 {
			return false
		}
	}
	return true
}
