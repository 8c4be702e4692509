// Package extract turns the text fragments recognized on a gifticon image
// into a brand, a product name and an expiration date.
//
// Extraction is pure: the same fragments and the same now always give the
// same Result, and every field falls back to a fixed default instead of
// failing.
package extract

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// minProductNameLen is the shortest fragment, in characters, considered as a
// product name.
const minProductNameLen = 4

// reBracketed matches "[브랜드] 상품명" style fragments.
var reBracketed = regexp.MustCompile(`^\[([^\[\]]+)\]\s*(.+)$`)

// Extractor infers voucher fields from OCR fragments.
type Extractor struct {
	brands []Brand
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithBrands replaces the brand keyword list.
func WithBrands(brands []Brand) Option {
	return func(e *Extractor) {
		e.brands = brands
	}
}

// NewExtractor creates an Extractor using DefaultBrands unless overridden.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{brands: DefaultBrands}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = NewExtractor()

// ExtractInformation runs the default Extractor over texts.
func ExtractInformation(texts []string, now time.Time) Result {
	return defaultExtractor.Extract(texts, now)
}

// scan is the working state of one Extract call. A fragment is consumed once
// a step has used it, so later steps (product name above all) skip it.
type scan struct {
	texts    []string
	consumed []bool
	pairs    Pairs
	dates    *DateParser
	now      time.Time
}

func (s *scan) consume(i int) {
	s.consumed[i] = true
}

// consumeContaining consumes the first unconsumed fragment containing v.
func (s *scan) consumeContaining(v string) {
	for i, t := range s.texts {
		if !s.consumed[i] && strings.Contains(t, v) {
			s.consume(i)
			return
		}
	}
}

// Extract reads brand, product name and expiration date out of texts, which
// are OCR fragments in recognition order. now anchors the date plausibility
// window and the 30-day default.
func (e *Extractor) Extract(texts []string, now time.Time) Result {
	s := &scan{
		texts:    make([]string, len(texts)),
		consumed: make([]bool, len(texts)),
		pairs:    FindLabelValuePairs(texts),
		dates:    NewDateParser(now),
		now:      now,
	}
	for i, t := range texts {
		s.texts[i] = strings.TrimSpace(t)
	}

	res := NewResult(now)
	res.Brand = e.extractBrand(s)
	if d, ok := extractExpirationDate(s); ok {
		res.ExpirationDate = d
	}
	res.ProductName, res.Brand = extractProductName(s, res.Brand)
	res.applyDefaults()
	return res
}

func (e *Extractor) extractBrand(s *scan) string {
	if v := s.pairs.Get(LabelExchangeLocation); v != "" {
		return v
	}
	for i, t := range s.texts {
		if t == "" || IsLikelyBarcode(t) {
			continue
		}
		for _, b := range e.brands {
			if b.match(t) {
				s.consume(i)
				return b.Name
			}
		}
	}
	return ""
}

func extractExpirationDate(s *scan) (time.Time, bool) {
	for _, label := range dateLabels {
		v := s.pairs.Get(label)
		if v == "" {
			continue
		}
		if d, ok := s.dates.ExtractDate(v, true); ok && !IsDefaultExpirationDate(d, s.now) {
			s.consumeContaining(v)
			return d, true
		}
	}

	dateLike := func(t string) bool {
		return strings.Contains(t, untilSuffix) || ContainsPureDatePattern(t)
	}
	if d, ok := scanDates(s, dateLike); ok {
		return d, true
	}
	return scanDates(s, func(string) bool { return true })
}

// scanDates returns the first real date among unconsumed fragments accepted
// by filter. A result equal to the 30-day default counts as a miss.
func scanDates(s *scan, filter func(string) bool) (time.Time, bool) {
	for i, t := range s.texts {
		if s.consumed[i] || t == "" || !filter(t) {
			continue
		}
		d, ok := s.dates.ExtractDate(t, true)
		if !ok || IsDefaultExpirationDate(d, s.now) {
			continue
		}
		s.consume(i)
		return d, true
	}
	return time.Time{}, false
}

// extractProductName returns the product name and the brand, which a
// "[brand] product" fragment may fill in when it is still unknown.
func extractProductName(s *scan, brand string) (string, string) {
	if v := s.pairs.Get(LabelProductName); v != "" {
		return v, brand
	}

	for _, line := range splitLines(s.texts) {
		m := reBracketed.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[2])
		if name == "" {
			continue
		}
		if brand == "" {
			brand = strings.TrimSpace(m[1])
		}
		return name, brand
	}

	best, bestLen := "", 0
	lowerBrand := strings.ToLower(brand)
	for i, t := range s.texts {
		if s.consumed[i] {
			continue
		}
		n := utf8.RuneCountInString(t)
		if n < minProductNameLen || n <= bestLen {
			continue
		}
		if isLabelOnly(t) || ContainsPureDatePattern(t) || IsLikelyBarcode(t) ||
			strings.Contains(t, string(LabelExchangeLocation)) ||
			strings.Contains(t, string(LabelOrderNumber)) {
			continue
		}
		if lowerBrand != "" && strings.Contains(strings.ToLower(t), lowerBrand) {
			continue
		}
		best, bestLen = t, n
	}
	return best, brand
}

// isLabelOnly reports whether t is nothing but a field label, as on vouchers
// that print the value on the following line.
func isLabelOnly(t string) bool {
	for _, label := range FieldLabels {
		if isBareLabel(t, label) {
			return true
		}
	}
	return false
}
