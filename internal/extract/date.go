package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// defaultExpirationDays is how far past the scan time an undetected
// expiration date is placed.
const defaultExpirationDays = 30

// plausibleYears bounds accepted dates to now ± this many years.
const plausibleYears = 5

// dateLayouts are tried in order against a cleaned fragment. Numeric month
// and day verbs accept both "1" and "01".
var dateLayouts = []string{
	"2006년 1월 2일",
	"2006년1월2일",
	"2006. 1. 2.",
	"2006. 1. 2",
	"2006.1.2",
	"2006-1-2",
	"2006/1/2",
	"06년 1월 2일",
	"06년1월2일",
	"06.1.2",
	"06-1-2",
	"06/1/2",
	"1.2.2006",
	"1-2-2006",
	"1/2/2006",
	"1월 2일 2006년",
	"1월2일2006년",
}

var (
	// year-month-day shapes, e.g. "2025.01.29", "2025년 1월 29일", "25-1-29"
	reDateYMD = regexp.MustCompile(`\d{2,4}\s*[.\-/년]\s*\d{1,2}\s*[.\-/월]\s*\d{1,2}\s*일?`)
	// month-day-year shapes, e.g. "01.29.2025", "1월 29일 2025년"
	reDateMDY = regexp.MustCompile(`\d{1,2}\s*[.\-/월]\s*\d{1,2}\s*[.\-/일]?\s*\d{4}\s*년?`)

	reYearPart      = regexp.MustCompile(`(\d{2,4})\s*년`)
	reYearPartPlain = regexp.MustCompile(`\d{4}`)
	reMonthPart     = regexp.MustCompile(`(\d{1,2})\s*월`)
	reDayPart       = regexp.MustCompile(`(\d{1,2})\s*일`)

	// "2025 . 01 . 29" -> "2025.01.29"
	reSpacedSep = regexp.MustCompile(`\s*([.\-/])\s*`)

	dateShapes = []*regexp.Regexp{reDateYMD, reDateMDY}
)

// untilSuffix is the Korean "until" particle that trails most expiry dates.
const untilSuffix = "까지"

// dateKeywords introduce an expiry date inside a longer fragment.
var dateKeywords = []string{"유효기간", "만료일", "사용기한", "유효날짜", untilSuffix}

// DefaultExpirationDate is the expiration assumed when none can be read off
// a voucher: 30 days after now.
func DefaultExpirationDate(now time.Time) time.Time {
	return now.AddDate(0, 0, defaultExpirationDays)
}

// IsDefaultExpirationDate reports whether t falls on the same calendar day as
// DefaultExpirationDate(now).
func IsDefaultExpirationDate(t, now time.Time) bool {
	return sameDay(t, DefaultExpirationDate(now))
}

// DateParser reads calendar dates out of free-form OCR fragments. All dates
// are interpreted in the location of now and must lie within five years of
// it.
type DateParser struct {
	now time.Time
}

// NewDateParser returns a DateParser anchored at now.
func NewDateParser(now time.Time) *DateParser {
	return &DateParser{now: now}
}

// ExtractDate returns the date contained in text. When checkBarcode is set and
// text looks like a barcode it returns false. Otherwise it always returns a
// date, falling back to DefaultExpirationDate; compare the result with
// IsDefaultExpirationDate to tell a miss from a real date.
func (p *DateParser) ExtractDate(text string, checkBarcode bool) (time.Time, bool) {
	if checkBarcode && IsLikelyBarcode(text) {
		return time.Time{}, false
	}
	if d, ok := p.parse(text); ok {
		return d, true
	}
	return DefaultExpirationDate(p.now), true
}

// ParseDate is ExtractDate without the default: it reports false for barcode
// text and for text with no recognizable date.
func (p *DateParser) ParseDate(text string) (time.Time, bool) {
	if IsLikelyBarcode(text) {
		return time.Time{}, false
	}
	return p.parse(text)
}

func (p *DateParser) parse(text string) (time.Time, bool) {
	// In a validity range ("2025.01.01 ~ 2025.03.31") the end date is the
	// expiry.
	text = strings.ReplaceAll(text, "～", "~")
	if i := strings.LastIndex(text, "~"); i >= 0 {
		if d, ok := p.parse(text[i+len("~"):]); ok {
			return d, true
		}
	}

	cleaned := cleanDateText(text)
	if cleaned == "" {
		return time.Time{}, false
	}

	if d, ok := p.parseLayouts(cleaned); ok {
		return d, true
	}

	var matches []string
	for _, re := range dateShapes {
		for _, m := range re.FindAllString(cleaned, -1) {
			m = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m), untilSuffix))
			if d, ok := p.parseLayouts(m); ok {
				return d, true
			}
			if n := reSpacedSep.ReplaceAllString(m, "$1"); n != m {
				if d, ok := p.parseLayouts(n); ok {
					return d, true
				}
			}
			matches = append(matches, m)
		}
	}

	for _, m := range matches {
		if d, ok := p.parseComponents(m); ok {
			return d, true
		}
	}

	for _, kw := range dateKeywords {
		_, after, found := strings.Cut(cleaned, kw)
		if !found {
			continue
		}
		if d, ok := p.parse(after); ok {
			return d, true
		}
	}

	if strings.Contains(cleaned, untilSuffix) {
		stripped := strings.TrimSpace(strings.TrimSuffix(cleaned, untilSuffix))
		if d, ok := p.parseLayouts(stripped); ok {
			return d, true
		}
	}

	return time.Time{}, false
}

func (p *DateParser) parseLayouts(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		d, err := time.ParseInLocation(layout, s, p.now.Location())
		if err != nil {
			continue
		}
		if p.plausible(d) {
			return d, true
		}
	}
	return time.Time{}, false
}

// parseComponents picks year, month and day out of s independently, for
// fragments like "2025 년 01 월 29 일" that no layout accepts.
func (p *DateParser) parseComponents(s string) (time.Time, bool) {
	var year int
	if m := reYearPart.FindStringSubmatch(s); m != nil {
		year, _ = strconv.Atoi(m[1])
	} else if m := reYearPartPlain.FindString(s); m != "" {
		year, _ = strconv.Atoi(m)
	}
	if year == 0 {
		return time.Time{}, false
	}
	if year < 100 {
		year += 2000
	}

	mm := reMonthPart.FindStringSubmatch(s)
	dm := reDayPart.FindStringSubmatch(s)
	if mm == nil || dm == nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(mm[1])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dm[1])
	if err != nil || day < 1 {
		return time.Time{}, false
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, p.now.Location())
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject it instead.
	if d.Day() != day || d.Month() != time.Month(month) {
		return time.Time{}, false
	}
	if !p.plausible(d) {
		return time.Time{}, false
	}
	return d, true
}

func (p *DateParser) plausible(d time.Time) bool {
	today := truncateDay(p.now)
	lo := today.AddDate(-plausibleYears, 0, 0)
	hi := today.AddDate(plausibleYears, 0, 0)
	day := truncateDay(d.In(p.now.Location()))
	return !day.Before(lo) && !day.After(hi)
}

func cleanDateText(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "~", ""))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
