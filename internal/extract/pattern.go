package extract

import (
	"regexp"
	"strings"
)

var (
	rePureYMD      = regexp.MustCompile(`^\d{4}\s*[.\-/년]\s*\d{1,2}\s*[.\-/월]\s*\d{1,2}\s*[.일]?$`)
	rePureMDY      = regexp.MustCompile(`^\d{1,2}\s*[.\-/월]\s*\d{1,2}\s*[.\-/일]\s*\d{4}\s*[.년]?$`)
	rePureYMDUntil = regexp.MustCompile(`^\d{4}\s*[.\-/년]\s*\d{1,2}\s*[.\-/월]\s*\d{1,2}\s*[.일]?\s*까지$`)

	pureDatePatterns = []*regexp.Regexp{rePureYMD, rePureMDY, rePureYMDUntil}
)

// ContainsPureDatePattern reports whether text, as a whole, is a date rather
// than a fragment that merely contains date-like digits. A fragment carrying
// all of the 년/월/일 markers with a number in front of each also counts.
func ContainsPureDatePattern(text string) bool {
	s := strings.TrimSpace(strings.ReplaceAll(text, "~", ""))
	if s == "" {
		return false
	}

	if strings.Contains(s, "년") && strings.Contains(s, "월") && strings.Contains(s, "일") &&
		reYearPart.MatchString(s) && reMonthPart.MatchString(s) && reDayPart.MatchString(s) {
		return true
	}

	for _, re := range pureDatePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
