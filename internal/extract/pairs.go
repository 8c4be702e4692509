package extract

import (
	"regexp"
	"strings"
)

// FieldLabel is a field name printed on a voucher next to its value.
type FieldLabel string

const (
	LabelExpirationPeriod FieldLabel = "유효기간"
	LabelExpiryDate       FieldLabel = "만료일"
	LabelUsableUntil      FieldLabel = "사용기한"
	LabelExchangeLocation FieldLabel = "교환처"
	LabelOrderNumber      FieldLabel = "주문번호"
	LabelPaymentAmount    FieldLabel = "결제금액"
	LabelProductName      FieldLabel = "상품명"
)

// FieldLabels is the closed set of labels FindLabelValuePairs looks for.
var FieldLabels = []FieldLabel{
	LabelExpirationPeriod,
	LabelExpiryDate,
	LabelUsableUntil,
	LabelExchangeLocation,
	LabelOrderNumber,
	LabelPaymentAmount,
	LabelProductName,
}

// dateLabels hold an expiration date, in order of preference.
var dateLabels = []FieldLabel{LabelExpirationPeriod, LabelExpiryDate, LabelUsableUntil}

// reColumnSep splits table-like lines where columns are separated by a tab or
// a run of two or more spaces.
var reColumnSep = regexp.MustCompile(`\t+|[ \t]{2,}`)

// Pairs maps a label to the value found next to it.
type Pairs map[FieldLabel]string

// Get returns the trimmed value for label, or "" when it was not found.
func (p Pairs) Get(label FieldLabel) string {
	return strings.TrimSpace(p[label])
}

// FindLabelValuePairs scans OCR fragments for known labels and pairs each one
// with a nearby value. Fragments may contain newlines; every line is
// considered separately. Strategies run in order and never overwrite a label
// an earlier strategy already resolved:
//
//  1. "label: value" on one line
//  2. "label value" on one line, split on column gaps or spaces
//  3. a bare label line followed by its value on the next line
//  4. date labels laid out as a table: the first line that is a pure date
//  5. no date label at all: a "...까지" date line, else any pure date line,
//     stored under LabelExpirationPeriod
func FindLabelValuePairs(texts []string) Pairs {
	lines := splitLines(texts)
	pairs := make(Pairs)
	seen := make(map[FieldLabel][]int)

	for i, raw := range lines {
		for _, label := range FieldLabels {
			if strings.Contains(raw, string(label)) {
				seen[label] = append(seen[label], i)
			}
		}
	}

	// 1. colon form
	for _, label := range FieldLabels {
		for _, i := range seen[label] {
			if v, ok := colonValue(lines[i], label); ok {
				pairs[label] = v
				break
			}
		}
	}

	// 2. same-line whitespace form, 3. next-line form
	for _, label := range FieldLabels {
		if _, ok := pairs[label]; ok {
			continue
		}
		for _, i := range seen[label] {
			if v, ok := inlineValue(lines[i], label); ok {
				pairs[label] = v
				break
			}
			if !isBareLabel(lines[i], label) {
				continue
			}
			if v, ok := nextLineValue(lines, i); ok {
				pairs[label] = v
				break
			}
		}
	}

	// 4. vertical separation
	for _, label := range dateLabels {
		if _, ok := pairs[label]; ok || len(seen[label]) == 0 {
			continue
		}
		if v, ok := firstLine(lines, ContainsPureDatePattern); ok {
			pairs[label] = v
		}
	}

	// 5. label-less expiry
	if !hasAny(pairs, dateLabels) {
		v, ok := firstLine(lines, func(s string) bool {
			return strings.Contains(s, untilSuffix) && ContainsPureDatePattern(s)
		})
		if !ok {
			v, ok = firstLine(lines, ContainsPureDatePattern)
		}
		if ok {
			pairs[LabelExpirationPeriod] = v
		}
	}

	return pairs
}

func splitLines(texts []string) []string {
	var lines []string
	for _, t := range texts {
		for _, l := range strings.Split(t, "\n") {
			l = strings.TrimRight(l, "\r")
			if strings.TrimSpace(l) == "" {
				continue
			}
			lines = append(lines, l)
		}
	}
	return lines
}

// colonValue handles "label: value" and "label : value".
func colonValue(line string, label FieldLabel) (string, bool) {
	idx := strings.Index(line, string(label))
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimLeft(line[idx+len(label):], " \t")
	var found bool
	for _, colon := range []string{":", "："} {
		if strings.HasPrefix(rest, colon) {
			rest = rest[len(colon):]
			found = true
			break
		}
	}
	if !found {
		return "", false
	}
	v := strings.TrimSpace(rest)
	return v, v != ""
}

// inlineValue handles a line that starts with the label and carries its
// value after whitespace. Column-separated lines ("유효기간\t2025.01.29\t...")
// yield the second column; otherwise the rest of the line is the value.
func inlineValue(line string, label FieldLabel) (string, bool) {
	trimmed := strings.TrimSpace(line)
	fields := strings.Fields(trimmed)
	if len(fields) < 2 || fields[0] != string(label) {
		return "", false
	}

	var cols []string
	for _, c := range reColumnSep.Split(trimmed, -1) {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) >= 2 && cols[0] == string(label) {
		return cols[1], true
	}

	v := strings.TrimSpace(strings.TrimPrefix(trimmed, string(label)))
	return v, v != ""
}

func isBareLabel(line string, label FieldLabel) bool {
	s := strings.TrimSpace(line)
	s = strings.TrimSpace(strings.TrimRight(s, ":："))
	return s == string(label)
}

func nextLineValue(lines []string, i int) (string, bool) {
	if i+1 >= len(lines) {
		return "", false
	}
	next := strings.TrimSpace(lines[i+1])
	if next == "" || startsWithLabel(next) {
		return "", false
	}
	return next, true
}

func startsWithLabel(s string) bool {
	for _, label := range FieldLabels {
		if strings.HasPrefix(s, string(label)) {
			return true
		}
	}
	return false
}

func firstLine(lines []string, match func(string) bool) (string, bool) {
	for _, l := range lines {
		if s := strings.TrimSpace(l); match(s) {
			return s, true
		}
	}
	return "", false
}

func hasAny(p Pairs, labels []FieldLabel) bool {
	for _, l := range labels {
		if p.Get(l) != "" {
			return true
		}
	}
	return false
}
