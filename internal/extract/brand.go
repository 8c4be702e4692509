package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// Brand is a merchant with the spellings it shows up under on vouchers.
type Brand struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

// ParseBrands reads a JSON array of brands, e.g. a user-maintained list
// passed to WithBrands.
func ParseBrands(data []byte) ([]Brand, error) {
	var brands []Brand
	if err := json.Unmarshal(data, &brands); err != nil {
		return nil, fmt.Errorf("unmarshaling brands: %w", err)
	}
	for i, b := range brands {
		if strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("brand %d has no name", i)
		}
	}
	return brands, nil
}

// DefaultBrands are the merchants recognized out of the box.
var DefaultBrands = []Brand{
	{Name: "스타벅스", Aliases: []string{"Starbucks"}},
	{Name: "이디야", Aliases: []string{"EDIYA"}},
	{Name: "투썸플레이스", Aliases: []string{"투썸", "TWOSOME"}},
	{Name: "메가커피", Aliases: []string{"메가MGC", "MEGA COFFEE"}},
	{Name: "CU"},
	{Name: "GS25"},
	{Name: "세븐일레븐", Aliases: []string{"7-ELEVEN", "7-Eleven"}},
	{Name: "배스킨라빈스", Aliases: []string{"베스킨라빈스", "Baskin Robbins", "baskinrobbins"}},
	{Name: "파리바게뜨", Aliases: []string{"Paris Baguette"}},
	{Name: "던킨", Aliases: []string{"Dunkin"}},
	{Name: "버거킹", Aliases: []string{"Burger King"}},
	{Name: "맥도날드", Aliases: []string{"McDonald"}},
	{Name: "롯데리아", Aliases: []string{"Lotteria"}},
	{Name: "BBQ"},
	{Name: "BHC"},
	{Name: "교촌치킨", Aliases: []string{"교촌", "Kyochon"}},
	{Name: "올리브영", Aliases: []string{"Olive Young"}},
	{Name: "네이버페이", Aliases: []string{"Naver Pay", "NaverPay"}},
	{Name: "카카오페이", Aliases: []string{"Kakao Pay", "KakaoPay"}},
	{Name: "다이소", Aliases: []string{"Daiso"}},
}

// match reports whether text mentions the brand, case-insensitively.
func (b Brand) match(text string) bool {
	lower := strings.ToLower(text)
	if containsKeyword(lower, strings.ToLower(b.Name)) {
		return true
	}
	for _, a := range b.Aliases {
		if containsKeyword(lower, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

// containsKeyword is strings.Contains, except that short latin keywords such
// as "cu" must stand alone so "cup" or "discount" do not match.
func containsKeyword(text, kw string) bool {
	if kw == "" {
		return false
	}
	if len(kw) > 3 || !isLatin(kw) {
		return strings.Contains(text, kw)
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(kw)
		if !latinLetterBefore(text, idx) && !latinLetterAt(text, end) {
			return true
		}
		start = idx + 1
	}
}

func isLatin(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func latinLetterBefore(s string, i int) bool {
	return i > 0 && isASCIILetter(s[i-1])
}

func latinLetterAt(s string, i int) bool {
	return i < len(s) && isASCIILetter(s[i])
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
