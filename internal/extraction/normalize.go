package extraction

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxNameLength = 10

var sectorKeywords = []string{"연구원", "연구소", "기술", "전자", "주식회사"}
var sectorWords = []string{"institute", "technology", "electronics"}

// Correction records one change made by Normalize
type Correction struct {
	Rule  string `json:"rule"`
	From  Field  `json:"from"`
	To    Field  `json:"to"`
	Value string `json:"value"`
}

// Normalize applies the post-scan corrections to a record in place and
// returns what it changed. Rules run once, in a fixed order.
func Normalize(r *Record) []Correction {
	var out []Correction

	// Company names often pass the name checks before the company line is seen
	if r.Has(FieldName) && !r.Has(FieldCompany) && looksLikeOrganization(r.Name) {
		out = append(out, moveNameToCompany(r, "name-sector-keyword"))
	}

	if r.Has(FieldName) && !r.Has(FieldCompany) && utf8.RuneCountInString(r.Name) > maxNameLength {
		out = append(out, moveNameToCompany(r, "name-too-long"))
	}

	if !r.Has(FieldName) && r.Has(FieldEmail) {
		local, _, _ := strings.Cut(r.Email, "@")
		if utf8.RuneCountInString(local) >= 2 {
			r.Name = local
			out = append(out, Correction{Rule: "name-from-email", From: FieldEmail, To: FieldName, Value: local})
		}
	}

	if r.Has(FieldPhone) {
		if formatted, ok := FormatPhone(r.Phone); ok && formatted != r.Phone {
			r.Phone = formatted
			out = append(out, Correction{Rule: "phone-format", From: FieldPhone, To: FieldPhone, Value: formatted})
		}
	}

	return out
}

// FormatPhone reformats an 11-digit number as XXX-XXXX-XXXX. Any other digit
// count is reported as not formattable and left for the caller to keep as-is.
func FormatPhone(phone string) (string, bool) {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) != 11 {
		return phone, false
	}
	return string(digits[:3]) + "-" + string(digits[3:7]) + "-" + string(digits[7:]), true
}

func looksLikeOrganization(name string) bool {
	return containsAny(name, sectorKeywords) || containsAny(strings.ToLower(name), sectorWords)
}

func moveNameToCompany(r *Record, rule string) Correction {
	c := Correction{Rule: rule, From: FieldName, To: FieldCompany, Value: r.Name}
	r.Company = r.Name
	r.Name = NotFound
	return c
}
