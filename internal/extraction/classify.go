package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Check priorities, in the order lines are tested
const (
	priorityEmail = iota + 1
	priorityPhone
	priorityPosition
	priorityCompany
	priorityName
	priorityAddress
)

const (
	confidencePattern  = 1.0
	confidenceKeyword  = 0.9
	confidenceFallback = 0.6
	confidenceAddress  = 0.5
)

const (
	minPhoneDigits     = 10
	maxPhoneDigits     = 11
	maxNameRunes       = 20
	maxLooseNameRunes  = 10
	minLooseCompanyLen = 3
)

var (
	emailPattern    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern    = regexp.MustCompile(`\d{2,3}[-\s]?\d{3,4}[-\s]?\d{4}`)
	sanitizePattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[가-힣]{2,4}$`),
		regexp.MustCompile(`^[A-Za-z]{2,20}$`),
		regexp.MustCompile(`^[A-Za-z]+\s[A-Za-z]+$`),
		regexp.MustCompile(`^[가-힣]+\s[가-힣]+$`),
	}
)

var (
	// phoneExclusions are matched against the lowercased line
	phoneExclusions = []string{"번길", "동", "층", "센터", "www", "http"}

	titleKeywords = []string{"센터장", "부장", "과장", "대리", "사원", "팀장", "연구원", "엔지니어", "CEO", "CTO", "CFO", "COO"}
	titleWords    = []string{"manager", "director", "team lead", "researcher", "engineer"}

	companyKeywords = []string{"연구원", "주식회사", "(주)", "Corp", "Inc", "Ltd", "기술", "전자", "KETI", "한국", "시스템", "소프트웨어", "IT", "컴퓨터"}
	companyWords    = []string{"electronics", "technology", "systems", "software"}

	webExclusions  = []string{"번길", "동", "층", "센터", "www", "http", "co.kr", "com", "kr", "re.kr", "gmail"}
	nameExclusions = []string{
		"번길", "동", "층", "센터", "www", "http", "co.kr", "com", "kr", "re.kr", "gmail",
		"연구원", "기술", "전자", "한국", "센터장", "부장", "과장", "대리", "사원",
	}

	addressWords = []string{"번길", "동", "층", "센터", "로", "길", "구", "시", "도"}
)

// LineLabel is the provisional classification of one OCR line
type LineLabel struct {
	Line       int     `json:"line"`
	Text       string  `json:"text"`
	Field      Field   `json:"field"`
	Value      string  `json:"value"`
	Rule       string  `json:"rule"`
	Priority   int     `json:"priority"`
	Confidence float64 `json:"confidence"`
	Accepted   bool    `json:"accepted"`
}

// Classify decides which field, if any, a single line belongs to.
// It looks at nothing but the line itself; whether the field is still
// empty is the aggregator's concern.
func Classify(line string) (LineLabel, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return LineLabel{}, false
	}
	lower := strings.ToLower(line)

	// Anything that looks like an address is only ever an email candidate
	if strings.Contains(line, "@") && strings.Contains(line, ".") {
		return classifyEmail(line)
	}

	if containsDigit(line) {
		if label, ok := classifyPhone(line, lower); ok {
			return label, true
		}
		return classifyAddress(line)
	}

	if label, ok := classifyPosition(line, lower); ok {
		return label, true
	}
	// An opened company check is final, even when it rejects the line
	if companyGate(line, lower) {
		return classifyCompany(line, lower)
	}
	if label, ok := classifyName(line, lower); ok {
		return label, true
	}
	return classifyAddress(line)
}

func classifyEmail(line string) (LineLabel, bool) {
	match := emailPattern.FindString(line)
	if match == "" {
		return LineLabel{}, false
	}
	return newLabel(line, FieldEmail, match, "email-pattern", priorityEmail, confidencePattern), true
}

func classifyPhone(line, lower string) (LineLabel, bool) {
	if match := phonePattern.FindString(line); match != "" {
		clean := stripOCRArtifacts(match)
		if countDigits(clean) >= minPhoneDigits {
			return newLabel(line, FieldPhone, clean, "phone-pattern", priorityPhone, confidencePattern), true
		}
		return LineLabel{}, false
	}

	digits := countDigits(line)
	if digits < minPhoneDigits || digits > maxPhoneDigits || containsAny(lower, phoneExclusions) {
		return LineLabel{}, false
	}
	return newLabel(line, FieldPhone, stripOCRArtifacts(line), "phone-digits", priorityPhone, confidenceFallback), true
}

func classifyPosition(line, lower string) (LineLabel, bool) {
	if containsAny(line, titleKeywords) || containsAny(lower, titleWords) {
		return newLabel(line, FieldPosition, line, "title-keyword", priorityPosition, confidenceKeyword), true
	}
	return LineLabel{}, false
}

// companyGate reports whether a line is handed to the company check.
// Hangul has no case, so a company pattern alone opens it.
func companyGate(line, lower string) bool {
	if utf8.RuneCountInString(line) < 2 {
		return false
	}
	return hasUpper(line) || isCompanyPatterned(line, lower)
}

func isCompanyPatterned(line, lower string) bool {
	return containsAny(line, companyKeywords) || containsAny(lower, companyWords)
}

func classifyCompany(line, lower string) (LineLabel, bool) {
	patterned := isCompanyPatterned(line, lower)
	loose := !containsAny(lower, webExclusions) && utf8.RuneCountInString(line) >= minLooseCompanyLen
	if !patterned && !loose {
		return LineLabel{}, false
	}

	clean := sanitize(line)
	if utf8.RuneCountInString(clean) < 2 {
		return LineLabel{}, false
	}
	if patterned {
		return newLabel(line, FieldCompany, clean, "company-pattern", priorityCompany, confidencePattern), true
	}
	return newLabel(line, FieldCompany, clean, "company-fallback", priorityCompany, confidenceFallback), true
}

func classifyName(line, lower string) (LineLabel, bool) {
	n := utf8.RuneCountInString(line)
	if n < 2 || n > maxNameRunes {
		return LineLabel{}, false
	}

	shaped := false
	for _, p := range namePatterns {
		if p.MatchString(line) {
			shaped = true
			break
		}
	}
	loose := !containsAny(lower, nameExclusions) && n <= maxLooseNameRunes
	if !shaped && !loose {
		return LineLabel{}, false
	}

	clean := sanitize(line)
	if utf8.RuneCountInString(clean) < 2 {
		return LineLabel{}, false
	}
	if shaped {
		return newLabel(line, FieldName, clean, "name-shape", priorityName, confidencePattern), true
	}
	return newLabel(line, FieldName, clean, "name-fallback", priorityName, confidenceFallback), true
}

func classifyAddress(line string) (LineLabel, bool) {
	if containsAny(line, addressWords) {
		return newLabel(line, FieldAddress, line, "address-word", priorityAddress, confidenceAddress), true
	}
	return LineLabel{}, false
}

func newLabel(line string, field Field, value, rule string, priority int, confidence float64) LineLabel {
	return LineLabel{
		Text:       line,
		Field:      field,
		Value:      value,
		Rule:       rule,
		Priority:   priority,
		Confidence: confidence,
	}
}

// stripOCRArtifacts removes the underscore noise Tesseract leaves around
// phone numbers ("M_010..." for a mobile icon)
func stripOCRArtifacts(s string) string {
	s = strings.ReplaceAll(s, "M_", "")
	return strings.ReplaceAll(s, "_", "")
}

func sanitize(s string) string {
	return strings.TrimSpace(sanitizePattern.ReplaceAllString(s, ""))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
