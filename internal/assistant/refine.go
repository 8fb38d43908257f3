package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/zombor/card-assistant/internal/extraction"
)

// DuplicateThreshold is the Jaro-Winkler similarity at which two cards are
// considered the same person
const DuplicateThreshold = 0.85

const structurePrompt = `다음 명함 텍스트에서 정보를 추출하여 JSON 형식으로 반환하세요:

%s

다음 형식으로 반환하세요:
{
  "name": "이름",
  "position": "직책",
  "company": "회사명",
  "email": "이메일",
  "phone": "전화번호",
  "address": "주소"
}

정보가 없는 경우 null로 표시하세요. JSON 앞뒤에 다른 텍스트를 쓰지 마세요.`

// cardFields is the JSON shape the LLM is asked to return
type cardFields struct {
	Name     *string `json:"name"`
	Position *string `json:"position"`
	Company  *string `json:"company"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
}

// refineCard asks the LLM to restructure the OCR text and overrides any field
// it fills. Every failure keeps the rule-based result.
func (s *Service) refineCard(ctx context.Context, card *Card) {
	if strings.TrimSpace(card.RawText) == "" {
		return
	}

	text, err := s.responder.Generate(ctx, fmt.Sprintf(structurePrompt, card.RawText))
	if err != nil {
		slog.Warn("Card refinement unavailable, keeping rule result", "id", card.ID, "error", err)
		return
	}

	fields, err := parseCardJSON(text)
	if err != nil {
		slog.Warn("Could not parse refined card", "id", card.ID, "error", err)
		return
	}

	if applyFields(&card.Record, fields) {
		card.Source = SourceLLM
	}
}

// parseCardJSON pulls the first JSON object out of a model reply
func parseCardJSON(text string) (*cardFields, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")

	start := strings.Index(text, "{")
	if start == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var fields cardFields
	if err := json.Unmarshal([]byte(text[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	return &fields, nil
}

// applyFields copies every non-empty field onto the record and reports
// whether anything changed
func applyFields(r *extraction.Record, f *cardFields) bool {
	changed := false
	set := func(field extraction.Field, v *string) {
		if v == nil {
			return
		}
		value := strings.TrimSpace(*v)
		if value == "" || strings.EqualFold(value, "null") || value == extraction.NotFound {
			return
		}
		if field == extraction.FieldPhone {
			value, _ = extraction.FormatPhone(value)
		}
		if r.Get(field) != value {
			r.Set(field, value)
			changed = true
		}
	}

	set(extraction.FieldName, f.Name)
	set(extraction.FieldPosition, f.Position)
	set(extraction.FieldCompany, f.Company)
	set(extraction.FieldEmail, f.Email)
	set(extraction.FieldPhone, f.Phone)
	set(extraction.FieldAddress, f.Address)
	return changed
}

// findDuplicate returns the ID of the most similar existing card by name and
// company, or "" when none reaches DuplicateThreshold
func findDuplicate(card *Card, existing []*Card) string {
	key := duplicateKey(&card.Record)
	if key == "" {
		return ""
	}

	metric := metrics.NewJaroWinkler()
	best, bestID := 0.0, ""
	for _, other := range existing {
		if other.ID == card.ID {
			continue
		}
		otherKey := duplicateKey(&other.Record)
		if otherKey == "" {
			continue
		}
		if sim := strutil.Similarity(key, otherKey, metric); sim >= DuplicateThreshold && sim > best {
			best, bestID = sim, other.ID
		}
	}
	return bestID
}

func duplicateKey(r *extraction.Record) string {
	var parts []string
	if r.Has(extraction.FieldName) {
		parts = append(parts, r.Name)
	}
	if r.Has(extraction.FieldCompany) {
		parts = append(parts, r.Company)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
