package assistant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zombor/card-assistant/internal/extraction"
	"github.com/zombor/card-assistant/internal/llm"
)

const maxContextExcerpt = 200

// ErrEmptyQuestion is returned when Ask is called without a question
var ErrEmptyQuestion = errors.New("question is required")

// AskRequest selects what the question is about. CardID takes precedence
// over DocumentIDs; with neither the question is plain chat.
type AskRequest struct {
	Question    string   `json:"question"`
	CardID      string   `json:"card_id,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// Quality is a heuristic 0-100 score of an answer
type Quality struct {
	Score  float64  `json:"score"`
	Level  string   `json:"level"`
	Issues []string `json:"issues,omitempty"`
}

// Ask builds context for the question, asks the provider chain and logs the
// exchange. Provider failures still produce an entry carrying the failure text.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*ConversationEntry, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	category := CategoryChat
	var contextText string
	switch {
	case req.CardID != "":
		card, err := s.db.GetCard(req.CardID)
		if err != nil {
			return nil, fmt.Errorf("getting card: %w", err)
		}
		category = CategoryCard
		contextText = cardContext(card)
	case len(req.DocumentIDs) > 0:
		var chunks []string
		for _, id := range req.DocumentIDs {
			doc, err := s.db.GetDocument(id)
			if err != nil {
				return nil, fmt.Errorf("getting document: %w", err)
			}
			chunks = append(chunks, doc.Chunks...)
		}
		category = CategoryDocument
		contextText = selectContext(question, chunks)
	}

	reply := s.responder.Respond(ctx, buildPrompt(question, contextText))

	entry := &ConversationEntry{
		ID:        s.idGenerator.Generate(),
		Question:  question,
		Answer:    reply.Text,
		Provider:  reply.Provider,
		Category:  category,
		Context:   excerpt(contextText, maxContextExcerpt),
		Quality:   scoreAnswer(reply.Text, question),
		Timestamp: s.timeSource.Now(),
	}

	if err := s.db.AppendConversation(entry); err != nil {
		return nil, fmt.Errorf("saving conversation: %w", err)
	}
	return entry, nil
}

// Conversations returns the log, newest first
func (s *Service) Conversations() ([]*ConversationEntry, error) {
	entries, err := s.db.ListConversations()
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// ClearConversations empties the log
func (s *Service) ClearConversations() error {
	if err := s.db.ClearConversations(); err != nil {
		return fmt.Errorf("clearing conversations: %w", err)
	}
	return nil
}

func buildPrompt(question, contextText string) string {
	if contextText == "" {
		return llm.QuestionMarker + question
	}
	return "다음 정보를 참고하여 질문에 답변하세요.\n\n참고 정보:\n" + contextText +
		"\n\n" + llm.QuestionMarker + question + "\n\n답변:"
}

func cardContext(c *Card) string {
	var b strings.Builder
	for _, row := range []struct {
		label string
		field extraction.Field
	}{
		{"이름", extraction.FieldName},
		{"회사", extraction.FieldCompany},
		{"직책", extraction.FieldPosition},
		{"전화", extraction.FieldPhone},
		{"이메일", extraction.FieldEmail},
		{"주소", extraction.FieldAddress},
	} {
		if c.Has(row.field) {
			fmt.Fprintf(&b, "%s: %s\n", row.label, c.Get(row.field))
		}
	}
	if raw := strings.TrimSpace(c.RawText); raw != "" {
		b.WriteString("\n명함 원문:\n")
		b.WriteString(raw)
	}
	return strings.TrimSpace(b.String())
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

const (
	minAnswerRunes  = 10
	goodScore       = 80.0
	acceptableScore = 60.0
)

var (
	specificWords  = []string{"예시", "구체적으로", "예를 들어", "첫째", "둘째", "셋째", "또한", "그러나", "따라서"}
	uncertainWords = []string{"모르겠습니다", "확실하지 않습니다", "추측", "아마도", "어쩌면"}
	wordPattern    = regexp.MustCompile(`[\p{L}\p{N}_]+`)
)

// scoreAnswer rates length, specificity, certainty and overlap with the
// question, 25 points each
func scoreAnswer(answer, question string) Quality {
	answer = strings.TrimSpace(answer)
	if utf8.RuneCountInString(answer) < minAnswerRunes {
		return Quality{Score: 0, Level: "bad", Issues: []string{"답변이 너무 짧습니다"}}
	}

	length := math.Min(float64(utf8.RuneCountInString(answer))/100, 25)

	specific := 0
	for _, w := range specificWords {
		if strings.Contains(answer, w) {
			specific++
		}
	}
	specificity := math.Min(float64(specific*5), 25)

	uncertain := 0
	for _, w := range uncertainWords {
		if strings.Contains(answer, w) {
			uncertain++
		}
	}
	certainty := math.Max(0, float64(25-uncertain*5))

	qWords := wordSet(wordPattern.FindAllString(strings.ToLower(question), -1))
	aWords := wordSet(wordPattern.FindAllString(strings.ToLower(answer), -1))
	shared := 0
	for w := range qWords {
		if _, ok := aWords[w]; ok {
			shared++
		}
	}
	keywords := math.Min(float64(shared*3), 25)

	var issues []string
	if length < 10 {
		issues = append(issues, "답변이 너무 짧습니다")
	}
	if specificity < 10 {
		issues = append(issues, "구체적인 예시가 부족합니다")
	}
	if certainty < 15 {
		issues = append(issues, "불확실한 표현이 많습니다")
	}
	if keywords < 10 {
		issues = append(issues, "질문과 관련성이 낮습니다")
	}

	score := math.Round((length+specificity+certainty+keywords)*10) / 10
	level := "bad"
	switch {
	case score >= goodScore:
		level = "good"
	case score >= acceptableScore:
		level = "medium"
	}
	return Quality{Score: score, Level: level, Issues: issues}
}
