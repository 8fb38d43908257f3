package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// QuestionMarker precedes the user's question on the last line of every
// prompt, so the offline responder can find it among the context.
const QuestionMarker = "Question: "

type cannedReply struct {
	keywords []string
	reply    string
}

// Order matters: the first entry with a matching keyword wins.
var cannedReplies = []cannedReply{
	{[]string{"안녕", "hello"}, "안녕하세요! AI 도우미입니다. 무엇을 도와드릴까요?"},
	{[]string{"이름", "your name"}, "제 이름은 AI 도우미입니다. 반갑습니다!"},
	{[]string{"도움", "help"}, "명함 OCR, PDF 분석, 일반 대화를 도와드릴 수 있습니다."},
	{[]string{"감사", "thank"}, "천만에요! 더 도움이 필요하시면 언제든 말씀해주세요."},
	{[]string{"날씨", "weather"}, "죄송합니다. 실시간 날씨 정보는 제공할 수 없습니다."},
	{[]string{"시간", "time"}, ""},
	{[]string{"계산", "calculate"}, "간단한 계산이 필요하시면 말씀해주세요."},
	{[]string{"추천", "recommend"}, "무엇을 추천해드릴까요? 영화, 음식, 책 등 말씀해주세요."},
	{[]string{"정보", "information"}, "어떤 정보를 찾고 계신가요?"},
	{[]string{"설명", "explain"}, "무엇을 설명해드릴까요?"},
	{[]string{"연락처", "contact"}, "연락처 정보를 찾으시는군요. 명함을 업로드해보세요!"},
	{[]string{"회사", "company"}, "회사 정보를 찾으시는군요. 명함을 업로드해보세요!"},
	{[]string{"직책", "position"}, "직책 정보를 찾으시는군요. 명함을 업로드해보세요!"},
	{[]string{"주소", "address"}, "주소 정보를 찾으시는군요. 명함을 업로드해보세요!"},
	{[]string{"이메일", "email"}, "이메일 정보를 찾으시는군요. 명함을 업로드해보세요!"},
	{[]string{"전화", "phone"}, "전화번호를 찾으시는군요. 명함을 업로드해보세요!"},
}

const offlineDefault = "네, 말씀해주세요. 명함 OCR, PDF 분석, 또는 일반적인 대화를 도와드릴 수 있습니다."

// Offline answers from a fixed keyword table without any network access
type Offline struct {
	now func() time.Time
}

// NewOffline creates the offline responder
func NewOffline() *Offline {
	return &Offline{now: time.Now}
}

func (o *Offline) Name() string { return "offline" }

func (o *Offline) Generate(ctx context.Context, prompt string, _ Params) (string, error) {
	question := strings.ToLower(QuestionFrom(prompt))
	for _, c := range cannedReplies {
		for _, k := range c.keywords {
			if !strings.Contains(question, k) {
				continue
			}
			if c.reply == "" {
				return o.currentTime(), nil
			}
			return c.reply, nil
		}
	}
	return offlineDefault, nil
}

func (o *Offline) currentTime() string {
	t := o.now()
	return fmt.Sprintf("현재 시간은 %d년 %02d월 %02d일 %02d시 %02d분입니다.", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute())
}

// QuestionFrom returns the text after the last QuestionMarker, or the whole
// prompt when there is none
func QuestionFrom(prompt string) string {
	i := strings.LastIndex(prompt, QuestionMarker)
	if i < 0 {
		return prompt
	}
	q := prompt[i+len(QuestionMarker):]
	q, _, _ = strings.Cut(q, "\n")
	return strings.TrimSpace(q)
}
