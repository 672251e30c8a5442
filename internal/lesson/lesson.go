// Package lesson generates vocabulary lessons and answers tutor chat
// messages on top of an [llm.Provider].
//
// A Generator owns the persona and the prompt shapes; the provider only
// sees plain completion requests. Lesson answers are decoded leniently
// (fences stripped, malformed JSON repaired) because models rarely return
// perfectly formed JSON on the first try.
package lesson

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/joytutor/internal/jsonx"
	"github.com/MrWong99/joytutor/pkg/provider/llm"
)

// WordCount is the number of vocabulary words a generated lesson asks for.
const WordCount = 10

// Word is one vocabulary item.
type Word struct {
	Word          string `json:"word"`
	Pronunciation string `json:"pronunciation"`
	Meaning       string `json:"meaning"`
	Example       string `json:"example"`
	MemoryTip     string `json:"memoryTip"`
}

// FillInBlank is a cloze exercise; the blank is written as "___".
type FillInBlank struct {
	Sentence string   `json:"sentence"`
	Answer   string   `json:"answer"`
	Options  []string `json:"options"`
}

// Dialogue is a short reading passage with one comprehension question.
type Dialogue struct {
	Text     string   `json:"text"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// Lesson is a generated lesson.
type Lesson struct {
	Topic        string        `json:"topic"`
	Words        []Word        `json:"words"`
	FillInBlanks []FillInBlank `json:"fillInBlanks"`
	Dialogue     Dialogue      `json:"dialogue"`
}

// ErrEmptyLesson is returned when the model answers with a lesson that has
// no words.
var ErrEmptyLesson = errors.New("lesson: generated lesson has no words")

// Option is a functional option for Generator.
type Option func(*Generator)

// WithSystemInstruction replaces the default persona.
func WithSystemInstruction(s string) Option {
	return func(g *Generator) { g.system = s }
}

// WithRoadmap replaces the default topic roadmap used for chat context.
func WithRoadmap(r []Topic) Option {
	return func(g *Generator) { g.roadmap = r }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// Generator builds lessons and chat replies.
type Generator struct {
	llm     llm.Provider
	system  string
	roadmap []Topic
	log     *slog.Logger
}

// NewGenerator creates a Generator backed by p.
func NewGenerator(p llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		llm:     p,
		system:  SystemInstruction,
		roadmap: Roadmap,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate asks the model for a lesson on topic for the given grade.
func (g *Generator) Generate(ctx context.Context, topic, grade string) (*Lesson, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("lesson: topic must not be empty")
	}
	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: g.system,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: lessonPrompt(topic, grade)}},
		JSON:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("lesson: generate %q: %w", topic, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("lesson: generate %q: empty response", topic)
	}

	l, err := ParseLesson(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("lesson: generate %q: %w", topic, err)
	}
	if l.Topic == "" {
		l.Topic = topic
	}
	g.log.Debug("lesson generated", "topic", l.Topic, "grade", grade, "words", len(l.Words))
	return l, nil
}

// ParseLesson decodes a model answer into a Lesson.
func ParseLesson(raw string) (*Lesson, error) {
	var l Lesson
	if err := jsonx.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("decode lesson: %w", err)
	}
	if len(l.Words) == 0 {
		return nil, ErrEmptyLesson
	}
	return &l, nil
}

func lessonPrompt(topic, grade string) string {
	return fmt.Sprintf(`Dạy cho học sinh lớp %s chủ đề: %s.
Hãy soạn bài học dưới dạng JSON với cấu trúc sau:
{
  "topic": "Tên chủ đề",
  "words": [
    {
      "word": "từ tiếng Anh",
      "pronunciation": "phiên âm",
      "meaning": "nghĩa tiếng Việt",
      "example": "câu ví dụ dễ hiểu",
      "memoryTip": "mẹo ghi nhớ vui nhộn/dễ nhớ"
    }
  ],
  "fillInBlanks": [
    {
      "sentence": "câu có chỗ trống (dùng ___)",
      "answer": "đáp án đúng",
      "options": ["đáp án đúng", "sai 1", "sai 2"]
    }
  ],
  "dialogue": {
    "text": "đoạn hội thoại ngắn chứa các từ đã học",
    "question": "câu hỏi về nội dung hội thoại",
    "options": ["đáp án đúng", "sai 1", "sai 2"],
    "answer": "đáp án đúng"
  }
}
Yêu cầu: %d từ vựng. Nội dung cực kỳ vui vẻ, phù hợp trẻ em. Chỉ trả về JSON.`, grade, topic, WordCount)
}
