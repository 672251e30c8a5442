package lesson

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/joytutor/pkg/provider/llm"
)

// ChatRequest is one learner message plus the conversation so far.
type ChatRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history,omitempty"`

	// Progress, when non-nil, is summarised into the system prompt so the
	// tutor can answer "what did I learn" questions.
	Progress []Progress `json:"progress,omitempty"`
}

// Chat answers a learner message in the tutor persona.
func (g *Generator) Chat(ctx context.Context, req ChatRequest) (string, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return "", errors.New("lesson: chat message must not be empty")
	}

	messages := make([]llm.Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: msg})

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: g.chatSystemPrompt(req.Progress),
		Messages:     messages,
	})
	if err != nil {
		return "", fmt.Errorf("lesson: chat: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", errors.New("lesson: chat: empty response")
	}
	return resp.Content, nil
}

func (g *Generator) chatSystemPrompt(progress []Progress) string {
	if progress == nil {
		return g.system
	}
	var (
		topics []string
		words  int
	)
	for _, p := range progress {
		topics = append(topics, p.Topic)
		words += p.WordsLearned
	}
	var next []string
	for _, t := range Upcoming(g.roadmap, progress, 3) {
		next = append(next, t.Name)
	}

	var sb strings.Builder
	sb.WriteString(g.system)
	sb.WriteString("\n\nTHÔNG TIN TIẾN ĐỘ HIỆN TẠI:\n")
	fmt.Fprintf(&sb, "- Các chủ đề đã học: %s\n", strings.Join(topics, ", "))
	fmt.Fprintf(&sb, "- Tổng số từ đã học: %d\n", words)
	fmt.Fprintf(&sb, "- Lộ trình sắp tới: %s\n", strings.Join(next, ", "))
	return sb.String()
}
