package practice

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/MrWong99/joytutor/internal/jsonx"
)

// Artifact is the encoded recording of one attempt.
type Artifact struct {
	Data     []byte
	MIMEType string
	Duration time.Duration
}

// Base64 returns Data in standard base64.
func (a Artifact) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// Result is the normalized verdict on an attempt.
type Result struct {
	// Accuracy is in [0, 100].
	Accuracy   int
	Feedback   string
	Fluency    string
	Suggestion string
	IsCorrect  bool

	// Fallback marks a result synthesized from a malformed answer.
	Fallback bool
}

// CorrectThreshold is the accuracy at or above which an attempt counts as
// correct when the evaluator does not say.
const CorrectThreshold = 80

const (
	fallbackAccuracy   = 70
	fallbackFluency    = "Con đọc khá trôi chảy!"
	fallbackSuggestion = "Con hãy luyện thêm vài lần nữa nhé!"
)

// positiveMarkers mark praise in a free-text answer.
var positiveMarkers = []string{"chính xác", "tuyệt vời", "giỏi lắm", "excellent", "perfect"}

// errNoAccuracy rejects JSON answers without an accuracy field.
var errNoAccuracy = errors.New("practice: evaluator answer has no accuracy")

// ParseResult decodes an evaluator answer. Markdown fences are ignored and
// slightly broken JSON is repaired. Accuracy is rounded and clamped to
// [0, 100]; a missing isCorrect is derived from [CorrectThreshold].
func ParseResult(raw string) (Result, error) {
	var fields map[string]any
	if err := jsonx.Unmarshal(raw, &fields); err != nil {
		return Result{}, fmt.Errorf("practice: parse evaluator answer: %w", err)
	}
	if fields == nil {
		return Result{}, errNoAccuracy
	}
	v, ok := fields["accuracy"]
	if !ok {
		return Result{}, errNoAccuracy
	}
	acc, err := number(v)
	if err != nil {
		return Result{}, fmt.Errorf("practice: parse accuracy: %w", err)
	}

	res := Result{
		Accuracy:   clampAccuracy(acc),
		Feedback:   text(fields["feedback"]),
		Fluency:    text(fields["fluency"]),
		Suggestion: text(fields["suggestion"]),
	}
	if b, ok := fields["isCorrect"].(bool); ok {
		res.IsCorrect = b
	} else {
		res.IsCorrect = res.Accuracy >= CorrectThreshold
	}
	return res, nil
}

// FallbackResult builds the deterministic result for an answer that could
// not be parsed. The raw text becomes the feedback and the attempt counts
// as correct only if the text praises the learner.
func FallbackResult(raw string) Result {
	folded := strings.ToLower(norm.NFC.String(raw))
	correct := false
	for _, m := range positiveMarkers {
		if strings.Contains(folded, m) {
			correct = true
			break
		}
	}
	return Result{
		Accuracy:   fallbackAccuracy,
		Feedback:   raw,
		Fluency:    fallbackFluency,
		Suggestion: fallbackSuggestion,
		IsCorrect:  correct,
		Fallback:   true,
	}
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"), 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func clampAccuracy(f float64) int {
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(f))))
}

func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
