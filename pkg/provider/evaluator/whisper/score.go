package whisper

import (
	"math"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// phoneticBonus lifts a token pair whose Double Metaphone codes overlap, so
// "kat" heard for "cat" still scores as nearly right.
const phoneticBonus = 0.15

// wordScore is how well one expected token was heard.
type wordScore struct {
	expected string
	best     string
	score    float64
}

// tokenize lower-cases s and splits it into letter/digit runs.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// metaphoneCodes returns the non-empty Double Metaphone codes of a token.
func metaphoneCodes(token string) []string {
	p, s := matchr.DoubleMetaphone(token)
	var codes []string
	if p != "" {
		codes = append(codes, p)
	}
	if s != "" && s != p {
		codes = append(codes, s)
	}
	return codes
}

func codesOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// pairScore is the Jaro-Winkler similarity of two tokens, raised by
// phoneticBonus when they sound alike, capped at 1.
func pairScore(expected, heard string) float64 {
	if expected == heard {
		return 1
	}
	s := matchr.JaroWinkler(expected, heard, false)
	if codesOverlap(metaphoneCodes(expected), metaphoneCodes(heard)) {
		s += phoneticBonus
	}
	return math.Min(s, 1)
}

// score compares the transcript against the expected text token by token.
// It returns the accuracy in [0, 100] and the per-token breakdown in
// expected order.
func score(expected, transcript string) (int, []wordScore) {
	want := tokenize(expected)
	heard := tokenize(transcript)
	if len(want) == 0 || len(heard) == 0 {
		return 0, nil
	}

	words := make([]wordScore, len(want))
	var total float64
	for i, w := range want {
		ws := wordScore{expected: w}
		for _, h := range heard {
			if s := pairScore(w, h); s > ws.score {
				ws.score, ws.best = s, h
			}
		}
		words[i] = ws
		total += ws.score
	}

	avg := total / float64(len(want))
	// Extra words the learner added dilute the score a little.
	if extra := len(heard) - len(want); extra > 0 {
		avg *= float64(len(want)) / float64(len(want)+extra)
	}
	return int(math.Round(avg * 100)), words
}
