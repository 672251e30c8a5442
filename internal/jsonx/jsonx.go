// Package jsonx decodes JSON produced by language models, which is often
// wrapped in markdown fences or slightly malformed.
package jsonx

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// StripFences removes a surrounding markdown code fence (```json ... ```)
// and trims whitespace. Text without a fence is returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string ("json", "JSON", ...) on the opening line.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		if info := strings.TrimSpace(s[:i]); !strings.ContainsAny(info, "{[") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Unmarshal strips fences from data and decodes it into v. When strict
// decoding fails with a syntax error the text is passed once through
// jsonrepair and decoded again.
func Unmarshal(data string, v any) error {
	text := StripFences(data)
	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}
	var syntax *json.SyntaxError
	if !errors.As(err, &syntax) {
		return err
	}
	fixed, rerr := jsonrepair.JSONRepair(text)
	if rerr != nil {
		return errors.Join(err, rerr)
	}
	return json.Unmarshal([]byte(fixed), v)
}
