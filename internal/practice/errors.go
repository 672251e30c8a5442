package practice

import (
	"errors"
	"fmt"

	"github.com/MrWong99/joytutor/pkg/audio"
)

// ErrSessionActive is returned by [Controller.Start] while another target
// is being practised.
var ErrSessionActive = errors.New("practice: another attempt is in progress")

// ErrEmptyResponse is wrapped in a [TransportError] when the evaluator
// answers with blank text.
var ErrEmptyResponse = errors.New("practice: evaluator returned an empty response")

// PermissionError reports that no microphone stream could be acquired.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("practice: microphone unavailable: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// EncodingUnsupportedError reports that none of the offered encodings can
// encode the stream.
type EncodingUnsupportedError struct {
	Offered []string
	Format  audio.Format
	Err     error
}

func (e *EncodingUnsupportedError) Error() string {
	return fmt.Sprintf("practice: no encoding among %v supports %s: %v", e.Offered, e.Format, e.Err)
}

func (e *EncodingUnsupportedError) Unwrap() error { return e.Err }

// TransportError reports that the evaluator could not be reached or gave no
// answer. Malformed answers are not transport errors.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("practice: evaluation failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
