package lesson

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/joytutor/pkg/provider/tts"
)

// preloadLimit bounds concurrent synthesis calls during Preload.
const preloadLimit = 4

// Preload synthesises every lesson word in parallel and returns the clips
// keyed by word. Words the provider returns no audio for are absent from
// the map. The first provider error aborts the remaining calls.
func Preload(ctx context.Context, p tts.Provider, l *Lesson, voice tts.VoiceProfile) (map[string]*tts.Speech, error) {
	clips := make([]*tts.Speech, len(l.Words))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(preloadLimit)
	for i, w := range l.Words {
		eg.Go(func() error {
			s, err := p.Synthesize(egCtx, w.Word, voice)
			if err != nil {
				return fmt.Errorf("lesson: preload %q: %w", w.Word, err)
			}
			clips[i] = s
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*tts.Speech, len(clips))
	for i, s := range clips {
		if s != nil {
			out[l.Words[i].Word] = s
		}
	}
	return out, nil
}
