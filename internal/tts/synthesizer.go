package tts

import (
	"context"
	"log/slog"
	"time"

	"github.com/apresai/sheetvoice/internal/audio"
)

// Synthesizer turns one text into PCM with a fixed voice and style, retrying
// transient provider failures.
type Synthesizer struct {
	provider Provider
	voice    string
	style    string
	retry    RetryPolicy
}

func NewSynthesizer(p Provider, voice, style string, retry RetryPolicy) *Synthesizer {
	return &Synthesizer{provider: p, voice: voice, style: style, retry: retry}
}

// Synthesize returns raw PCM for text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var pcm []byte
	start := time.Now()
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		data, err := s.provider.Synthesize(ctx, Request{Text: text, Voice: s.voice, Style: s.style})
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return &ResponseShapeError{Provider: s.provider.Name(), Field: "audio"}
		}
		pcm = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "synthesized", "provider", s.provider.Name(), "chars", len([]rune(text)),
		"pcm_bytes", len(pcm), "elapsed", time.Since(start).Round(time.Millisecond))
	return pcm, nil
}

// SynthesizeAndSave synthesizes text and writes it to path as WAV.
func (s *Synthesizer) SynthesizeAndSave(ctx context.Context, text, path string) error {
	pcm, err := s.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	return audio.WriteWAV(path, pcm)
}
