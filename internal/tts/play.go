package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/loqalabs/loqa-interpret/internal/config"
)

// Play synthesizes req and writes every chunk to sink, renumbering sequences
// from zero. It returns once the synthesizer has finished.
func Play(ctx context.Context, synth Synthesizer, req SynthRequest, sink Sink) error {
	chunks, errs := synth.Synthesize(ctx, req)
	sequence := 0
	var synthErr error
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			chunk.Sequence = sequence
			sequence++
			if err := sink.Write(ctx, chunk); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}
		case err, ok := <-errs:
			if ok && err != nil {
				synthErr = errors.Join(synthErr, err)
			}
			if !ok {
				errs = nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return synthErr
}

// New builds the synthesizer selected by cfg.Mode.
func New(cfg config.SpeechConfig) (Synthesizer, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockSynth(cfg.SampleRate, cfg.Channels), nil
	case "exec":
		return NewExecSynth(cfg.Command, cfg.SampleRate, cfg.Channels)
	default:
		return nil, fmt.Errorf("unknown speech mode %q", cfg.Mode)
	}
}
