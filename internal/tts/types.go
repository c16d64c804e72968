package tts

import "context"

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	SessionID string
	Text      string
	Voice     string
	Lang      string
}

// SynthChunk contains PCM data.
type SynthChunk struct {
	SessionID  string
	Voice      string
	Sequence   int
	SampleRate int
	Channels   int
	PCM        []byte
	Final      bool
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error)
}

// Sink receives synthesized audio in sequence order.
type Sink interface {
	Write(ctx context.Context, chunk SynthChunk) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, chunk SynthChunk) error

func (f SinkFunc) Write(ctx context.Context, chunk SynthChunk) error { return f(ctx, chunk) }
