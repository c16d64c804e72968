package recognition

import (
	"context"
	"errors"
)

// Alternative is one candidate transcript for a result.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Result is one position of a recognition stream. Alternatives are ordered
// best first. Once a position is final it is never reported as non-final again.
type Result struct {
	Alternatives []Alternative `json:"alternatives"`
	IsFinal      bool          `json:"isFinal"`
}

// Transcript returns the best alternative, or "" when there is none.
func (r Result) Transcript() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Transcript
}

// Final is a convenience constructor for a single-alternative final result.
func Final(transcript string) Result {
	return Result{Alternatives: []Alternative{{Transcript: transcript, Confidence: 1}}, IsFinal: true}
}

// Interim is a convenience constructor for a single-alternative interim result.
func Interim(transcript string) Result {
	return Result{Alternatives: []Alternative{{Transcript: transcript}}}
}

// Event is delivered by a Stream. Exactly one of Results or ErrorCode is set.
// The end of a stream is signalled by closing the events channel.
type Event struct {
	Results   []Result `json:"results,omitempty"`
	ErrorCode string   `json:"error,omitempty"`
}

// Config is passed when a stream is opened.
type Config struct {
	Continuous      bool   `json:"continuous"`
	InterimResults  bool   `json:"interimResults"`
	Language        string `json:"language"`
	MaxAlternatives int    `json:"maxAlternatives,omitempty"`
}

// Stream is one open recognition stream. Events are delivered in the order the
// recognizer produced them; the channel is closed when the stream ends.
type Stream interface {
	Events() <-chan Event
	Close() error
}

// Recognizer opens recognition streams. Open may be called again after a
// stream ends to continue listening.
type Recognizer interface {
	Open(ctx context.Context, cfg Config) (Stream, error)
}

var (
	ErrExhausted = errors.New("recognizer has no more streams")
	ErrClosed    = errors.New("recognizer closed")
)
