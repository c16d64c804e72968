package tts

import (
	"context"

	"github.com/loqalabs/loqa-interpret/internal/bus"
	"github.com/loqalabs/loqa-interpret/internal/protocol"
)

// BusSink publishes audio on tts.audio.<session>.
type BusSink struct {
	bus *bus.Client
}

func NewBusSink(busClient *bus.Client) *BusSink {
	return &BusSink{bus: busClient}
}

func (s *BusSink) Write(ctx context.Context, chunk SynthChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.bus.PublishJSON(protocol.Subject(protocol.SubjectTTSAudioPrefix, chunk.SessionID), protocol.AudioChunk{
		SessionID:  chunk.SessionID,
		Voice:      chunk.Voice,
		Sequence:   chunk.Sequence,
		SampleRate: chunk.SampleRate,
		Channels:   chunk.Channels,
		PCM:        chunk.PCM,
		Final:      chunk.Final,
	})
}
