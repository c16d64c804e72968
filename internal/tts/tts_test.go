package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/loqa-interpret/internal/bus"
	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/natsserver"
	"github.com/loqalabs/loqa-interpret/internal/protocol"
)

type scriptedSynth struct {
	chunks []SynthChunk
	err    error
}

func (s scriptedSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, len(s.chunks))
	errs := make(chan error, 1)
	for _, c := range s.chunks {
		c.SessionID = req.SessionID
		chunks <- c
	}
	if s.err != nil {
		errs <- s.err
	}
	close(chunks)
	close(errs)
	return chunks, errs
}

func TestPlayRenumbersAndForwards(t *testing.T) {
	synth := scriptedSynth{chunks: []SynthChunk{{Sequence: 7, PCM: []byte{1}}, {Sequence: 9, PCM: []byte{2}, Final: true}}}
	var got []SynthChunk
	err := Play(context.Background(), synth, SynthRequest{SessionID: "s1", Text: "hola"}, SinkFunc(func(ctx context.Context, c SynthChunk) error {
		got = append(got, c)
		return nil
	}))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if len(got) != 2 || got[0].Sequence != 0 || got[1].Sequence != 1 || !got[1].Final || got[0].SessionID != "s1" {
		t.Fatalf("unexpected chunks %+v", got)
	}
}

func TestPlayReportsSynthError(t *testing.T) {
	boom := errors.New("boom")
	err := Play(context.Background(), scriptedSynth{err: boom}, SynthRequest{}, SinkFunc(func(context.Context, SynthChunk) error { return nil }))
	if !errors.Is(err, boom) {
		t.Fatalf("expected synth error, got %v", err)
	}
}

func TestMockSynth(t *testing.T) {
	var got []SynthChunk
	err := Play(context.Background(), NewMockSynth(16000, 1), SynthRequest{SessionID: "s", Voice: "es-ES"}, SinkFunc(func(ctx context.Context, c SynthChunk) error {
		got = append(got, c)
		return nil
	}))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if len(got) != 1 || !got[0].Final || got[0].SampleRate != 16000 || got[0].Voice != "es-ES" {
		t.Fatalf("unexpected mock output %+v", got)
	}
}

func TestNewRejectsUnknownMode(t *testing.T) {
	if _, err := New(config.SpeechConfig{Mode: "theremin"}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := New(config.SpeechConfig{Mode: "exec"}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestBusSinkPublishes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, logger)
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	defer srv.Shutdown()
	client, err := bus.Connect(context.Background(), config.BusConfig{Servers: []string{srv.ClientURL()}, ConnectTimeout: 2000}, logger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	sub, err := client.Conn().SubscribeSync("tts.audio.s42")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sink := NewBusSink(client)
	if err := sink.Write(context.Background(), SynthChunk{SessionID: "s42", PCM: []byte{1, 2}, Final: true, SampleRate: 22050, Channels: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}
	var chunk protocol.AudioChunk
	if err := json.Unmarshal(msg.Data, &chunk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if chunk.SessionID != "s42" || !chunk.Final || len(chunk.PCM) != 2 {
		t.Fatalf("unexpected chunk %+v", chunk)
	}
}
