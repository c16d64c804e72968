package speech

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/tts"
)

func TestSelectVoice(t *testing.T) {
	voices := []Voice{
		{Name: "Samantha", Lang: "en-US", Default: true},
		{Name: "Monica", Lang: "ES-es"},
		{Name: "Paulina", Lang: "es-MX"},
	}
	cases := []struct {
		lang string
		want string
	}{
		{"es", "Monica"},
		{"ES", "Monica"},
		{"es-mx", "Paulina"},
		{"ur", "Samantha"},
		{"", "Samantha"},
	}
	for _, tc := range cases {
		if got := SelectVoice(voices, tc.lang); got.Name != tc.want {
			t.Errorf("SelectVoice(%q) = %q, want %q", tc.lang, got.Name, tc.want)
		}
	}
	if got := SelectVoice(nil, "es"); got.Name != "" {
		t.Fatalf("expected zero voice, got %+v", got)
	}
}

func TestVoicesFromConfig(t *testing.T) {
	voices := VoicesFromConfig([]config.VoiceConfig{{Name: "a", Lang: "fr-FR", Default: true}})
	if len(voices) != 1 || voices[0].Name != "a" || !voices[0].Default {
		t.Fatalf("unexpected voices %+v", voices)
	}
}

type capture struct {
	mu     sync.Mutex
	chunks []tts.SynthChunk
	done   chan struct{}
}

func (c *capture) Write(ctx context.Context, chunk tts.SynthChunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, chunk)
	if chunk.Final {
		close(c.done)
	}
	return nil
}

func TestSpeakerPlaysWithSelectedVoice(t *testing.T) {
	sink := &capture{done: make(chan struct{})}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sp := NewSpeaker(context.Background(), tts.NewMockSynth(22050, 1), sink, []Voice{{Name: "Monica", Lang: "es-ES"}}, logger)
	defer sp.Close()

	sp.Speak("s1", "", "es")
	sp.Speak("s1", "el paciente tiene fiebre", "es")

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not finish")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.chunks) != 1 || sink.chunks[0].Voice != "Monica" || sink.chunks[0].SessionID != "s1" {
		t.Fatalf("unexpected chunks %+v", sink.chunks)
	}
}

func TestSpeakAfterCloseIsNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sp := NewSpeaker(context.Background(), tts.NewMockSynth(22050, 1), tts.SinkFunc(func(context.Context, tts.SynthChunk) error {
		t.Error("sink should not be called after close")
		return nil
	}), nil, logger)
	sp.Close()
	sp.Speak("s1", "hola", "es")
	var nilSpeaker *Speaker
	nilSpeaker.Speak("s1", "hola", "es")
	nilSpeaker.Close()
}
