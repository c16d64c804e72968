// Package speech plays translated text back through a synthesizer, choosing a
// voice that matches the target language.
package speech

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/tts"
)

// Voice is a synthesis voice and its declared language tag.
type Voice struct {
	Name    string
	Lang    string
	Default bool
}

// VoicesFromConfig converts the configured voice catalogue.
func VoicesFromConfig(cfg []config.VoiceConfig) []Voice {
	voices := make([]Voice, 0, len(cfg))
	for _, v := range cfg {
		voices = append(voices, Voice{Name: v.Name, Lang: v.Lang, Default: v.Default})
	}
	return voices
}

// SelectVoice returns the first voice whose language tag starts with lang,
// ignoring case. Without a match it returns the default voice, or the zero
// Voice when none is marked default.
func SelectVoice(voices []Voice, lang string) Voice {
	lang = strings.ToLower(lang)
	var fallback Voice
	for _, v := range voices {
		if lang != "" && strings.HasPrefix(strings.ToLower(v.Lang), lang) {
			return v
		}
		if v.Default && fallback.Name == "" {
			fallback = v
		}
	}
	return fallback
}

const playTimeout = 45 * time.Second

// Speaker plays text asynchronously. Speak never blocks on synthesis and
// never reports completion to the caller.
type Speaker struct {
	synth  tts.Synthesizer
	sink   tts.Sink
	voices []Voice
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewSpeaker(parent context.Context, synth tts.Synthesizer, sink tts.Sink, voices []Voice, logger *slog.Logger) *Speaker {
	ctx, cancel := context.WithCancel(parent)
	return &Speaker{
		synth:  synth,
		sink:   sink,
		voices: voices,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(slog.String("component", "speech")),
	}
}

// Speak starts playback of text in lang for sessionID. Empty text is ignored.
func (s *Speaker) Speak(sessionID, text, lang string) {
	s.SpeakTo(s.sink, sessionID, text, lang)
}

// SpeakTo is Speak with an explicit sink.
func (s *Speaker) SpeakTo(sink tts.Sink, sessionID, text, lang string) {
	if s == nil || text == "" || sink == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	voice := SelectVoice(s.voices, lang)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, playTimeout)
		defer cancel()
		err := tts.Play(ctx, s.synth, tts.SynthRequest{
			SessionID: sessionID,
			Text:      text,
			Voice:     voice.Name,
			Lang:      lang,
		}, sink)
		if err != nil {
			s.logger.Warn("speech playback failed",
				slog.String("session_id", sessionID),
				slog.String("voice", voice.Name),
				slog.String("error", err.Error()))
		}
	}()
}

// Close cancels playback in progress and waits for it to stop.
func (s *Speaker) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
