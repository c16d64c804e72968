// Package session coordinates live interpretation: it folds recognition
// events into a display string, debounces it into translation requests and
// owns the translated text.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/loqalabs/loqa-interpret/internal/audit"
	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/debounce"
	"github.com/loqalabs/loqa-interpret/internal/recognition"
	"github.com/loqalabs/loqa-interpret/internal/transcript"
	"github.com/loqalabs/loqa-interpret/internal/translate"
)

var (
	ErrAlreadyListening = errors.New("session already listening")
	ErrStartFailed      = errors.New("failed to start recognition")
	ErrClosed           = errors.New("session closed")
)

// User-facing notices.
const (
	NoticeStartFailed       = "Failed to start microphone. Please try again."
	NoticeRestartsExhausted = "Speech recognition stopped after repeated restarts. Please start again."
	NoticeTranslationFailed = "Translation failed"
	NoticeRateLimited       = "Too many translation requests. Please wait a moment."
	NoticeInvalidRequest    = "Translation request rejected. Check the selected languages."
)

// Speaker plays translated text; it must not block.
type Speaker interface {
	Speak(sessionID, text, lang string)
}

// Auditor records lifecycle metadata. *audit.Store implements it.
type Auditor interface {
	BeginSession(ctx context.Context, sessionID, sourceLang, targetLang, mode string) error
	Record(ctx context.Context, e audit.Entry) error
}

// Deps are the collaborators of a Session. Recognizer and Translator are
// required.
type Deps struct {
	Recognizer recognition.Recognizer
	Translator translate.Translator
	Speaker    Speaker
	Audit      Auditor
	Listener   Listener
	// ClientKey is the rate-limit key for translations; defaults to the session id.
	ClientKey string
	Logger    *slog.Logger
}

// StartOptions select the languages and fold mode of a listening run. Empty
// languages keep the current selection.
type StartOptions struct {
	SourceLang string
	TargetLang string
	Mode       transcript.Mode
}

// Session is the top-level coordinator for one interpretation session.
type Session struct {
	id         string
	cfg        config.SessionConfig
	recognizer recognition.Recognizer
	translator translate.Translator
	speaker    Speaker
	audit      Auditor
	listener   Listener
	clientKey  string
	logger     *slog.Logger
	dispatcher *debounce.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      State
	starting   bool
	closed     bool
	gen        uint64
	runCancel  context.CancelFunc
	rec        *transcript.Reconciler
	settled    string
	translated string
	sourceLang string
	targetLang string
	restarting bool
}

func New(parent context.Context, id string, cfg config.SessionConfig, deps Deps) *Session {
	initMetrics()
	ctx, cancel := context.WithCancel(parent)
	mode, err := transcript.ParseMode(cfg.DefaultMode)
	if err != nil {
		mode = transcript.Accumulating
	}
	s := &Session{
		id:         id,
		cfg:        cfg,
		recognizer: deps.Recognizer,
		translator: deps.Translator,
		speaker:    deps.Speaker,
		audit:      deps.Audit,
		listener:   deps.Listener,
		clientKey:  deps.ClientKey,
		ctx:        ctx,
		cancel:     cancel,
		rec:        transcript.NewReconciler(mode),
		sourceLang: cfg.SourceLang,
		targetLang: cfg.TargetLang,
	}
	if s.listener == nil {
		s.listener = NopListener{}
	}
	if s.clientKey == "" {
		s.clientKey = id
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s.logger = logger.With(slog.String("component", "session"), slog.String("session_id", id))
	s.dispatcher = debounce.New(time.Duration(cfg.DebounceMS)*time.Millisecond, s.dispatch)
	return s
}

func (s *Session) ID() string { return s.id }

// Start clears the display and translated text and opens a recognition
// stream. If the stream cannot be opened the session stays Idle and a notice
// is emitted.
func (s *Session) Start(opts StartOptions) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == Listening || s.starting {
		s.mu.Unlock()
		return ErrAlreadyListening
	}
	s.starting = true
	if opts.SourceLang != "" {
		s.sourceLang = opts.SourceLang
	}
	if opts.TargetLang != "" {
		s.targetLang = opts.TargetLang
	}
	s.gen++
	gen := s.gen
	s.rec = transcript.NewReconciler(opts.Mode)
	s.settled = ""
	s.translated = ""
	s.restarting = false
	s.dispatcher.Update("")
	cfg := s.recognitionConfig()
	source, target := s.sourceLang, s.targetLang
	s.mu.Unlock()

	s.listener.DisplayChanged("")
	s.listener.Translated("")

	runCtx, runCancel := context.WithCancel(s.ctx)
	stream, err := s.recognizer.Open(runCtx, cfg)
	if err != nil {
		runCancel()
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
		s.logger.Warn("failed to open recognition stream", slogError(err))
		s.notify(Notice{Level: LevelError, Text: NoticeStartFailed})
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	s.mu.Lock()
	s.starting = false
	if s.closed {
		s.mu.Unlock()
		runCancel()
		_ = stream.Close()
		return ErrClosed
	}
	s.state = Listening
	s.runCancel = runCancel
	s.wg.Add(1)
	s.mu.Unlock()

	s.beginAudit(source, target, opts.Mode.String())
	s.record(audit.TypeSessionStarted, map[string]string{"source_lang": source, "target_lang": target, "mode": opts.Mode.String()})
	s.logger.Info("listening started", slog.String("source_lang", source), slog.String("target_lang", target), slog.String("mode", opts.Mode.String()))
	s.listener.StateChanged(Listening)

	go s.run(runCtx, gen, cfg, stream)
	return nil
}

// Stop ends listening. A pending debounced dispatch still fires.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != Listening {
		s.mu.Unlock()
		return
	}
	s.state = Idle
	wasRestarting := s.restarting
	s.restarting = false
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	cancel()
	if wasRestarting {
		s.listener.Restarting(false)
	}
	s.record(audit.TypeSessionStopped, map[string]string{"reason": "requested"})
	s.logger.Info("listening stopped")
	s.listener.StateChanged(Idle)
}

// SetText replaces the display with manually entered text. It is debounced
// like recognition updates. While listening, the next recognition event
// overwrites it.
func (s *Session) SetText(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.rec.Replace(text)
	s.dispatcher.Update(text)
	s.mu.Unlock()
	s.listener.DisplayChanged(text)
}

// SetLanguages changes the language pair. When either language changes, the
// last settled text is translated again. A new source language applies to the
// next recognition stream.
func (s *Session) SetLanguages(sourceLang, targetLang string) {
	s.mu.Lock()
	changed := false
	if sourceLang != "" && sourceLang != s.sourceLang {
		s.sourceLang = sourceLang
		changed = true
	}
	if targetLang != "" && targetLang != s.targetLang {
		s.targetLang = targetLang
		changed = true
	}
	settled := s.settled
	s.mu.Unlock()
	if changed && settled != "" {
		s.dispatch(settled)
	}
}

// Speak plays the translated text in the target language, if any.
func (s *Session) Speak() {
	s.mu.Lock()
	text, lang := s.translated, s.targetLang
	s.mu.Unlock()
	if text == "" || s.speaker == nil {
		return
	}
	s.speaker.Speak(s.id, text, lang)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Display() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Display()
}

func (s *Session) Translated() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translated
}

// Restarting reports whether a stream reopen is pending.
func (s *Session) Restarting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarting
}

func (s *Session) Languages() (source, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceLang, s.targetLang
}

// Close stops listening, cancels pending work and waits for in-flight
// translations to return.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = Idle
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.dispatcher.Stop()
	s.cancel()
	s.wg.Wait()
}

func (s *Session) recognitionConfig() recognition.Config {
	return recognition.Config{
		Continuous:      true,
		InterimResults:  true,
		Language:        s.sourceLang,
		MaxAlternatives: 1,
	}
}

func (s *Session) newBackOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     time.Duration(s.cfg.RestartDelayMS) * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Duration(s.cfg.MaxRestartDelayMS) * time.Millisecond,
	}
	b.Reset()
	return b
}

// run consumes streams until the run is cancelled or fails. An unexpected end
// reopens the stream after a backoff, preserving the display.
func (s *Session) run(ctx context.Context, gen uint64, cfg recognition.Config, stream recognition.Stream) {
	defer s.wg.Done()
	bo := s.newBackOff()
	attempts := 0
	for {
		if !s.consume(ctx, gen, stream, func() {
			attempts = 0
			bo.Reset()
		}) {
			_ = stream.Close()
			return
		}
		_ = stream.Close()
		if ctx.Err() != nil {
			return
		}

		attempts++
		if attempts > s.cfg.MaxRestarts {
			s.logger.Warn("recognition restarts exhausted", slog.Int("attempts", attempts-1))
			s.fail(gen, NoticeRestartsExhausted, "restarts_exhausted")
			return
		}
		if !s.beginRestart(gen) {
			return
		}
		delay := bo.NextBackOff()
		add(ctx, restarts)
		s.logger.Debug("recognition stream ended, reopening", slog.Int("attempt", attempts), slog.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.mu.Lock()
		cfg.Language = s.sourceLang
		s.mu.Unlock()
		next, err := s.recognizer.Open(ctx, cfg)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("failed to reopen recognition stream", slogError(err))
			s.fail(gen, NoticeStartFailed, "reopen_failed")
			return
		}
		s.endRestart(gen, attempts)
		stream = next
	}
}

// consume reads one stream. It returns true when the stream ended on its own
// and false when the run was cancelled or hit a fatal error.
func (s *Session) consume(ctx context.Context, gen uint64, stream recognition.Stream, onResult func()) bool {
	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return false
		case evt, ok := <-events:
			if !ok {
				return true
			}
			if evt.ErrorCode != "" {
				if !s.handleError(gen, evt.ErrorCode) {
					return false
				}
				continue
			}
			if len(evt.Results) > 0 {
				onResult()
				s.apply(gen, evt.Results)
			}
		}
	}
}

func (s *Session) apply(gen uint64, results []recognition.Result) {
	s.mu.Lock()
	if s.gen != gen || s.state != Listening {
		s.mu.Unlock()
		return
	}
	prev := s.rec.Display()
	display := s.rec.Apply(results)
	if display != prev {
		s.dispatcher.Update(display)
	}
	s.mu.Unlock()
	if display != prev {
		s.listener.DisplayChanged(display)
	}
}

// handleError reports whether listening continues.
func (s *Session) handleError(gen uint64, code string) bool {
	class, text := recognition.Classify(code)
	switch class {
	case recognition.ClassTransient:
		s.logger.Debug("recognition transient error", slog.String("code", code))
		return true
	case recognition.ClassRecoverable:
		s.logger.Info("recognition recoverable error", slog.String("code", code))
		s.record(audit.TypeSessionNotice, map[string]string{"class": class.String(), "code": code})
		s.notify(noticeForClass(class, text))
		return true
	default:
		s.logger.Warn("recognition fatal error", slog.String("code", code))
		s.fail(gen, text, "fatal:"+code)
		return false
	}
}

func (s *Session) beginRestart(gen uint64) bool {
	s.mu.Lock()
	if s.gen != gen || s.state != Listening {
		s.mu.Unlock()
		return false
	}
	s.rec.Rebase()
	s.restarting = true
	s.mu.Unlock()
	s.listener.Restarting(true)
	return true
}

func (s *Session) endRestart(gen uint64, attempt int) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.restarting = false
	s.mu.Unlock()
	s.record(audit.TypeSessionRestarted, map[string]string{"attempt": strconv.Itoa(attempt)})
	s.listener.Restarting(false)
}

// fail forces Idle with an error notice.
func (s *Session) fail(gen uint64, text, reason string) {
	s.mu.Lock()
	if s.gen != gen || s.state != Listening {
		s.mu.Unlock()
		return
	}
	s.state = Idle
	wasRestarting := s.restarting
	s.restarting = false
	cancel := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.record(audit.TypeSessionNotice, map[string]string{"class": recognition.ClassFatal.String()})
	s.record(audit.TypeSessionStopped, map[string]string{"reason": reason})
	s.notify(Notice{Level: LevelError, Text: text})
	if wasRestarting {
		s.listener.Restarting(false)
	}
	s.listener.StateChanged(Idle)
}

// dispatch submits a settled value for translation without blocking.
func (s *Session) dispatch(value string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.settled = value
	gen := s.gen
	req := translate.Request{Text: value, TargetLang: s.targetLang, SourceLang: s.sourceLang}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.translate(gen, req)
}

func (s *Session) translate(gen uint64, req translate.Request) {
	defer s.wg.Done()
	ctx := translate.WithClientKey(s.ctx, s.clientKey)
	add(ctx, dispatches)
	s.record(audit.TypeTranslationDispatched, map[string]string{
		"chars":       strconv.Itoa(len(req.Text)),
		"source_lang": req.SourceLang,
		"target_lang": req.TargetLang,
	})

	res, err := s.translator.Translate(ctx, req)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("translation failed", slogError(err))
		s.record(audit.TypeTranslationFailed, map[string]string{"error": failureKind(err)})
		s.notify(Notice{Level: LevelError, Text: noticeForTranslateError(err)})
		return
	}
	if res.Translated == "" {
		return
	}
	s.mu.Lock()
	if s.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.translated = res.Translated
	s.mu.Unlock()
	s.listener.Translated(res.Translated)
}

func noticeForTranslateError(err error) string {
	switch {
	case errors.Is(err, translate.ErrRateLimited):
		return NoticeRateLimited
	case errors.Is(err, translate.ErrValidation):
		return NoticeInvalidRequest
	default:
		return NoticeTranslationFailed
	}
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, translate.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, translate.ErrValidation):
		return "invalid"
	default:
		return "provider"
	}
}

func (s *Session) notify(n Notice) {
	s.listener.Notice(n)
}

func (s *Session) beginAudit(source, target, mode string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.BeginSession(s.ctx, s.id, source, target, mode); err != nil {
		s.logger.Warn("failed to record session", slogError(err))
	}
}

func (s *Session) record(entryType string, attrs map[string]string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(s.ctx, audit.Entry{SessionID: s.id, Type: entryType, Attrs: attrs}); err != nil {
		s.logger.Warn("failed to record audit entry", slog.String("type", entryType), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
