// Package live drives a session from client messages and turns session
// changes into updates. It is shared by the websocket and bus transports.
package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/protocol"
	"github.com/loqalabs/loqa-interpret/internal/recognition"
	"github.com/loqalabs/loqa-interpret/internal/session"
	"github.com/loqalabs/loqa-interpret/internal/transcript"
	"github.com/loqalabs/loqa-interpret/internal/translate"
)

var ErrUnknownMessage = errors.New("unknown client message type")

// Emitter delivers an update to the client. It is called from several
// goroutines and must serialize its own writes.
type Emitter func(protocol.SessionUpdate)

// Deps are the shared collaborators for controllers.
type Deps struct {
	Translator translate.Translator
	Speaker    session.Speaker
	Audit      session.Auditor
	Logger     *slog.Logger
}

// Controller owns one session whose recognition events are pushed by the
// client.
type Controller struct {
	id          string
	defaultMode transcript.Mode
	feed        *recognition.Feed
	session     *session.Session
	emit        Emitter
	logger      *slog.Logger
}

func NewController(parent context.Context, id, clientKey string, cfg config.SessionConfig, deps Deps, emit Emitter) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	mode, err := transcript.ParseMode(cfg.DefaultMode)
	if err != nil {
		mode = transcript.Accumulating
	}
	c := &Controller{
		id:          id,
		defaultMode: mode,
		emit:        emit,
		logger:      logger.With(slog.String("component", "live"), slog.String("session_id", id)),
	}
	c.feed = recognition.NewFeed(recognition.FeedHooks{
		OnOpen: func(rc recognition.Config) error {
			c.send(protocol.SessionUpdate{Type: protocol.UpdateRecognitionStart, Config: &rc})
			return nil
		},
		OnClose: func() {
			c.send(protocol.SessionUpdate{Type: protocol.UpdateRecognitionStop})
		},
	})
	c.session = session.New(parent, id, cfg, session.Deps{
		Recognizer: c.feed,
		Translator: deps.Translator,
		Speaker:    deps.Speaker,
		Audit:      deps.Audit,
		Listener:   updates{c: c},
		ClientKey:  clientKey,
		Logger:     logger,
	})
	return c
}

func (c *Controller) ID() string { return c.id }

func (c *Controller) Session() *session.Session { return c.session }

// Handle applies one client message.
func (c *Controller) Handle(msg protocol.ClientMessage) error {
	switch msg.Type {
	case protocol.ClientStart:
		mode := c.defaultMode
		if msg.Mode != "" {
			parsed, err := transcript.ParseMode(msg.Mode)
			if err != nil {
				return err
			}
			mode = parsed
		}
		return c.session.Start(session.StartOptions{SourceLang: msg.SourceLang, TargetLang: msg.TargetLang, Mode: mode})
	case protocol.ClientStop:
		c.session.Stop()
	case protocol.ClientResult:
		if !c.feed.Push(recognition.Event{Results: msg.Results}) {
			c.logger.Debug("dropped recognition result without open stream")
		}
	case protocol.ClientError:
		if !c.feed.Push(recognition.Event{ErrorCode: msg.Error}) {
			c.logger.Debug("dropped recognition error without open stream", slog.String("code", msg.Error))
		}
	case protocol.ClientEnd:
		c.feed.End()
	case protocol.ClientText:
		c.session.SetText(msg.Text)
	case protocol.ClientLanguages:
		c.session.SetLanguages(msg.SourceLang, msg.TargetLang)
	case protocol.ClientSpeak:
		c.session.Speak()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	return nil
}

// Snapshot emits the full session state, for newly attached clients.
func (c *Controller) Snapshot() {
	c.send(protocol.SessionUpdate{Type: protocol.UpdateState, State: c.session.State().String()})
	c.send(protocol.SessionUpdate{Type: protocol.UpdateDisplay, Text: c.session.Display()})
	c.send(protocol.SessionUpdate{Type: protocol.UpdateTranslated, Text: c.session.Translated()})
	source, target := c.session.Languages()
	c.send(protocol.SessionUpdate{Type: protocol.UpdateLanguages, SourceLang: source, TargetLang: target})
}

// Close ends the session and its recognition feed.
func (c *Controller) Close() {
	c.feed.Close()
	c.session.Close()
}

func (c *Controller) send(u protocol.SessionUpdate) {
	u.SessionID = c.id
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now().UTC()
	}
	c.emit(u)
}

// updates adapts session changes to SessionUpdate messages.
type updates struct {
	c *Controller
}

func (u updates) StateChanged(s session.State) {
	u.c.send(protocol.SessionUpdate{Type: protocol.UpdateState, State: s.String()})
}

func (u updates) DisplayChanged(text string) {
	u.c.send(protocol.SessionUpdate{Type: protocol.UpdateDisplay, Text: text})
}

func (u updates) Translated(text string) {
	u.c.send(protocol.SessionUpdate{Type: protocol.UpdateTranslated, Text: text})
}

func (u updates) Notice(n session.Notice) {
	u.c.send(protocol.SessionUpdate{Type: protocol.UpdateNotice, Level: n.Level, Text: n.Text})
}

func (u updates) Restarting(v bool) {
	u.c.send(protocol.SessionUpdate{Type: protocol.UpdateRestarting, Restarting: v})
}
