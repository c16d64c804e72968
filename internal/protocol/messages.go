package protocol

import (
	"time"

	"github.com/loqalabs/loqa-interpret/internal/recognition"
)

// TranslateRequest is the body of POST /translate and of translate.request bus messages.
type TranslateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"targetLang"`
	SourceLang string `json:"sourceLang,omitempty"`
}

// TranslateResponse carries either a translation or an error. Status is only
// set on bus replies, where there is no HTTP status line.
type TranslateResponse struct {
	Translated string `json:"translated,omitempty"`
	Error      string `json:"error,omitempty"`
	Status     int    `json:"status,omitempty"`
}

// Client message types.
const (
	ClientStart     = "start"
	ClientStop      = "stop"
	ClientResult    = "result"
	ClientError     = "error"
	ClientEnd       = "end"
	ClientText      = "text"
	ClientLanguages = "languages"
	ClientSpeak     = "speak"
	// ClientClose ends a bus-driven session and releases it.
	ClientClose = "close"
)

// ClientMessage is sent by a client driving a live session, over the
// websocket or the bus.
type ClientMessage struct {
	Type       string               `json:"type"`
	SourceLang string               `json:"sourceLang,omitempty"`
	TargetLang string               `json:"targetLang,omitempty"`
	Mode       string               `json:"mode,omitempty"`
	Results    []recognition.Result `json:"results,omitempty"`
	Error      string               `json:"error,omitempty"`
	Text       string               `json:"text,omitempty"`
}

// Session update types.
const (
	UpdateState            = "state"
	UpdateDisplay          = "display"
	UpdateTranslated       = "translated"
	UpdateNotice           = "notice"
	UpdateRestarting       = "restarting"
	UpdateRecognitionStart = "recognition.start"
	UpdateRecognitionStop  = "recognition.stop"
	UpdateAudio            = "audio"
	UpdateLanguages        = "languages"
)

// SessionUpdate is pushed to the client whenever session state changes.
type SessionUpdate struct {
	Type       string              `json:"type"`
	SessionID  string              `json:"sessionId,omitempty"`
	State      string              `json:"state,omitempty"`
	Text       string              `json:"text,omitempty"`
	Level      string              `json:"level,omitempty"`
	SourceLang string              `json:"sourceLang,omitempty"`
	TargetLang string              `json:"targetLang,omitempty"`
	Restarting bool                `json:"restarting,omitempty"`
	Config     *recognition.Config `json:"config,omitempty"`
	Audio      *AudioChunk         `json:"audio,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

// AudioChunk carries synthesized speech on the bus.
type AudioChunk struct {
	SessionID  string `json:"session_id"`
	Voice      string `json:"voice,omitempty"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
	Final      bool   `json:"final"`
}

const (
	SubjectTranslateRequest     = "translate.request"
	SubjectSessionControlPrefix = "session.control"
	SubjectSessionUpdatePrefix  = "session.update"
	SubjectRecognitionPrefix    = "stt.recognition"
	SubjectTTSAudioPrefix       = "tts.audio"
)

// Subject joins a subject prefix with a session id.
func Subject(prefix, sessionID string) string {
	return prefix + "." + sessionID
}
