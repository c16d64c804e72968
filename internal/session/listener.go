package session

import "github.com/loqalabs/loqa-interpret/internal/recognition"

// State is the listening state of a session.
type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Notice levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Notice is a transient, user-facing message.
type Notice struct {
	Level string
	Text  string
}

func noticeForClass(class recognition.ErrorClass, text string) Notice {
	if class == recognition.ClassFatal {
		return Notice{Level: LevelError, Text: text}
	}
	return Notice{Level: LevelWarn, Text: text}
}

// Listener observes session changes. Methods are called without session locks
// held, from whichever goroutine made the change, and must not block.
type Listener interface {
	StateChanged(State)
	DisplayChanged(text string)
	Translated(text string)
	Notice(Notice)
	Restarting(bool)
}

// NopListener ignores every change. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) StateChanged(State)    {}
func (NopListener) DisplayChanged(string) {}
func (NopListener) Translated(string)     {}
func (NopListener) Notice(Notice)         {}
func (NopListener) Restarting(bool)       {}
