package recognition

import (
	"context"
	"sync"
)

const feedBuffer = 256

// FeedHooks let the transport follow the stream lifecycle, e.g. to tell a
// remote client to start or stop its platform recognizer.
type FeedHooks struct {
	OnOpen  func(Config) error
	OnClose func()
}

// Feed is a Recognizer whose events are pushed by a transport. At most one
// stream is open at a time; events pushed while no stream is open are dropped.
type Feed struct {
	hooks FeedHooks
	// hookMu orders stream handover with OnClose/OnOpen so a stop never
	// follows the start of a newer stream.
	hookMu  sync.Mutex
	mu      sync.Mutex
	current *feedStream
	closed  bool
}

func NewFeed(hooks FeedHooks) *Feed {
	return &Feed{hooks: hooks}
}

func (f *Feed) Open(ctx context.Context, cfg Config) (Stream, error) {
	f.hookMu.Lock()
	defer f.hookMu.Unlock()
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	prev := f.current
	if prev != nil {
		prev.superseded = true
		prev.end()
	}
	st := &feedStream{feed: f, events: make(chan Event, feedBuffer)}
	f.current = st
	f.mu.Unlock()

	// The replaced stream reports its stop before the new one starts; its
	// own Close later stays silent.
	if prev != nil {
		prev.notifyClosed()
	}
	if f.hooks.OnOpen != nil {
		if err := f.hooks.OnOpen(cfg); err != nil {
			f.detach(st)
			return nil, err
		}
	}
	return st, nil
}

// Push delivers evt to the open stream. It reports false when no stream is
// open or the stream buffer is full.
func (f *Feed) Push(evt Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil || f.current.ended {
		return false
	}
	select {
	case f.current.events <- evt:
		return true
	default:
		return false
	}
}

// End ends the open stream as if the recognizer stopped on its own.
func (f *Feed) End() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil {
		f.current.end()
		f.current = nil
	}
}

// Close ends the open stream and rejects further Open calls.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.current != nil {
		f.current.end()
		f.current = nil
	}
}

// Listening reports whether a stream is open.
func (f *Feed) Listening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current != nil
}

// detach ends st and reports whether a newer stream replaced it.
func (f *Feed) detach(st *feedStream) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	st.end()
	if f.current == st {
		f.current = nil
	}
	return st.superseded
}

type feedStream struct {
	feed       *Feed
	events     chan Event
	ended      bool
	superseded bool
	once       sync.Once
}

func (s *feedStream) Events() <-chan Event { return s.events }

func (s *feedStream) Close() error {
	s.feed.hookMu.Lock()
	defer s.feed.hookMu.Unlock()
	if !s.feed.detach(s) {
		s.notifyClosed()
	}
	return nil
}

func (s *feedStream) notifyClosed() {
	s.once.Do(func() {
		if s.feed.hooks.OnClose != nil {
			s.feed.hooks.OnClose()
		}
	})
}

// end closes the events channel. Callers hold feed.mu.
func (s *feedStream) end() {
	if s.ended {
		return
	}
	s.ended = true
	close(s.events)
}
