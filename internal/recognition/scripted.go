package recognition

import (
	"context"
	"sync"
	"time"
)

// Script describes one stream served by a Scripted recognizer.
type Script struct {
	Events []Event
	// Delay is waited before each event.
	Delay time.Duration
	// Hold keeps the stream open after the last event until it is closed.
	Hold bool
	// Err makes Open fail instead of returning a stream.
	Err error
}

// Scripted replays a fixed sequence of streams, one per Open call.
type Scripted struct {
	mu      sync.Mutex
	scripts []Script
	next    int
	opened  []Config
}

func NewScripted(scripts ...Script) *Scripted {
	return &Scripted{scripts: scripts}
}

func (s *Scripted) Open(ctx context.Context, cfg Config) (Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.scripts) {
		return nil, ErrExhausted
	}
	script := s.scripts[s.next]
	s.next++
	s.opened = append(s.opened, cfg)
	if script.Err != nil {
		return nil, script.Err
	}
	st := newChanStream(len(script.Events))
	go st.play(ctx, script)
	return st, nil
}

// Opened returns the configs of every successful or failed Open call so far.
func (s *Scripted) Opened() []Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Config(nil), s.opened...)
}

type chanStream struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

func newChanStream(buffer int) *chanStream {
	return &chanStream{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

func (c *chanStream) Events() <-chan Event { return c.events }

func (c *chanStream) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *chanStream) play(ctx context.Context, script Script) {
	defer close(c.events)
	for _, evt := range script.Events {
		if script.Delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-time.After(script.Delay):
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case c.events <- evt:
		}
	}
	if script.Hold {
		select {
		case <-ctx.Done():
		case <-c.done:
		}
	}
}
