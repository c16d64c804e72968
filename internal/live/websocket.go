package live

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/protocol"
	"github.com/loqalabs/loqa-interpret/internal/speech"
	"github.com/loqalabs/loqa-interpret/internal/tts"
)

const writeTimeout = 5 * time.Second

// Server upgrades GET /v1/session to a websocket and runs one Controller per
// connection. Synthesized speech for the connection is sent back as audio
// updates.
type Server struct {
	ctx      context.Context
	cfg      config.SessionConfig
	deps     Deps
	speech   *speech.Speaker
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewServer(ctx context.Context, cfg config.SessionConfig, deps Deps, speaker *speech.Speaker, logger *slog.Logger) *Server {
	deps.Logger = logger
	return &Server{
		ctx:    ctx,
		cfg:    cfg,
		deps:   deps,
		speech: speaker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With(slog.String("component", "live-ws")),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	var writeMu sync.Mutex
	write := func(u protocol.SessionUpdate) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(u); err != nil {
			s.logger.Debug("websocket write failed", slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}

	deps := s.deps
	if s.speech != nil {
		deps.Speaker = audioSpeaker{speaker: s.speech, sink: tts.SinkFunc(func(ctx context.Context, chunk tts.SynthChunk) error {
			write(protocol.SessionUpdate{
				Type:      protocol.UpdateAudio,
				SessionID: id,
				Audio: &protocol.AudioChunk{
					SessionID:  chunk.SessionID,
					Voice:      chunk.Voice,
					Sequence:   chunk.Sequence,
					SampleRate: chunk.SampleRate,
					Channels:   chunk.Channels,
					PCM:        chunk.PCM,
					Final:      chunk.Final,
				},
				Timestamp: time.Now().UTC(),
			})
			return nil
		})}
	}

	ctrl := NewController(s.ctx, id, clientKey(r), s.cfg, deps, write)
	defer ctrl.Close()

	s.logger.Info("session connected", slog.String("session_id", id))
	ctrl.Snapshot()

	for {
		var msg protocol.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read ended", slog.String("session_id", id), slog.String("error", err.Error()))
			}
			break
		}
		if err := ctrl.Handle(msg); err != nil {
			s.logger.Info("client message rejected", slog.String("session_id", id), slog.String("type", msg.Type), slog.String("error", err.Error()))
		}
	}
	s.logger.Info("session disconnected", slog.String("session_id", id))
}

// audioSpeaker routes speech for one connection to its own sink.
type audioSpeaker struct {
	speaker *speech.Speaker
	sink    tts.Sink
}

func (a audioSpeaker) Speak(sessionID, text, lang string) {
	a.speaker.SpeakTo(a.sink, sessionID, text, lang)
}

// clientKey is the first X-Forwarded-For entry or the remote host.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
