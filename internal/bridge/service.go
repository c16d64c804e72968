// Package bridge runs sessions driven over the bus. Clients publish control
// messages on session.control.<id> and recognition events on
// stt.recognition.<id>; updates are published on session.update.<id>.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/loqalabs/loqa-interpret/internal/bus"
	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/live"
	"github.com/loqalabs/loqa-interpret/internal/protocol"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type Service struct {
	cfg            config.SessionConfig
	bus            *bus.Client
	deps           live.Deps
	logger         *slog.Logger
	subControl     *nats.Subscription
	subRecognition *nats.Subscription
	ctx            context.Context
	cancel         context.CancelFunc
	mu             sync.Mutex
	sessions       map[string]*live.Controller
	gaugeReg       metric.Registration
}

func NewService(parent context.Context, cfg config.SessionConfig, busClient *bus.Client, deps live.Deps, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	logger = logger.With(slog.String("component", "bridge"))
	deps.Logger = logger
	return &Service{
		cfg:      cfg,
		bus:      busClient,
		deps:     deps,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*live.Controller),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSessionControlPrefix+".*", s.handle)
	if err != nil {
		return fmt.Errorf("subscribe session control: %w", err)
	}
	s.subControl = sub

	subRec, err := s.bus.Conn().Subscribe(protocol.SubjectRecognitionPrefix+".*", s.handle)
	if err != nil {
		_ = s.subControl.Drain()
		return fmt.Errorf("subscribe recognition events: %w", err)
	}
	s.subRecognition = subRec

	if err := s.registerGauge(); err != nil {
		s.logger.Warn("failed to register session gauge", slogError(err))
	}
	return nil
}

func (s *Service) registerGauge() error {
	meter := otel.Meter("github.com/loqalabs/loqa-interpret/bridge")
	gauge, err := meter.Int64ObservableGauge("loqa.bridge.sessions", metric.WithDescription("Active bus-driven sessions"))
	if err != nil {
		return err
	}
	reg, err := meter.RegisterCallback(func(ctx context.Context, obs metric.Observer) error {
		obs.ObserveInt64(gauge, int64(s.Sessions()))
		return nil
	}, gauge)
	if err != nil {
		return err
	}
	s.gaugeReg = reg
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.gaugeReg != nil {
		_ = s.gaugeReg.Unregister()
	}
	if s.subControl != nil {
		_ = s.subControl.Drain()
	}
	if s.subRecognition != nil {
		_ = s.subRecognition.Drain()
	}
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*live.Controller)
	s.mu.Unlock()
	for _, ctrl := range sessions {
		ctrl.Close()
	}
}

func (s *Service) Healthy() bool {
	return s.subControl != nil && s.subRecognition != nil
}

// Sessions returns the number of active bus sessions.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) handle(msg *nats.Msg) {
	id := sessionID(msg.Subject)
	if id == "" {
		s.logger.Warn("message without session id", slog.String("subject", msg.Subject))
		return
	}
	var cm protocol.ClientMessage
	if err := json.Unmarshal(msg.Data, &cm); err != nil {
		s.logger.Warn("failed to decode client message", slog.String("session_id", id), slogError(err))
		return
	}
	if strings.HasPrefix(msg.Subject, protocol.SubjectRecognitionPrefix+".") && cm.Type == "" {
		cm.Type = protocol.ClientResult
	}

	if cm.Type == protocol.ClientClose {
		s.release(id)
		return
	}
	ctrl := s.controller(id)
	if ctrl == nil {
		return
	}
	if err := ctrl.Handle(cm); err != nil {
		s.logger.Info("client message rejected", slog.String("session_id", id), slog.String("type", cm.Type), slogError(err))
	}
}

func (s *Service) controller(id string) *live.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return nil
	}
	if ctrl, ok := s.sessions[id]; ok {
		return ctrl
	}
	subject := protocol.Subject(protocol.SubjectSessionUpdatePrefix, id)
	ctrl := live.NewController(s.ctx, id, id, s.cfg, s.deps, func(u protocol.SessionUpdate) {
		if err := s.bus.PublishJSON(subject, u); err != nil {
			s.logger.Warn("failed to publish session update", slog.String("session_id", id), slogError(err))
		}
	})
	s.sessions[id] = ctrl
	s.logger.Info("bus session created", slog.String("session_id", id))
	return ctrl
}

func (s *Service) release(id string) {
	s.mu.Lock()
	ctrl, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		ctrl.Close()
		s.logger.Info("bus session closed", slog.String("session_id", id))
	}
}

func sessionID(subject string) string {
	idx := strings.LastIndexByte(subject, '.')
	if idx < 0 {
		return ""
	}
	return subject[idx+1:]
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
