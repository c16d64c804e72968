package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/loqalabs/loqa-interpret/internal/bus"
	"github.com/loqalabs/loqa-interpret/internal/protocol"
	"github.com/nats-io/nats.go"
)

// ClientHeader names the bus header carrying the caller's rate-limit key.
const ClientHeader = "Loqa-Client"

const queueGroup = "translate"

// Service answers translate.request messages on the bus.
type Service struct {
	bus        *bus.Client
	translator Translator
	sub        *nats.Subscription
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	logger     *slog.Logger
}

func NewService(parent context.Context, busClient *bus.Client, translator Translator, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:        busClient,
		translator: translator,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger.With(slog.String("component", "translate-service")),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().QueueSubscribe(protocol.SubjectTranslateRequest, queueGroup, s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe translate requests: %w", err)
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.sub != nil && s.sub.IsValid()
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.TranslateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode translate request", slogError(err))
		s.reply(msg, protocol.TranslateResponse{Error: MessageBadRequest, Status: http.StatusBadRequest})
		return
	}
	key := localClientKey
	if msg.Header != nil {
		if v := msg.Header.Get(ClientHeader); v != "" {
			key = v
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := WithClientKey(s.ctx, key)
		res, err := s.translator.Translate(ctx, Request{
			Text:       req.Text,
			TargetLang: req.TargetLang,
			SourceLang: req.SourceLang,
		})
		if err != nil {
			status, message := StatusFor(err)
			s.reply(msg, protocol.TranslateResponse{Error: message, Status: status})
			return
		}
		s.reply(msg, protocol.TranslateResponse{Translated: res.Translated, Status: http.StatusOK})
	}()
}

func (s *Service) reply(msg *nats.Msg, resp protocol.TranslateResponse) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("failed to encode translate reply", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to publish translate reply", slogError(err))
	}
}

// BusClient is a Translator that forwards requests over the bus.
type BusClient struct {
	bus *bus.Client
	key string
}

func NewBusClient(busClient *bus.Client, clientKey string) *BusClient {
	return &BusClient{bus: busClient, key: clientKey}
}

func (c *BusClient) Translate(ctx context.Context, req Request) (Result, error) {
	data, err := json.Marshal(protocol.TranslateRequest{
		Text:       req.Text,
		TargetLang: req.TargetLang,
		SourceLang: req.SourceLang,
	})
	if err != nil {
		return Result{}, err
	}
	msg := nats.NewMsg(protocol.SubjectTranslateRequest)
	msg.Data = data
	if c.key != "" {
		msg.Header.Set(ClientHeader, c.key)
	}
	reply, err := c.bus.Conn().RequestMsgWithContext(ctx, msg)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	var resp protocol.TranslateResponse
	if err := json.Unmarshal(reply.Data, &resp); err != nil {
		return Result{}, fmt.Errorf("%w: decode reply: %v", ErrProvider, err)
	}
	if resp.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrorFor(resp.Status), resp.Error)
	}
	return Result{Translated: resp.Translated}, nil
}
