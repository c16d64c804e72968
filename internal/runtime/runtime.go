package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/loqalabs/loqa-interpret/internal/audit"
	"github.com/loqalabs/loqa-interpret/internal/bridge"
	"github.com/loqalabs/loqa-interpret/internal/bus"
	"github.com/loqalabs/loqa-interpret/internal/config"
	"github.com/loqalabs/loqa-interpret/internal/languages"
	"github.com/loqalabs/loqa-interpret/internal/live"
	"github.com/loqalabs/loqa-interpret/internal/llm"
	"github.com/loqalabs/loqa-interpret/internal/natsserver"
	"github.com/loqalabs/loqa-interpret/internal/ratelimit"
	"github.com/loqalabs/loqa-interpret/internal/speech"
	"github.com/loqalabs/loqa-interpret/internal/translate"
	"github.com/loqalabs/loqa-interpret/internal/tts"
)

type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	metrics       http.Handler
	ready         atomic.Bool
	wg            sync.WaitGroup

	natsServer   *natsserver.EmbeddedServer
	bus          *bus.Client
	audit        *audit.Store
	speaker      *speech.Speaker
	gateway      *translate.Gateway
	limiter      *ratelimit.Limiter
	translateSvc *translate.Service
	bridge       *bridge.Service
	live         *live.Server
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry
	r.metrics = metricsHandler

	if err := r.setup(ctx); err != nil {
		r.teardown()
		return err
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.serve(r.httpServer, "http")

	if bind := r.cfg.Telemetry.PrometheusBind; bind != "" && r.metrics != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", r.metrics)
		r.metricsServer = &http.Server{
			Addr:              bind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.serve(r.metricsServer, "metrics")
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr), slog.Bool("bus", r.bus != nil), slog.String("translate_mode", r.cfg.Translate.Mode))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slogError(err))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slogError(err))
		}
	}
	r.wg.Wait()
	r.teardown()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slogError(err))
		}
	}

	return nil
}

func (r *Runtime) serve(srv *http.Server, name string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("server failed", slog.String("server", name), slogError(err))
		}
	}()
}

// setup builds every component the HTTP and bus surfaces depend on.
func (r *Runtime) setup(ctx context.Context) error {
	store, err := audit.Open(ctx, r.cfg.Audit, r.logger)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	r.audit = store

	gen, err := llm.New(r.cfg.Translate)
	if err != nil {
		return fmt.Errorf("translate provider: %w", err)
	}
	r.gateway = translate.NewGateway(gen, r.cfg.Translate, r.logger)

	rateStore, err := ratelimit.NewStore(r.cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("rate limit store: %w", err)
	}
	r.limiter = ratelimit.NewLimiter(rateStore)

	if r.cfg.Bus.Enabled {
		if err := r.connectBus(ctx); err != nil {
			return err
		}
	}

	if r.cfg.Speech.Enabled {
		synth, err := tts.New(r.cfg.Speech)
		if err != nil {
			return fmt.Errorf("speech synthesizer: %w", err)
		}
		var sink tts.Sink
		if r.bus != nil {
			sink = tts.NewBusSink(r.bus)
		}
		r.speaker = speech.NewSpeaker(ctx, synth, sink, speech.VoicesFromConfig(r.cfg.Speech.Voices), r.logger)
	}

	// Sessions share the per-client budget with POST /translate.
	sessionTranslator := translate.RateLimited(r.gateway, r.limiter)
	deps := live.Deps{
		Translator: sessionTranslator,
		Audit:      r.audit,
		Logger:     r.logger,
	}
	r.live = live.NewServer(ctx, r.cfg.Session, deps, r.speaker, r.logger)

	if r.bus != nil {
		r.translateSvc = translate.NewService(ctx, r.bus, sessionTranslator, r.logger)
		if err := r.translateSvc.Start(); err != nil {
			return err
		}
		busDeps := deps
		if r.speaker != nil {
			busDeps.Speaker = r.speaker
		}
		r.bridge = bridge.NewService(ctx, r.cfg.Session, r.bus, busDeps, r.logger)
		if err := r.bridge.Start(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) connectBus(ctx context.Context) error {
	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		srv, err := natsserver.Start(busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("start embedded nats: %w", err)
		}
		r.natsServer = srv
		busCfg.Servers = []string{srv.ClientURL()}
	}
	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	r.bus = client
	return nil
}

// teardown releases components in reverse order of setup.
func (r *Runtime) teardown() {
	if r.bridge != nil {
		r.bridge.Close()
	}
	if r.translateSvc != nil {
		r.translateSvc.Close()
	}
	if r.speaker != nil {
		r.speaker.Close()
	}
	if r.bus != nil {
		r.bus.Close()
	}
	if r.natsServer != nil {
		r.natsServer.Shutdown()
	}
	if r.audit != nil {
		if err := r.audit.Close(); err != nil {
			r.logger.Warn("audit close failed", slogError(err))
		}
	}
}

// Handler returns the HTTP surface. It is valid after setup.
func (r *Runtime) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", r.handleHealth)
	router.Get("/readyz", r.handleReady)
	if r.metrics != nil {
		router.Method(http.MethodGet, "/metrics", r.metrics)
	}

	translateHandler := translate.Handler(r.gateway, r.limiter, r.logger)
	router.Post("/translate", translateHandler)
	router.Post("/api/translate", translateHandler)

	router.Get("/v1/languages", r.handleLanguages)
	router.Get("/v1/sessions/{id}/audit", r.handleAudit)
	router.Handle("/v1/session", r.live)
	return router
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && (r.bus == nil || r.bus.Healthy()) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, languages.Supported())
}

func (r *Runtime) handleAudit(w http.ResponseWriter, req *http.Request) {
	if !r.audit.Enabled() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "audit disabled"})
		return
	}
	limit := 100
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Bad request"})
			return
		}
		limit = n
	}
	entries, err := r.audit.List(req.Context(), chi.URLParam(req, "id"), limit)
	if err != nil {
		r.logger.Warn("audit list failed", slogError(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "audit unavailable"})
		return
	}
	type entryJSON struct {
		Type      string            `json:"type"`
		Attrs     map[string]string `json:"attrs,omitempty"`
		CreatedAt time.Time         `json:"createdAt"`
	}
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON{Type: e.Type, Attrs: e.Attrs, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func slogError(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
