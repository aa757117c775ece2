package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"kefctl/internal/core"
	"kefctl/internal/host"
	"kefctl/internal/storage"
	"kefctl/internal/transports/common"
)

// Access log по statusPath прореживается Throttle.
const statusPath = "/api/status"

// Config определяет параметры HTTP-транспорта.
type Config struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxRequestBody  int64
}

// Deps содержит зависимости HTTP-транспорта. Store и Metrics необязательны.
type Deps struct {
	Service  *common.Service
	Store    storage.Store
	Logger   *slog.Logger
	Throttle *core.Throttle
	Clock    core.Clock
	Metrics  http.Handler
	HostInfo func(ctx context.Context) (host.Info, error)
}

// Adapter реализует web transport поверх chi.
type Adapter struct {
	deps Deps
	cfg  Config

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewAdapter создает web transport.
func NewAdapter(deps Deps, cfg Config) *Adapter {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "0.0.0.0:50000"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	// Запрос может ждать своей очереди к колонке, поэтому запас больше таймаута устройства.
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.MaxRequestBody <= 0 {
		cfg.MaxRequestBody = 64 << 10
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Throttle == nil {
		deps.Throttle = core.NewThrottle()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.HostInfo == nil {
		deps.HostInfo = host.Collect
	}
	return &Adapter{deps: deps, cfg: cfg}
}

func (a *Adapter) Name() string { return "web" }

// Addr возвращает фактический адрес после Start.
func (a *Adapter) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return a.cfg.ListenAddr
	}
	return a.listener.Addr().String()
}

// Start открывает порт и обслуживает запросы до Stop или отмены контекста.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.server != nil {
		a.mu.Unlock()
		return errors.New("web transport already started")
	}
	ln, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	srv := &http.Server{
		Handler:      a.routes(),
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
	}
	a.server = srv
	a.listener = ln
	a.mu.Unlock()

	a.deps.Logger.Info("web transport listening", slog.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.deps.Logger.Error("web transport stopped", slog.Any("err", err))
		}
	}()
	return nil
}

// Stop завершает HTTP server.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	a.listener = nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (a *Adapter) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(a.requestIDMiddleware)
	r.Use(a.accessLogMiddleware)
	r.Use(a.recoveryMiddleware)
	r.Use(a.maxBodyMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Post("/control/{command}", a.handleControl)
		r.Get("/commands", a.handleCommands)
		r.Get("/health", a.handleHealth)
		r.Get("/audit", a.handleAudit)
	})
	if a.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.deps.Metrics)
	}
	return r
}
