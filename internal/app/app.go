package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"kefctl/internal/config"
	"kefctl/internal/core"
	"kefctl/internal/host"
	"kefctl/internal/metrics"
	"kefctl/internal/speaker"
	"kefctl/internal/speaker/kef"
	"kefctl/internal/speaker/memory"
	"kefctl/internal/storage"
	"kefctl/internal/storage/sqlite"
	"kefctl/internal/transports/common"
	"kefctl/internal/transports/mqtt"
	"kefctl/internal/transports/web"
)

// App агрегирует зависимости kefctl.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Dispatcher *core.Dispatcher
	Service    *common.Service
	Store      storage.Store
	Transports *core.TransportManager

	device  speaker.Device
	address string
	mqtt    *mqtt.Adapter
}

// Option настраивает App.
type Option func(*options)

type options struct {
	device speaker.Device
}

// WithDevice подменяет драйвер колонки готовым устройством.
func WithDevice(dev speaker.Device) Option {
	return func(o *options) { o.device = dev }
}

// New строит приложение: устройство, диспетчер, хранилище и фасады.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}
	a.address = net.JoinHostPort(cfg.Speaker.Address, strconv.Itoa(cfg.Speaker.Port))
	a.device = o.device
	if a.device == nil {
		dev, err := buildDevice(cfg)
		if err != nil {
			return nil, err
		}
		a.device = dev
	}
	if cfg.Speaker.Driver == config.DriverMemory || o.device != nil {
		a.address = "memory"
	}

	throttle := core.NewThrottle()
	registry := core.NewRegistry()
	a.Dispatcher = core.NewDispatcher(a.device,
		core.WithRegistry(registry),
		core.WithMiddleware(
			core.LogMiddleware(logger, throttle, time.Now, core.OpStatus),
			metrics.Middleware(registry),
		),
	)

	var sink common.AuditSink
	if cfg.SQLite.Path != "" {
		st, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			a.Dispatcher.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.Store = st
		sink = st
	}
	a.Service = &common.Service{Dispatcher: a.Dispatcher, AuditSink: sink, Logger: logger}
	if len(cfg.Security.AllowedCommands) > 0 {
		authz := core.NewAllowlistAuthorizer(cfg.Security.AllowedCommands)
		if err := authz.Validate(a.Dispatcher.Registry()); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("security.allowed_commands: %w", err)
		}
		a.Service.Authorizer = authz
	}

	a.Transports = core.NewTransportManager()
	if cfg.Web.Enabled {
		webAdapter := web.NewAdapter(web.Deps{
			Service:  a.Service,
			Store:    a.Store,
			Logger:   logger,
			Throttle: throttle,
			Clock:    time.Now,
			Metrics:  metrics.Handler(),
			HostInfo: host.Collect,
		}, web.Config{
			ListenAddr:      cfg.Web.ListenAddr,
			ReadTimeout:     time.Duration(cfg.Web.ReadTimeoutMS) * time.Millisecond,
			WriteTimeout:    time.Duration(cfg.Web.WriteTimeoutMS) * time.Millisecond,
			ShutdownTimeout: time.Duration(cfg.Web.ShutdownTimeoutS) * time.Second,
			MaxRequestBody:  cfg.Web.MaxBodyBytes,
		})
		if err := a.Transports.Register(webAdapter); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("register web transport: %w", err)
		}
	}
	if cfg.MQTT.Enabled {
		a.mqtt = mqtt.NewAdapter(a.Service, logger, mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		})
		if err := a.Transports.Register(a.mqtt); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("register mqtt transport: %w", err)
		}
	}
	return a, nil
}

func buildDevice(cfg config.Config) (speaker.Device, error) {
	switch cfg.Speaker.Driver {
	case config.DriverKEF, "":
		return kef.NewClient(kef.Config{
			Host:       cfg.Speaker.Address,
			Port:       cfg.Speaker.Port,
			Timeout:    time.Duration(cfg.Speaker.TimeoutMS) * time.Millisecond,
			VolumeStep: cfg.Speaker.VolumeStep,
			MaxVolume:  cfg.Speaker.MaxVolume,
		}), nil
	case config.DriverMemory:
		return memory.New(memory.WithVolumeStep(cfg.Speaker.VolumeStep)), nil
	default:
		return nil, fmt.Errorf("unsupported speaker driver %q", cfg.Speaker.Driver)
	}
}

// Address возвращает адрес колонки для сообщений оператору.
func (a *App) Address() string { return a.address }

// CheckStartup выполняет одну проверку доступности перед работой.
func (a *App) CheckStartup(ctx context.Context) error {
	if !a.Dispatcher.CheckOnline(ctx) {
		return fmt.Errorf("speaker at %s: %w", a.address, core.ErrOffline)
	}
	return nil
}

// Serve запускает фасады и планировщик снимков статуса до отмены контекста.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Transports.StartAll(ctx); err != nil {
		return fmt.Errorf("start transports: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Transports.StopAll(stopCtx); err != nil {
			a.Logger.Warn("stop transports", "err", err)
		}
	}()
	a.Logger.Info("kefctl serving", "speaker", a.address, "transports", a.Transports.Names())

	interval := time.Duration(a.Config.Scheduler.IntervalSeconds) * time.Second
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	sched := core.NewScheduler(interval, a.Logger)
	sched.Add("status_snapshot", a.Snapshot)
	sched.Start(ctx)
	return nil
}

// Snapshot снимает полный статус, сохраняет его и публикует в MQTT.
func (a *App) Snapshot(ctx context.Context) error {
	res := a.Service.Status(ctx)

	var errs []error
	if a.Store != nil {
		var body interface{} = res.Payload
		if !res.Success {
			body = map[string]string{"error": res.Message()}
		}
		payload, err := sqlite.MarshalPayload(body)
		if err != nil {
			return err
		}
		snap := storage.StatusSnapshot{
			Online:  res.Success,
			Payload: payload,
			TS:      time.Now().UTC(),
		}
		if err := a.Store.SaveSnapshot(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("save snapshot: %w", err))
		}
	}
	if a.mqtt != nil {
		if err := a.mqtt.PublishStatus(res); err != nil {
			errs = append(errs, fmt.Errorf("publish status: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close останавливает диспетчер и высвобождает ресурсы.
func (a *App) Close() error {
	var errs []error
	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}
	if c, ok := a.device.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close speaker: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}
