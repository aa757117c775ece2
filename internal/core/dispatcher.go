package core

import (
	"context"
	"errors"
	"fmt"

	"kefctl/internal/speaker"
)

// Dispatcher владеет соединением с колонкой, проверяет команды по реестру
// и выполняет их по одной через Loop.
type Dispatcher struct {
	device   speaker.Device
	registry *Registry
	loop     *Loop

	checkOnline Endpoint
	execute     Endpoint
	status      Endpoint
}

// Option настраивает Dispatcher.
type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	registry    *Registry
	middlewares []Middleware
}

// WithMiddleware добавляет middleware ко всем точкам входа.
func WithMiddleware(mws ...Middleware) Option {
	return func(o *dispatcherOptions) { o.middlewares = append(o.middlewares, mws...) }
}

// WithRegistry подменяет реестр команд.
func WithRegistry(r *Registry) Option {
	return func(o *dispatcherOptions) { o.registry = r }
}

// NewDispatcher создает диспетчер и запускает его Loop.
func NewDispatcher(device speaker.Device, opts ...Option) *Dispatcher {
	o := dispatcherOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	d := &Dispatcher{
		device:   device,
		registry: o.registry,
		loop:     NewLoop(),
	}
	d.checkOnline = Chain(OpCheckOnline, d.runCheckOnline, o.middlewares...)
	d.execute = Chain(OpExecute, d.runExecute, o.middlewares...)
	d.status = Chain(OpStatus, d.runStatus, o.middlewares...)
	return d
}

// Registry возвращает реестр команд.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Commands возвращает команды реестра в порядке объявления.
func (d *Dispatcher) Commands() []Command { return d.registry.Commands() }

// Close останавливает Loop. Соединение с колонкой закрывает владелец device.
func (d *Dispatcher) Close() { d.loop.Close() }

// CheckOnline проверяет доступность колонки. Ошибка соединения означает offline.
func (d *Dispatcher) CheckOnline(ctx context.Context) bool {
	res := d.checkOnline(ctx, Request{Op: OpCheckOnline})
	online, _ := res.Payload.(bool)
	return res.Success && online
}

// Execute проверяет и выполняет одну команду. Ошибки всегда возвращаются в Result.
func (d *Dispatcher) Execute(ctx context.Context, command string, args ...string) Result {
	return d.execute(ctx, Request{Op: OpExecute, Command: command, Args: args})
}

// FullStatus читает состояние, громкость, источник и режим. Ошибка любого
// запроса дает отказ целиком, частичный статус не возвращается.
func (d *Dispatcher) FullStatus(ctx context.Context) Result {
	return d.status(ctx, Request{Op: OpStatus})
}

// online проверяет доступность; вызывается только из задачи Loop.
func (d *Dispatcher) online(ctx context.Context) bool {
	ok, err := d.device.IsOnline(ctx)
	return err == nil && ok
}

func (d *Dispatcher) runCheckOnline(ctx context.Context, _ Request) Result {
	var online bool
	err := d.loop.Do(ctx, func(ctx context.Context) error {
		online = d.online(ctx)
		return nil
	})
	if err != nil {
		// Сбой моста трактуется как offline.
		return Success(false)
	}
	return Success(online)
}

func (d *Dispatcher) runExecute(ctx context.Context, req Request) Result {
	cmd, ok := d.registry.Lookup(req.Command)
	if !ok {
		return Failure(ErrUnknownCommand)
	}
	arg, err := cmd.parse(req.Command, req.Args)
	if err != nil {
		return Failure(err)
	}

	var payload interface{}
	err = d.loop.Do(ctx, func(ctx context.Context) error {
		if !d.online(ctx) {
			return ErrOffline
		}
		out, err := cmd.run(ctx, d.device, arg)
		if err != nil {
			return &DeviceError{Op: cmd.Name, Err: err}
		}
		payload = out
		return nil
	})
	if err != nil {
		return Failure(bridgeError(cmd.Name, err))
	}
	return Success(payload)
}

func (d *Dispatcher) runStatus(ctx context.Context, _ Request) Result {
	var st Status
	err := d.loop.Do(ctx, func(ctx context.Context) error {
		if !d.online(ctx) {
			return ErrOffline
		}
		state, err := d.device.State(ctx)
		if err != nil {
			return &DeviceError{Op: speaker.OpGetState, Err: err}
		}
		volume, err := d.device.Volume(ctx)
		if err != nil {
			return &DeviceError{Op: speaker.OpGetVolume, Err: err}
		}
		source, err := d.device.Source(ctx)
		if err != nil {
			return &DeviceError{Op: speaker.OpGetSource, Err: err}
		}
		mode, err := d.device.Mode(ctx)
		if err != nil {
			return &DeviceError{Op: speaker.OpGetMode, Err: err}
		}
		st = Status{State: state, Volume: volume, Source: string(source), Mode: mode}
		return nil
	})
	if err != nil {
		return Failure(bridgeError(OpStatus, err))
	}
	return Success(st)
}

// bridgeError приводит ошибки Loop (закрытие, паника) к таксономии диспетчера.
func bridgeError(op string, err error) error {
	if errors.Is(err, ErrOffline) || errors.Is(err, ErrDevice) {
		return err
	}
	return &DeviceError{Op: op, Err: fmt.Errorf("%s: %w", op, err)}
}
