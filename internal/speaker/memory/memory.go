package memory

import (
	"context"
	"sync"
	"time"

	"kefctl/internal/speaker"
)

// Call фиксирует один вызов устройства.
type Call struct {
	Op    string
	Start time.Time
	End   time.Time
}

// Device хранит колонку в памяти. Используется в тестах и в драйвере "memory".
type Device struct {
	mu     sync.Mutex
	online bool
	delay  time.Duration
	fail   map[string]error
	calls  []Call
	step   float64

	state  speaker.State
	volume float64
	muted  bool
	mode   speaker.Mode
}

// Option настраивает Device.
type Option func(*Device)

// WithDelay добавляет задержку к каждой операции.
func WithDelay(d time.Duration) Option {
	return func(dev *Device) { dev.delay = d }
}

// WithOffline создает устройство, недоступное в сети.
func WithOffline() Option {
	return func(dev *Device) { dev.online = false }
}

// WithFailure заставляет операцию op возвращать err.
func WithFailure(op string, err error) Option {
	return func(dev *Device) { dev.fail[op] = err }
}

// WithVolumeStep задает шаг increase/decrease.
func WithVolumeStep(step float64) Option {
	return func(dev *Device) { dev.step = step }
}

// New создает включенную колонку на Wifi с громкостью 0.3.
func New(opts ...Option) *Device {
	dev := &Device{
		online: true,
		fail:   make(map[string]error),
		step:   0.05,
		state: speaker.State{
			IsOn:           true,
			StandbyMinutes: 20,
			Source:         speaker.SourceWifi,
			Orientation:    speaker.OrientationRight,
		},
		volume: 0.3,
		mode:   speaker.Mode{SubPolarity: "+", BassExtension: "standard"},
	}
	for _, opt := range opts {
		opt(dev)
	}
	return dev
}

// SetOnline переключает доступность устройства.
func (d *Device) SetOnline(online bool) {
	d.mu.Lock()
	d.online = online
	d.mu.Unlock()
}

// Fail включает (err != nil) или снимает инъекцию ошибки для op.
func (d *Device) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, op)
		return
	}
	d.fail[op] = err
}

// Calls возвращает копию журнала вызовов.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Ops возвращает только имена операций из журнала.
func (d *Device) Ops() []string {
	calls := d.Calls()
	ops := make([]string, 0, len(calls))
	for _, c := range calls {
		ops = append(ops, c.Op)
	}
	return ops
}

// Muted сообщает, заглушена ли колонка.
func (d *Device) Muted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.muted
}

// call записывает вызов, выдерживает задержку и выполняет fn под блокировкой.
func (d *Device) call(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	if d.delay > 0 {
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		d.calls = append(d.calls, Call{Op: op, Start: start, End: time.Now()})
	}()
	if err := d.fail[op]; err != nil {
		return err
	}
	return fn()
}

func (d *Device) IsOnline(ctx context.Context) (bool, error) {
	var online bool
	err := d.call(ctx, speaker.OpIsOnline, func() error {
		online = d.online
		return nil
	})
	return online, err
}

func (d *Device) State(ctx context.Context) (speaker.State, error) {
	var st speaker.State
	err := d.call(ctx, speaker.OpGetState, func() error {
		st = d.state
		return nil
	})
	return st, err
}

func (d *Device) Volume(ctx context.Context) (float64, error) {
	var v float64
	err := d.call(ctx, speaker.OpGetVolume, func() error {
		v = d.volume
		return nil
	})
	return v, err
}

func (d *Device) SetVolume(ctx context.Context, volume float64) error {
	return d.call(ctx, speaker.OpSetVolume, func() error {
		d.volume = speaker.ClampVolume(volume, 1)
		return nil
	})
}

func (d *Device) Source(ctx context.Context) (speaker.Source, error) {
	var s speaker.Source
	err := d.call(ctx, speaker.OpGetSource, func() error {
		s = d.state.Source
		return nil
	})
	return s, err
}

func (d *Device) SetSource(ctx context.Context, source speaker.Source) error {
	return d.call(ctx, speaker.OpSetSource, func() error {
		d.state.Source = source
		d.state.IsOn = true
		return nil
	})
}

func (d *Device) Mode(ctx context.Context) (speaker.Mode, error) {
	var m speaker.Mode
	err := d.call(ctx, speaker.OpGetMode, func() error {
		m = d.mode
		return nil
	})
	return m, err
}

func (d *Device) Mute(ctx context.Context) error {
	return d.call(ctx, speaker.OpMute, func() error {
		d.muted = true
		return nil
	})
}

func (d *Device) Unmute(ctx context.Context) error {
	return d.call(ctx, speaker.OpUnmute, func() error {
		d.muted = false
		return nil
	})
}

func (d *Device) TurnOn(ctx context.Context) error {
	return d.call(ctx, speaker.OpTurnOn, func() error {
		d.state.IsOn = true
		return nil
	})
}

func (d *Device) TurnOff(ctx context.Context) error {
	return d.call(ctx, speaker.OpTurnOff, func() error {
		d.state.IsOn = false
		return nil
	})
}

func (d *Device) IncreaseVolume(ctx context.Context) (float64, error) {
	var v float64
	err := d.call(ctx, speaker.OpIncreaseVolume, func() error {
		d.volume = speaker.ClampVolume(d.volume+d.step, 1)
		v = d.volume
		return nil
	})
	return v, err
}

func (d *Device) DecreaseVolume(ctx context.Context) (float64, error) {
	var v float64
	err := d.call(ctx, speaker.OpDecreaseVolume, func() error {
		d.volume = speaker.ClampVolume(d.volume-d.step, 1)
		v = d.volume
		return nil
	})
	return v, err
}
