package speaker

import (
	"context"
	"fmt"
	"strings"
)

// Имена операций устройства; используются в трассировке и при инъекции ошибок.
const (
	OpIsOnline       = "is_online"
	OpGetState       = "get_state"
	OpGetVolume      = "get_volume"
	OpSetVolume      = "set_volume"
	OpGetSource      = "get_source"
	OpSetSource      = "set_source"
	OpGetMode        = "get_mode"
	OpMute           = "mute"
	OpUnmute         = "unmute"
	OpTurnOn         = "turn_on"
	OpTurnOff        = "turn_off"
	OpIncreaseVolume = "increase_volume"
	OpDecreaseVolume = "decrease_volume"
)

// Device описывает соединение с одной колонкой.
// Реализации не обязаны быть безопасными для конкурентного использования.
type Device interface {
	IsOnline(ctx context.Context) (bool, error)
	State(ctx context.Context) (State, error)
	Volume(ctx context.Context) (float64, error)
	SetVolume(ctx context.Context, volume float64) error
	Source(ctx context.Context) (Source, error)
	SetSource(ctx context.Context, source Source) error
	Mode(ctx context.Context) (Mode, error)
	Mute(ctx context.Context) error
	Unmute(ctx context.Context) error
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	IncreaseVolume(ctx context.Context) (float64, error)
	DecreaseVolume(ctx context.Context) (float64, error)
}

// Source описывает входной источник колонки.
type Source string

const (
	SourceWifi      Source = "Wifi"
	SourceBluetooth Source = "Bluetooth"
	SourceAux       Source = "Aux"
	SourceOptical   Source = "Optical"
	SourceUsb       Source = "Usb"
)

// Sources возвращает все известные источники в порядке кодов устройства.
func Sources() []Source {
	return []Source{SourceWifi, SourceBluetooth, SourceAux, SourceOptical, SourceUsb}
}

// ParseSource разбирает имя источника без учета регистра. "Opt" означает Optical.
func ParseSource(v string) (Source, error) {
	name := strings.TrimSpace(v)
	if strings.EqualFold(name, "opt") {
		return SourceOptical, nil
	}
	for _, s := range Sources() {
		if strings.EqualFold(name, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", v)
}

// Orientation указывает, какая из пары колонок ведущая.
type Orientation string

const (
	OrientationRight Orientation = "right"
	OrientationLeft  Orientation = "left"
)

// State описывает питание и вход.
type State struct {
	IsOn bool `json:"is_on"`
	// StandbyMinutes равен 0, если автоматический standby выключен.
	StandbyMinutes int         `json:"standby_minutes"`
	Source         Source      `json:"source"`
	Orientation    Orientation `json:"orientation"`
}

// Mode содержит настройки DSP.
type Mode struct {
	DeskMode        bool   `json:"desk_mode"`
	WallMode        bool   `json:"wall_mode"`
	PhaseCorrection bool   `json:"phase_correction"`
	HighPass        bool   `json:"high_pass"`
	LowPass         bool   `json:"low_pass"`
	SubPolarity     string `json:"sub_polarity"`
	BassExtension   string `json:"bass_extension"`
}

// ClampVolume ограничивает громкость диапазоном [0, max].
func ClampVolume(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
