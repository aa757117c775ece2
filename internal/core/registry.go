package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"kefctl/internal/speaker"
)

// ValueKind определяет, требует ли команда значение и какого типа.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueFloat
	ValueSource
)

func (k ValueKind) String() string {
	switch k {
	case ValueFloat:
		return "float"
	case ValueSource:
		return "source"
	default:
		return "none"
	}
}

type operation func(ctx context.Context, dev speaker.Device, arg interface{}) (interface{}, error)

// Command описывает запись реестра.
type Command struct {
	Name    string
	Aliases []string
	Value   ValueKind
	Help    string
	run     operation
}

// RequiresValue сообщает, нужно ли значение.
func (c Command) RequiresValue() bool { return c.Value != ValueNone }

// parse приводит аргументы к типу команды. Пустая строка считается отсутствием значения.
func (c Command) parse(name string, args []string) (interface{}, error) {
	if c.Value == ValueNone {
		return nil, nil
	}
	raw := ""
	if len(args) > 0 {
		raw = strings.TrimSpace(args[0])
	}
	if raw == "" {
		return nil, &MissingValueError{Command: name}
	}
	switch c.Value {
	case ValueFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &InvalidValueError{Command: name, Value: raw, Err: errors.New("not a number")}
		}
		if math.IsNaN(v) || v < 0 || v > 1 {
			return nil, &InvalidValueError{Command: name, Value: raw, Err: errors.New("must be between 0.0 and 1.0")}
		}
		return v, nil
	case ValueSource:
		s, err := speaker.ParseSource(raw)
		if err != nil {
			return nil, &InvalidValueError{Command: name, Value: raw, Err: err}
		}
		return s, nil
	}
	return nil, fmt.Errorf("%s: unsupported value kind %s", name, c.Value)
}

// Registry хранит статическую таблицу команд колонки.
type Registry struct {
	commands []Command
	byName   map[string]Command
}

func noResult(fn func(ctx context.Context, dev speaker.Device) error) operation {
	return func(ctx context.Context, dev speaker.Device, _ interface{}) (interface{}, error) {
		return nil, fn(ctx, dev)
	}
}

// NewRegistry создает реестр с фиксированным набором из двенадцати команд.
func NewRegistry() *Registry {
	cmds := []Command{
		{Name: "turn_on", Help: "Turn on the speaker. No parameters required.",
			run: noResult(func(ctx context.Context, dev speaker.Device) error { return dev.TurnOn(ctx) })},
		{Name: "turn_off", Help: "Turn off the speaker. No parameters required.",
			run: noResult(func(ctx context.Context, dev speaker.Device) error { return dev.TurnOff(ctx) })},
		{Name: "mute", Help: "Mute the speaker. No parameters required.",
			run: noResult(func(ctx context.Context, dev speaker.Device) error { return dev.Mute(ctx) })},
		{Name: "unmute", Help: "Unmute the speaker. No parameters required.",
			run: noResult(func(ctx context.Context, dev speaker.Device) error { return dev.Unmute(ctx) })},
		{Name: "volume_up", Aliases: []string{"increase_volume"}, Help: "Increase volume by one step. No parameters required.",
			run: func(ctx context.Context, dev speaker.Device, _ interface{}) (interface{}, error) {
				return dev.IncreaseVolume(ctx)
			}},
		{Name: "volume_down", Aliases: []string{"decrease_volume"}, Help: "Decrease volume by one step. No parameters required.",
			run: func(ctx context.Context, dev speaker.Device, _ interface{}) (interface{}, error) {
				return dev.DecreaseVolume(ctx)
			}},
		{Name: "set_volume", Value: ValueFloat, Help: "Set the volume. Required parameter: value (float between 0.0 and 1.0)",
			run: func(ctx context.Context, dev speaker.Device, arg interface{}) (interface{}, error) {
				return nil, dev.SetVolume(ctx, arg.(float64))
			}},
		{Name: "get_volume", Help: "Get the current volume. No parameters required.",
			run: func(ctx context.Context, dev speaker.Device, _ interface{}) (interface{}, error) {
				return dev.Volume(ctx)
			}},
		{Name: "set_source", Value: ValueSource, Help: `Set the source. Required parameter: value (string: "Wifi", "Bluetooth", "Aux", "Optical", "Usb")`,
			run: func(ctx context.Context, dev speaker.Device, arg interface{}) (interface{}, error) {
				return nil, dev.SetSource(ctx, arg.(speaker.Source))
			}},
		{Name: "get_source", Help: "Get the current source. No parameters required.",
			run: func(ctx context.Context, dev speaker.Device, _ interface{}) (interface{}, error) {
				return dev.Source(ctx)
			}},
		{Name: "get_state", Help: "Get the current state of the speaker. No parameters required.",
			run: func(ctx context.Context, dev speaker.Device, _ interface{}) (interface{}, error) {
				return dev.State(ctx)
			}},
		{Name: "get_mode", Help: "Get the current DSP mode. No parameters required.",
			run: func(ctx context.Context, dev speaker.Device, _ interface{}) (interface{}, error) {
				return dev.Mode(ctx)
			}},
	}

	r := &Registry{commands: cmds, byName: make(map[string]Command, len(cmds)*2)}
	for _, c := range cmds {
		r.byName[c.Name] = c
		for _, alias := range c.Aliases {
			r.byName[alias] = c
		}
	}
	return r
}

// Lookup ищет команду по точному имени или синониму (с учетом регистра).
func (r *Registry) Lookup(name string) (Command, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Commands возвращает команды в порядке объявления.
func (r *Registry) Commands() []Command {
	return append([]Command(nil), r.commands...)
}

// Names возвращает отсортированный список всех допустимых имен, включая синонимы.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
