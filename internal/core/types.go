package core

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrOffline возвращается, если колонка не ответила на проверку доступности.
	ErrOffline = errors.New("speaker is offline")
	// ErrUnknownCommand: имя команды отсутствует в реестре.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingValue: команда требует значение, а оно не передано.
	ErrMissingValue = errors.New("missing value")
	// ErrInvalidValue: значение передано, но не разбирается.
	ErrInvalidValue = errors.New("invalid value")
	// ErrDevice: ошибка колонки во время выполнения операции.
	ErrDevice = errors.New("device operation failed")
)

// MissingValueError сообщает, что команде не передали значение.
type MissingValueError struct {
	Command string
}

func (e *MissingValueError) Error() string { return e.Command + " requires a value" }

func (e *MissingValueError) Unwrap() error { return ErrMissingValue }

// InvalidValueError сообщает, что значение команды не прошло разбор.
type InvalidValueError struct {
	Command string
	Value   string
	Err     error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s: invalid value %q: %v", e.Command, e.Value, e.Err)
}

func (e *InvalidValueError) Unwrap() []error { return []error{ErrInvalidValue, e.Err} }

// DeviceError оборачивает ошибку колонки; текст совпадает с исходной ошибкой.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string { return e.Err.Error() }

func (e *DeviceError) Unwrap() []error { return []error{ErrDevice, e.Err} }

// Result описывает итог команды: успех с необязательными данными или отказ.
type Result struct {
	Success bool
	Payload interface{}
	Err     error
}

// Success создает успешный результат.
func Success(payload interface{}) Result {
	return Result{Success: true, Payload: payload}
}

// Failure создает неуспешный результат.
func Failure(err error) Result {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Result{Err: err}
}

// Message возвращает текст ошибки или пустую строку при успехе.
func (r Result) Message() string {
	if r.Success || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Status собирает состояние колонки из нескольких запросов.
type Status struct {
	State  interface{} `json:"state"`
	Volume float64     `json:"volume"`
	Source string      `json:"source"`
	Mode   interface{} `json:"mode"`
}

// Операции диспетчера, по которым ключуются middleware.
const (
	OpCheckOnline = "check_online"
	OpExecute     = "execute"
	OpStatus      = "status"
)

// Request описывает вызов диспетчера.
type Request struct {
	Op      string
	Command string
	Args    []string
}

// Endpoint описывает точку входа диспетчера.
type Endpoint func(ctx context.Context, req Request) Result
