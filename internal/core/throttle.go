package core

import (
	"sync"
	"time"
)

// StatusLogWindow задает минимальный интервал между записями журнала для одного сигнала.
const StatusLogWindow = 60 * time.Second

// Clock возвращает текущее время; подменяется в тестах.
type Clock func() time.Time

// Throttle решает, выводить ли повторяющееся наблюдаемое событие.
// Сам запрос при этом всегда выполняется.
type Throttle struct {
	mu     sync.Mutex
	window time.Duration
	last   map[string]time.Time
}

// NewThrottle создает Throttle с окном StatusLogWindow.
func NewThrottle() *Throttle {
	return &Throttle{
		window: StatusLogWindow,
		last:   make(map[string]time.Time),
	}
}

// ShouldEmit возвращает true и запоминает now, если с прошлого вывода по key
// прошло не меньше окна или вывода еще не было.
func (t *Throttle) ShouldEmit(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.last[key]
	if ok && now.Sub(last) < t.window {
		return false
	}
	t.last[key] = now
	return true
}
