package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrLoopClosed возвращается при постановке задачи в остановленный Loop.
var ErrLoopClosed = errors.New("device loop closed")

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Loop выполняет операции с колонкой строго по одной, в порядке поступления.
// Синхронный вызывающий блокируется в Do до завершения своей операции;
// отмена поставленной или выполняемой операции не поддерживается.
type Loop struct {
	jobs chan job
	quit chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewLoop запускает рабочую горутину.
func NewLoop() *Loop {
	l := &Loop{
		jobs: make(chan job),
		quit: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		select {
		case j := <-l.jobs:
			j.done <- execute(j)
		case <-l.quit:
			return
		}
	}
}

// execute превращает панику операции в обычную ошибку.
func execute(j job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("device operation panicked: %v", rec)
		}
	}()
	return j.fn(j.ctx)
}

// Do ставит fn в очередь и ждет ее завершения. Контекст передается в fn
// как есть: его дедлайн ограничивает ввод-вывод устройства, но не снимает задачу из очереди.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case l.jobs <- j:
	case <-l.quit:
		return ErrLoopClosed
	}
	return <-j.done
}

// Close останавливает Loop после завершения текущей операции.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.quit) })
	l.wg.Wait()
}
