package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job описывает периодическую задачу.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler запускает задачи с фиксированным интервалом.
type Scheduler struct {
	interval time.Duration
	logger   *slog.Logger
	jobs     []Job
	wg       sync.WaitGroup
}

// NewScheduler создает scheduler с заданным интервалом.
func NewScheduler(interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{interval: interval, logger: logger}
}

// Add добавляет задачу в расписание.
func (s *Scheduler) Add(name string, run func(ctx context.Context) error) {
	s.jobs = append(s.jobs, Job{Name: name, Run: run})
}

// Start запускает scheduler до отмены контекста и дожидается завершения задач.
// Следующий тик задачи пропускается, если предыдущий запуск еще идет.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	running := make([]bool, len(s.jobs))
	var mu sync.Mutex
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			for i, job := range s.jobs {
				i, job := i, job
				mu.Lock()
				if running[i] {
					mu.Unlock()
					continue
				}
				running[i] = true
				mu.Unlock()

				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					defer func() {
						mu.Lock()
						running[i] = false
						mu.Unlock()
					}()
					if err := job.Run(ctx); err != nil {
						s.logger.Warn("scheduled job failed", "job", job.Name, "err", err)
					}
				}()
			}
		}
	}
}
