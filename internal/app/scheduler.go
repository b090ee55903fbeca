package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/consultation_bot/internal/lock"
	"github.com/Freeeeeet/consultation_bot/internal/service"
	"go.uber.org/zap"
)

const (
	DefaultSchedulerInterval = 30 * time.Second
	SchedulerLockKey         = "consultation_bot:timeout_scheduler"
)

// DueProcessor выполняет один проход по просроченным консультациям
type DueProcessor interface {
	ProcessDue(ctx context.Context) (service.TickResult, error)
}

// Scheduler периодически запускает разрешение таймаутов консультаций
type Scheduler struct {
	processor DueProcessor
	locker    lock.Locker
	interval  time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewScheduler создаёт новый планировщик. locker выбирает единственный тикающий экземпляр.
func NewScheduler(processor DueProcessor, locker lock.Locker, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	if locker == nil {
		locker = lock.NopLocker{}
	}

	return &Scheduler{
		processor: processor,
		locker:    locker,
		interval:  interval,
		logger:    logger,
	}
}

// Start запускает фоновую задачу. Повторный вызов без Stop ничего не делает.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})

	s.logger.Info("Starting timeout scheduler", zap.Duration("interval", s.interval))

	go s.run(ctx, s.stopChan, s.doneChan)
}

// Stop останавливает задачу и ждёт завершения текущего прохода
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	s.logger.Info("Stopping timeout scheduler")
	close(stop)
	<-done
}

func (s *Scheduler) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer s.release(ctx)

	// Первый запуск сразу при старте
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-stop:
			s.logger.Info("Timeout scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Timeout scheduler cancelled")
			return
		}
	}
}

// tick выполняет один проход. Ошибки и паники логируются, следующий тик идёт по расписанию.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Timeout pass panicked", zap.Any("panic", r))
		}
	}()

	// Аренда держится один интервал и истекает сама до следующего тика
	ttl := s.interval - s.interval/10
	acquired, err := s.locker.TryAcquire(ctx, SchedulerLockKey, ttl)
	if err != nil {
		s.logger.Error("Failed to acquire scheduler lock", zap.Error(err))
		return
	}
	if !acquired {
		s.logger.Debug("Scheduler lock held by another instance, skipping tick")
		return
	}

	start := time.Now()
	result, err := s.processor.ProcessDue(ctx)
	if err != nil {
		s.logger.Error("Timeout pass failed", zap.Error(fmt.Errorf("process due: %w", err)))
		return
	}

	if result.Scanned > 0 {
		s.logger.Debug("Timeout pass completed",
			zap.Int("resolved", result.Resolved),
			zap.Int("failed", result.Failed),
			zap.Duration("took", time.Since(start)))
	}
}

// release отдаёт аренду при остановке, чтобы другая реплика не ждала истечения TTL
func (s *Scheduler) release(ctx context.Context) {
	if err := s.locker.Release(context.WithoutCancel(ctx), SchedulerLockKey); err != nil {
		s.logger.Warn("Failed to release scheduler lock", zap.Error(err))
	}
}
