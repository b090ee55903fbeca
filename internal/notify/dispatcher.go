package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sender синхронно отправляет одно сообщение
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Dispatcher асинхронная очередь уведомлений с ограниченным размером.
// Notify никогда не блокирует вызывающего: при переполнении сообщение отбрасывается.
type Dispatcher struct {
	sender Sender
	cfg    DispatcherConfig
	logger *zap.Logger

	mu      sync.RWMutex
	queue   chan Message
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// NewDispatcher создаёт диспетчер уведомлений
func NewDispatcher(sender Sender, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	return &Dispatcher{
		sender: sender,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan Message, cfg.QueueSize),
	}
}

// Start запускает воркеры отправки
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true

	d.logger.Info("Starting notification dispatcher",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize))

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop перестаёт принимать уведомления и дожидается отправки уже поставленных в очередь
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Notification dispatcher stopped")
}

// Notify ставит уведомление в очередь
func (d *Dispatcher) Notify(kind Kind, chatID int64, payload Payload) {
	if chatID == 0 {
		d.logger.Warn("Notification without chat id dropped",
			zap.String("kind", string(kind)),
			zap.Int64("consultation_id", payload.ConsultationID))
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("Notification dropped, dispatcher stopped",
			zap.String("kind", string(kind)),
			zap.Int64("chat_id", chatID))
		return
	}

	select {
	case d.queue <- Message{Kind: kind, ChatID: chatID, Payload: payload}:
	default:
		d.logger.Warn("Notification queue is full, message dropped",
			zap.String("kind", string(kind)),
			zap.Int64("chat_id", chatID),
			zap.Int64("consultation_id", payload.ConsultationID))
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for msg := range d.queue {
		d.send(id, msg)
	}
}

func (d *Dispatcher) send(workerID int, msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Notification sender panicked",
				zap.Int("worker", workerID),
				zap.Any("panic", r))
		}
	}()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("Failed to deliver notification",
			zap.Int("worker", workerID),
			zap.String("kind", string(msg.Kind)),
			zap.Int64("chat_id", msg.ChatID),
			zap.Int64("consultation_id", msg.Payload.ConsultationID),
			zap.Error(err))
	}
}
