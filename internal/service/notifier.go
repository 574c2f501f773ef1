package service

import (
	"context"
	"sync"
	"time"

	"position-monitor/config"
	"position-monitor/internal/contract"
	"position-monitor/internal/dto"
	"position-monitor/pkg/logger"
	"position-monitor/pkg/metrics"
	"position-monitor/pkg/utils"
)

// Sender delivers a close event to one channel.
type Sender interface {
	Send(ctx context.Context, event dto.CloseEvent) error
	Name() string
}

type NotifierService interface {
	contract.Notifier
	Start(ctx context.Context)
	// Stop delivers what is already queued and waits for the workers.
	Stop()
}

type notifierService struct {
	cfg     config.Notifier
	log     *logger.Logger
	senders []Sender
	queue   chan dto.CloseEvent

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewNotifierService(cfg config.Notifier, log *logger.Logger, senders ...Sender) NotifierService {
	size := cfg.QueueSize
	if size < 1 {
		size = 1
	}
	return &notifierService{
		cfg:     cfg,
		log:     log,
		senders: senders,
		queue:   make(chan dto.CloseEvent, size),
	}
}

// Notify queues the event. It waits at most EnqueueTimeout for room and then
// drops the event.
func (n *notifierService) Notify(ctx context.Context, event dto.CloseEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.drop(ctx, event, "notifier stopped")
		return
	}

	select {
	case n.queue <- event:
		return
	default:
	}

	timer := time.NewTimer(n.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case n.queue <- event:
	case <-timer.C:
		n.drop(ctx, event, "queue full")
	case <-ctx.Done():
		n.drop(ctx, event, "context done")
	}
}

func (n *notifierService) drop(ctx context.Context, event dto.CloseEvent, reason string) {
	metrics.NotificationsDroppedTotal.Inc()
	n.log.ErrorContext(ctx, "Close notification dropped",
		logger.ErrorField(dto.ErrNotifierFailed),
		logger.StringField("reason", reason),
		logger.UintField("position_id", event.PositionID))
}

func (n *notifierService) Start(ctx context.Context) {
	workers := n.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		utils.GoSafe(func() {
			defer n.wg.Done()
			for event := range n.queue {
				n.deliver(ctx, event)
			}
		})
	}
	n.log.Info("Notifier started", logger.IntField("workers", workers), logger.IntField("senders", len(n.senders)))
}

func (n *notifierService) deliver(ctx context.Context, event dto.CloseEvent) {
	for _, sender := range n.senders {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.cfg.SendTimeout)
		err := sender.Send(sendCtx, event)
		cancel()

		if err != nil {
			metrics.NotificationsTotal.WithLabelValues(sender.Name(), "failed").Inc()
			n.log.ErrorContext(ctx, "Failed to deliver close notification",
				logger.ErrorField(err),
				logger.StringField("sender", sender.Name()),
				logger.UintField("position_id", event.PositionID))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues(sender.Name(), "sent").Inc()
	}
}

func (n *notifierService) Stop() {
	n.stopOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
	})
	n.wg.Wait()
	n.log.Info("Notifier stopped")
}
