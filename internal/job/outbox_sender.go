package job

import (
	"context"
	"log"
	"time"

	"skillexchange/internal/infrastructure/metrics"
	"skillexchange/internal/infrastructure/mq"
	"skillexchange/internal/model"
	"skillexchange/internal/repository"

	"gorm.io/gorm"
)

// OutboxSender publishes pending ledger events and records the outcome per message.
type OutboxSender struct {
	outboxRepo    *repository.OutboxRepository
	publisher     mq.Publisher
	maxRetryCount int
	stopCh        chan struct{}
	interval      time.Duration
	batchSize     int
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, maxRetryCount int) *OutboxSender {
	return &OutboxSender{
		outboxRepo:    repository.NewOutboxRepository(db),
		publisher:     publisher,
		maxRetryCount: maxRetryCount,
		stopCh:        make(chan struct{}),
		interval:      100 * time.Millisecond,
		batchSize:     100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] context cancelled, exiting")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] stopped")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending publishes one batch of pending messages and returns how many were sent.
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] load pending messages failed err=%v", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		metrics.OutboxPublished.WithLabelValues("sent").Inc()
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			// The event may be published again; consumers dedupe on transaction_no.
			log.Printf("[OutboxSender] mark sent failed id=%d err=%v", msg.ID, updateErr)
		}
		return true
	}

	log.Printf("[OutboxSender] publish failed id=%d key=%s retry=%d err=%v",
		msg.ID, msg.MessageKey, msg.RetryCount, err)

	if msg.RetryCount+1 >= s.maxRetryCount {
		metrics.OutboxPublished.WithLabelValues("failed").Inc()
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Printf("[OutboxSender] mark failed failed id=%d err=%v", msg.ID, err)
		} else {
			log.Printf("[OutboxSender] giving up after %d attempts id=%d", msg.RetryCount+1, msg.ID)
		}
		return false
	}

	metrics.OutboxPublished.WithLabelValues("retry").Inc()
	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Printf("[OutboxSender] increment retry failed id=%d err=%v", msg.ID, err)
	}
	return false
}
