package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
	"go.uber.org/zap"
)

// InlineScheduler runs reward jobs on background goroutines in the current
// process. Failed jobs are retried with linear backoff and then handed to the
// dead letter sink.
type InlineScheduler struct {
	processor   Processor
	deadLetter  DeadLetter
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration
	wg          sync.WaitGroup
}

func NewInlineScheduler(processor Processor, deadLetter DeadLetter, logger *zap.Logger, maxAttempts int, backoff time.Duration) *InlineScheduler {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &InlineScheduler{
		processor:   processor,
		deadLetter:  deadLetter,
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

var _ Scheduler = (*InlineScheduler)(nil)

// ScheduleReward returns immediately; the job runs detached from ctx's
// cancellation.
func (s *InlineScheduler) ScheduleReward(ctx context.Context, job models.RewardJob) error {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, job)
	}()
	return nil
}

// Wait blocks until every scheduled job finished. Used on shutdown and in tests.
func (s *InlineScheduler) Wait() {
	s.wg.Wait()
}

func (s *InlineScheduler) run(ctx context.Context, job models.RewardJob) {
	log := s.logger.With(zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)), zap.String("transaction_id", job.TransactionID))

	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err = s.processor.Process(ctx, job); err == nil {
			return
		}
		log.Warn("reward job failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < s.maxAttempts {
			time.Sleep(time.Duration(attempt) * s.backoff)
		}
	}

	if s.deadLetter == nil {
		log.Error("reward job dropped", zap.Error(err))
		return
	}
	if dlErr := s.deadLetter.Send(ctx, job, err); dlErr != nil {
		log.Error("failed to dead-letter reward job", zap.Error(dlErr), zap.NamedError("cause", err))
	}
}
