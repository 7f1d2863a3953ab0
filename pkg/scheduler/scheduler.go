package scheduler

import (
	"context"

	"github.com/chris/vtu-ledger/pkg/models"
)

// Scheduler defines the interface for a component that hands post-purchase
// reward work to a background worker.
type Scheduler interface {
	// ScheduleReward enqueues a reward job for asynchronous processing.
	ScheduleReward(ctx context.Context, job models.RewardJob) error
}

// Processor applies a reward job. It is implemented by the rewards package
// and invoked either in-process or by the queue consumer.
type Processor interface {
	Process(ctx context.Context, job models.RewardJob) error
}

// DeadLetter receives jobs that exhausted their retries.
type DeadLetter interface {
	Send(ctx context.Context, job models.RewardJob, cause error) error
}
