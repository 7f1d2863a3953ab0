package rewards

import (
	"context"
	"sync"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// The types below stand in for mongo and redis when those are disabled.
// They keep state in process and lose it on restart.

// StaticSettings always returns the same settings.
type StaticSettings models.RewardSettings

func (s StaticSettings) RewardSettings(context.Context) (models.RewardSettings, error) {
	return models.RewardSettings(s), nil
}

// NoReferrers reports that nobody was referred.
type NoReferrers struct{}

func (NoReferrers) ReferrerOf(context.Context, string) (string, error) { return "", nil }

// MemoryBudget tracks referral payouts per UTC day.
type MemoryBudget struct {
	mu   sync.Mutex
	used map[string]decimal.Decimal
}

func NewMemoryBudget() *MemoryBudget {
	return &MemoryBudget{used: make(map[string]decimal.Decimal)}
}

func (b *MemoryBudget) Used(_ context.Context, day time.Time) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used[day.UTC().Format(time.DateOnly)], nil
}

func (b *MemoryBudget) Add(_ context.Context, day time.Time, amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := day.UTC().Format(time.DateOnly)
	b.used[key] = b.used[key].Add(amount)
	return nil
}

// LogDeadLetter records exhausted jobs in the log only.
type LogDeadLetter struct {
	Logger *zap.Logger
}

func (l LogDeadLetter) Send(_ context.Context, job models.RewardJob, cause error) error {
	l.Logger.Error("reward job dead-lettered",
		zap.String("job_id", job.ID),
		zap.String("kind", string(job.Kind)),
		zap.String("user_id", job.UserID),
		zap.Error(cause),
	)
	return nil
}

var (
	_ SettingsProvider = StaticSettings{}
	_ ReferrerLookup   = NoReferrers{}
	_ Budget           = (*MemoryBudget)(nil)
)
