package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chris/vtu-ledger/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Connect connects to the redis server and returns the client.
func Connect(ctx context.Context, uri, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     uri,
		Password: password,
		DB:       0,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// Counter is the subset of redis commands the budget uses.
type Counter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisBudget stores each day's referral payouts as an integer count of
// minor units under "referral:budget:YYYY-MM-DD".
type RedisBudget struct {
	client Counter
	prefix string
}

func NewRedisBudget(client Counter) *RedisBudget {
	return &RedisBudget{client: client, prefix: "referral:budget:"}
}

var _ Budget = (*RedisBudget)(nil)

var minorUnits = decimal.NewFromInt(100)

func (b *RedisBudget) key(day time.Time) string {
	return b.prefix + day.UTC().Format(time.DateOnly)
}

func (b *RedisBudget) Used(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	n, err := b.client.Get(ctx, b.key(day)).Int64()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read budget counter: %w", err)
	}
	return decimal.NewFromInt(n).Div(minorUnits), nil
}

func (b *RedisBudget) Add(ctx context.Context, day time.Time, amount decimal.Decimal) error {
	key := b.key(day)
	if err := b.client.IncrBy(ctx, key, amount.Mul(minorUnits).Round(0).IntPart()).Err(); err != nil {
		return fmt.Errorf("failed to increment budget counter: %w", err)
	}
	// Keep yesterday's counter around for inspection, then let it go.
	if err := b.client.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to set budget counter expiry: %w", err)
	}
	return nil
}

// Lister is the subset of redis commands the dead letter list uses.
type Lister interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisDeadLetter keeps reward jobs that could not be applied in a redis list
// for manual replay.
type RedisDeadLetter struct {
	client   Lister
	logger   *zap.Logger
	listName string
}

func NewRedisDeadLetter(client Lister, logger *zap.Logger) *RedisDeadLetter {
	return &RedisDeadLetter{client: client, logger: logger, listName: "failed-rewards"}
}

type deadLetterRecord struct {
	Job      models.RewardJob `json:"job"`
	Error    string           `json:"error"`
	FailedAt time.Time        `json:"failed_at"`
}

func (r *RedisDeadLetter) Send(ctx context.Context, job models.RewardJob, cause error) error {
	rec := deadLetterRecord{Job: job, FailedAt: time.Now().UTC()}
	if cause != nil {
		rec.Error = cause.Error()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	if err := r.client.RPush(ctx, r.listName, data).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter: %w", err)
	}
	r.logger.Warn("reward job dead-lettered", zap.String("job_id", job.ID), zap.String("list", r.listName))
	return nil
}
