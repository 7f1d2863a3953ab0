package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.records = append(f.records, r)
	promise(r, f.err)
}

func (f *fakeProducer) Close() { f.closed = true }

func TestKafkaSender(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		fp := &fakeProducer{}
		s := &KafkaSender{client: fp, topic: "notifications", logger: zap.NewNop()}

		s.Send(context.Background(), "u1", "Wallet funded", "Your wallet was credited with 2000")

		require.Len(t, fp.records, 1)
		rec := fp.records[0]
		assert.Equal(t, "notifications", rec.Topic)
		assert.Equal(t, []byte("u1"), rec.Key)

		var msg Message
		require.NoError(t, json.Unmarshal(rec.Value, &msg))
		assert.Equal(t, "Wallet funded", msg.Title)
		assert.Equal(t, "u1", msg.UserID)
	})

	t.Run("Publish Error Is Logged", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		fp := &fakeProducer{err: errors.New("broker down")}
		s := &KafkaSender{client: fp, topic: "notifications", logger: zap.New(core)}

		s.Send(context.Background(), "u1", "t", "b")
		s.Close()

		assert.Equal(t, 1, logs.FilterMessage("failed to publish notification").Len())
		assert.True(t, fp.closed)
	})
}
