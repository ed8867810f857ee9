package redis

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewGroupConsumer(t *testing.T) {
	tests := []struct {
		name     string
		client   *redis.Client
		stream   string
		group    string
		consumer string
		opts     []GroupConsumerOption[TestEvent]
		wantErr  bool
		errMsg   string
	}{
		{
			name:     "valid configuration",
			client:   redis.NewClient(&redis.Options{}),
			stream:   "round-events",
			group:    "audit",
			consumer: "audit-1",
			wantErr:  false,
		},
		{
			name:     "nil client",
			client:   nil,
			stream:   "round-events",
			group:    "audit",
			consumer: "audit-1",
			wantErr:  true,
			errMsg:   "redis client cannot be nil",
		},
		{
			name:     "empty stream",
			client:   redis.NewClient(&redis.Options{}),
			stream:   "",
			group:    "audit",
			consumer: "audit-1",
			wantErr:  true,
			errMsg:   "stream cannot be empty",
		},
		{
			name:     "empty group",
			client:   redis.NewClient(&redis.Options{}),
			stream:   "round-events",
			group:    "",
			consumer: "audit-1",
			wantErr:  true,
			errMsg:   "group cannot be empty",
		},
		{
			name:     "empty consumer name",
			client:   redis.NewClient(&redis.Options{}),
			stream:   "round-events",
			group:    "audit",
			consumer: "",
			wantErr:  true,
			errMsg:   "consumer name cannot be empty",
		},
		{
			name:     "with all options",
			client:   redis.NewClient(&redis.Options{}),
			stream:   "round-events",
			group:    "audit",
			consumer: "audit-1",
			opts: []GroupConsumerOption[TestEvent]{
				WithGroupConsumerLogger[TestEvent](slog.Default()),
				WithGroupConsumerBufferSize[TestEvent](1),
				WithGroupConsumerBlockTimeout[TestEvent](time.Second),
				WithGroupConsumerDecodeFunc[TestEvent](DecodeMessage[TestEvent]),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			consumer, err := NewGroupConsumer(tt.client, tt.stream, tt.group, tt.consumer, tt.opts...)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, consumer)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, consumer)
				assert.NoError(t, consumer.Close())
			}

			if tt.client != nil {
				tt.client.Close()
			}
		})
	}
}

func TestGroupConsumer_Start(t *testing.T) {
	t.Run("creates group on start", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		mock.ExpectXGroupCreateMkStream("round-events", "audit", "0").SetVal("OK")

		consumer, err := NewGroupConsumer[TestEvent](client, "round-events", "audit", "audit-1")
		require.NoError(t, err)

		require.NoError(t, consumer.Start())
		time.Sleep(100 * time.Millisecond)
		assert.NoError(t, consumer.Close())
	})

	t.Run("existing group is not an error", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		mock.ExpectXGroupCreateMkStream("round-events", "audit", "0").
			SetErr(errors.New("BUSYGROUP Consumer Group name already exists"))

		consumer, err := NewGroupConsumer[TestEvent](client, "round-events", "audit", "audit-1")
		require.NoError(t, err)

		require.NoError(t, consumer.Start())
		time.Sleep(100 * time.Millisecond)
		assert.NoError(t, consumer.Close())
	})

	t.Run("group creation failure", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		mock.ExpectXGroupCreateMkStream("round-events", "audit", "0").
			SetErr(redis.ErrClosed)

		consumer, err := NewGroupConsumer[TestEvent](client, "round-events", "audit", "audit-1")
		require.NoError(t, err)

		assert.Error(t, consumer.Start())
	})
}

func TestGroupConsumer_MessageAck(t *testing.T) {
	t.Run("done acknowledges message", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		event := TestEvent{Kind: "lot_sold", LotID: "alpha", Seat: 1, Amount: 200}
		values, err := EncodeMessage(event)
		require.NoError(t, err)

		mock.ExpectXGroupCreateMkStream("round-events", "audit", "0").SetVal("OK")
		mock.ExpectXReadGroup(&redis.XReadGroupArgs{
			Group:    "audit",
			Consumer: "audit-1",
			Streams:  []string{"round-events", ">"},
			Count:    1,
			Block:    time.Second,
		}).SetVal([]redis.XStream{
			{
				Stream:   "round-events",
				Messages: []redis.XMessage{{ID: "1234-0", Values: values}},
			},
		})
		mock.ExpectXAck("round-events", "audit", "1234-0").SetVal(1)

		consumer, err := NewGroupConsumer[TestEvent](client, "round-events", "audit", "audit-1")
		require.NoError(t, err)

		require.NoError(t, consumer.Start())
		defer consumer.Close()

		select {
		case msg := <-consumer.Subscribe():
			assert.Equal(t, event, msg.Data)
			assert.NoError(t, msg.Done(context.Background()))
			// Done is idempotent
			assert.NoError(t, msg.Done(context.Background()))
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("fail routes message to dead letter stream", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		client, mock, cleanup := setupTest(t)
		defer cleanup()

		event := TestEvent{Kind: "passed", LotID: "beta"}
		values, err := EncodeMessage(event)
		require.NoError(t, err)

		mock.ExpectXGroupCreateMkStream("round-events", "audit", "0").SetVal("OK")
		mock.ExpectXReadGroup(&redis.XReadGroupArgs{
			Group:    "audit",
			Consumer: "audit-1",
			Streams:  []string{"round-events", ">"},
			Count:    1,
			Block:    time.Second,
		}).SetVal([]redis.XStream{
			{
				Stream:   "round-events",
				Messages: []redis.XMessage{{ID: "1234-0", Values: values}},
			},
		})
		mock.ExpectXAdd(&redis.XAddArgs{
			Stream: "round-events:dead",
			Values: map[string]any{"origin": "1234-0", "error": "audit write failed"},
		}).SetVal("1-0")
		mock.ExpectXAck("round-events", "audit", "1234-0").SetVal(1)

		consumer, err := NewGroupConsumer[TestEvent](client, "round-events", "audit", "audit-1")
		require.NoError(t, err)

		require.NoError(t, consumer.Start())
		defer consumer.Close()

		select {
		case msg := <-consumer.Subscribe():
			assert.NoError(t, msg.Fail(context.Background(), errors.New("audit write failed")))
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	})
}
