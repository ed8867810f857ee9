package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message 包裝一筆 group 訊息。
// 處理完成後必須呼叫 Done 或 Fail，否則訊息會留在 pending 清單。
type Message[T any] struct {
	ID   string
	Data T

	client *redis.Client
	stream string
	group  string
	acked  bool
	mu     sync.Mutex
}

// Done 確認訊息處理成功
func (m *Message[T]) Done(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acked {
		return nil
	}
	if err := m.client.XAck(ctx, m.stream, m.group, m.ID).Err(); err != nil {
		return fmt.Errorf("fail to ack message %s, err=%w", m.ID, err)
	}
	m.acked = true
	return nil
}

// Fail 確認訊息處理失敗：轉入 dead-letter 串流後確認，
// 避免同一筆訊息無限重派。
func (m *Message[T]) Fail(ctx context.Context, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acked {
		return nil
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	err := m.client.XAdd(ctx, &redis.XAddArgs{
		Stream: m.stream + ":dead",
		Values: map[string]any{"origin": m.ID, "error": reason},
	}).Err()
	if err != nil {
		return fmt.Errorf("fail to dead-letter message %s, err=%w", m.ID, err)
	}
	if err := m.client.XAck(ctx, m.stream, m.group, m.ID).Err(); err != nil {
		return fmt.Errorf("fail to ack failed message %s, err=%w", m.ID, err)
	}
	m.acked = true
	return nil
}

type groupConsumerOptions[T any] struct {
	logger       *slog.Logger
	bufferSize   int
	blockTimeout time.Duration
	decodeFunc   func(map[string]any) (T, error)
}

type GroupConsumerOption[T any] func(*groupConsumerOptions[T])

// WithGroupConsumerLogger 設置日誌記錄器
func WithGroupConsumerLogger[T any](logger *slog.Logger) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.logger = logger
	}
}

// WithGroupConsumerBufferSize 設置下游 channel 的緩衝大小
func WithGroupConsumerBufferSize[T any](size int) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.bufferSize = size
	}
}

// WithGroupConsumerBlockTimeout 設置阻塞讀取超時時間
func WithGroupConsumerBlockTimeout[T any](d time.Duration) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.blockTimeout = d
	}
}

// WithGroupConsumerDecodeFunc 設置自定義解析函數
func WithGroupConsumerDecodeFunc[T any](fn func(map[string]any) (T, error)) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.decodeFunc = fn
	}
}

// GroupConsumer 以 consumer group 讀取事件串流，
// 提供至少一次的處理保證，供稽核 worker 將事件存回資料庫。
type GroupConsumer[T any] struct {
	client       *redis.Client
	stream       string
	group        string
	consumerName string
	downStream   chan *Message[T]
	cancelFunc   context.CancelFunc
	wg           sync.WaitGroup
	closed       bool
	logger       *slog.Logger
	options      groupConsumerOptions[T]
}

// NewGroupConsumer 建立 group 消費者。
// group 不存在時會在 Start 時自動建立（含串流本身）。
func NewGroupConsumer[T any](client *redis.Client, stream, group, consumerName string, opts ...GroupConsumerOption[T]) (*GroupConsumer[T], error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if stream == "" {
		return nil, errors.New("stream cannot be empty")
	}
	if group == "" {
		return nil, errors.New("group cannot be empty")
	}
	if consumerName == "" {
		return nil, errors.New("consumer name cannot be empty")
	}

	options := groupConsumerOptions[T]{
		logger:       slog.Default(),
		bufferSize:   100,
		blockTimeout: time.Second,
		decodeFunc:   DecodeMessage[T],
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &GroupConsumer[T]{
		client:       client,
		stream:       stream,
		group:        group,
		consumerName: consumerName,
		closed:       true,
		logger: options.logger.With(
			slog.String("caller", "GroupConsumer"),
			slog.String("stream", stream),
			slog.String("group", group)),
		options: options,
	}, nil
}

// Start 建立 consumer group 並啟動消費 goroutine
func (g *GroupConsumer[T]) Start() error {
	const op = "GroupConsumer.Start"
	if !g.closed {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	err := g.client.XGroupCreateMkStream(ctx, g.stream, g.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		cancel()
		return fmt.Errorf("[%s] fail to create consumer group, err=%w", op, err)
	}

	g.downStream = make(chan *Message[T], g.options.bufferSize)
	g.cancelFunc = cancel
	g.closed = false
	g.logger.Info("starting group consumer")

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.logger.Info("group consumer goroutine stopped")
		defer close(g.downStream)

		for {
			select {
			case <-ctx.Done():
				return
			default:
				streams, err := g.client.XReadGroup(ctx, &redis.XReadGroupArgs{
					Group:    g.group,
					Consumer: g.consumerName,
					Streams:  []string{g.stream, ">"},
					Count:    1,
					Block:    g.options.blockTimeout,
				}).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) {
						continue
					}
					if errors.Is(err, context.Canceled) {
						return
					}
					g.logger.Error("read group error", slog.Any("error", err))
					continue
				}
				for _, stream := range streams {
					for _, raw := range stream.Messages {
						g.dispatch(ctx, raw)
					}
				}
			}
		}
	}()
	return nil
}

func (g *GroupConsumer[T]) dispatch(ctx context.Context, raw redis.XMessage) {
	data, err := g.options.decodeFunc(raw.Values)
	if err != nil {
		g.logger.Error("failed to decode message",
			slog.String("messageId", raw.ID),
			slog.Any("error", err))
		// 無法解析的訊息直接進 dead-letter，避免卡住 pending 清單
		bad := &Message[T]{ID: raw.ID, client: g.client, stream: g.stream, group: g.group}
		if err := bad.Fail(ctx, err); err != nil {
			g.logger.Error("fail to dead-letter undecodable message", slog.Any("error", err))
		}
		return
	}

	msg := &Message[T]{
		ID:     raw.ID,
		Data:   data,
		client: g.client,
		stream: g.stream,
		group:  g.group,
	}
	select {
	case <-ctx.Done():
	case g.downStream <- msg:
		g.logger.Debug("message dispatched", slog.String("messageId", raw.ID))
	}
}

// Subscribe 訂閱待處理訊息
func (g *GroupConsumer[T]) Subscribe() <-chan *Message[T] {
	return g.downStream
}

// Close 關閉消費者並等待 goroutine 結束
func (g *GroupConsumer[T]) Close() error {
	if g.closed {
		return nil
	}
	g.logger.Info("closing group consumer")
	g.closed = true
	g.cancelFunc()
	g.wg.Wait()
	g.logger.Info("group consumer closed")
	return nil
}
