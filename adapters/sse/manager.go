package sse

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	redisAdapter "ipo/adapters/redis"
)

// connectionManager 管理多個回合頻道的訂閱與廣播。
// 事件來源是注入的 Redis Stream 消費者，讓多個服務實例能夠協同運作：
// 任何一個實例寫入串流的事件，所有實例的 SSE 連線都會收到。
type connectionManager[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.RWMutex
	wg     sync.WaitGroup
	active bool

	subscriber redisAdapter.IConsumer[PublishRequest[T]]
	publisher  redisAdapter.IProducer[PublishRequest[T]]
	channels   map[string]IChannel[T]
}

type managerOptions[T any] struct {
	logger     *slog.Logger
	subscriber redisAdapter.IConsumer[PublishRequest[T]]
	publisher  redisAdapter.IProducer[PublishRequest[T]]
}

type ManagerOption[T any] func(*managerOptions[T])

// WithLogger 設置日誌記錄器
func WithLogger[T any](logger *slog.Logger) ManagerOption[T] {
	return func(o *managerOptions[T]) {
		o.logger = logger
	}
}

// WithSubscriber 設置事件來源的串流消費者
func WithSubscriber[T any](subscriber redisAdapter.IConsumer[PublishRequest[T]]) ManagerOption[T] {
	return func(o *managerOptions[T]) {
		o.subscriber = subscriber
	}
}

// WithPublisher 設置事件發布用的串流生產者。
// 未設置時 Publish 只會廣播給本實例的訂閱者。
func WithPublisher[T any](publisher redisAdapter.IProducer[PublishRequest[T]]) ManagerOption[T] {
	return func(o *managerOptions[T]) {
		o.publisher = publisher
	}
}

// NewConnectionManager 建立一個新的連線管理器
func NewConnectionManager[T any](opts ...ManagerOption[T]) (IConnectionManager[T], error) {
	options := managerOptions[T]{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.subscriber == nil {
		return nil, errors.New("subscriber cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &connectionManager[T]{
		ctx:        ctx,
		cancel:     cancel,
		logger:     options.logger.With(slog.String("caller", "ConnectionManager")),
		channels:   make(map[string]IChannel[T]),
		subscriber: options.subscriber,
		publisher:  options.publisher,
		active:     true,
	}, nil
}

// Start 啟動連線管理器，開始處理訊息的接收與廣播。
// 應在呼叫其他方法前先呼叫此方法。
func (cm *connectionManager[T]) Start() {
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		for {
			select {
			case <-cm.ctx.Done():
				return
			case msg, ok := <-cm.subscriber.Subscribe():
				if !ok {
					return
				}
				cm.mu.RLock()
				if channel, exists := cm.channels[msg.Channel]; exists {
					channel.Broadcast(msg.Message)
				}
				cm.mu.RUnlock()
			}
		}
	}()
}

// Done 停止連線管理器的運作。
func (cm *connectionManager[T]) Done() {
	cm.mu.Lock()
	if !cm.active {
		cm.mu.Unlock()
		return
	}
	cm.active = false
	cm.cancel()
	cm.mu.Unlock()

	// 廣播 goroutine 可能正在等待讀鎖，必須先放掉寫鎖再等待
	cm.wg.Wait()

	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, channel := range cm.channels {
		channel.UnsubscribeAll()
	}
	clear(cm.channels)
}

// Subscribe 訂閱指定的頻道。
// channelName: 要訂閱的回合ID
// 返回: 用於接收事件的唯讀通道，以及可能的錯誤
func (cm *connectionManager[T]) Subscribe(channelName string) (<-chan T, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return nil, context.Canceled
	}

	c, ok := cm.channels[channelName]
	if !ok {
		c = NewChannel[T]()
		cm.channels[channelName] = c
	}
	return c.Subscribe(), nil
}

// Publish 發布事件到指定的頻道。
// 設有 publisher 時經由串流廣播到所有實例，否則只廣播給本實例的訂閱者。
func (cm *connectionManager[T]) Publish(channelName string, data T) error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if !cm.active {
		return context.Canceled
	}

	request := PublishRequest[T]{
		Channel: channelName,
		Message: data,
	}
	if cm.publisher != nil {
		return cm.publisher.Publish(request)
	}
	if channel, exists := cm.channels[channelName]; exists {
		channel.Broadcast(data)
	}
	return nil
}

// Unsubscribe 取消訂閱指定的頻道。
func (cm *connectionManager[T]) Unsubscribe(channelName string, ch <-chan T) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.channels[channelName]
	if !ok {
		return
	}

	c.Unsubscribe(ch)
	if c.IsIdle() {
		delete(cm.channels, channelName)
	}
}
