package redis

import (
	"context"
)

// IProducer 定義了將事件寫入 Redis Stream 的操作介面
type IProducer[T any] interface {
	Start()
	Publish(data T) error
	Close()
}

// IConsumer 定義了即時讀取 Redis Stream 的操作介面。
// 每個 Consumer 都從訂閱當下的串流尾端開始讀取。
type IConsumer[T any] interface {
	Start()
	Subscribe() <-chan T
	Close()
}

// IGroupConsumer 定義了以 consumer group 讀取 Redis Stream 的操作介面。
// 訊息必須被 Done 或 Fail 明確確認，提供至少一次的處理保證。
type IGroupConsumer[T any] interface {
	Start() error
	Subscribe() <-chan *Message[T]
	Close() error
}

// IAutoRenewMutex 定義了帶自動續期的分散式鎖介面
type IAutoRenewMutex interface {
	Lock(ctx context.Context) (context.Context, error)
	Unlock() (bool, error)
	Valid() bool
}

// IStore 定義了以 Redis hash 儲存快照的介面
type IStore interface {
	Load(ctx context.Context, name string) (map[string]string, error)
	Save(ctx context.Context, name string, data map[string]string) error
}
