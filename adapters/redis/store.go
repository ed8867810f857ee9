package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store 提供基於 Redis hash 的回合快照儲存，
// 讓讀取端不必打進持有回合狀態的程序就能取得最新快照。
type Store struct {
	client  *redis.Client
	options StoreOptions
}

// StoreOptions 定義了 Store 的配置選項
type StoreOptions struct {
	Prefix string
	TTL    time.Duration
}

type StoreOption func(*StoreOptions)

// WithStorePrefix 設定 Store 的 key 前綴
func WithStorePrefix(prefix string) StoreOption {
	return func(o *StoreOptions) {
		o.Prefix = prefix
	}
}

// WithStoreTTL 設定快照的存活時間，回合結束後快照自動過期
func WithStoreTTL(ttl time.Duration) StoreOption {
	return func(o *StoreOptions) {
		o.TTL = ttl
	}
}

// NewStore 建立一個新的 Store 實例
func NewStore(client *redis.Client, opts ...StoreOption) IStore {
	options := &StoreOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return &Store{
		client:  client,
		options: *options,
	}
}

// Load 從 Redis 中載入指定名稱的快照
func (s *Store) Load(ctx context.Context, name string) (map[string]string, error) {
	const op = "redis.Store.Load"
	key := s.options.Prefix + name

	result, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get hash: %w", op, err)
	}

	// Redis returns empty map when key doesn't exist
	return result, nil
}

// saveScript 是用於原子性地替換 hash 內容的 Lua 腳本。
// KEYS[1] 為快照鍵，ARGV[1] 為 TTL 秒數（0 表示不過期），
// 其後為交錯的欄位與值。
var saveScript = redis.NewScript(`
local key = KEYS[1]
local ttl = tonumber(ARGV[1])
redis.call('DEL', key)
if #ARGV > 1 then
    redis.call('HSET', key, unpack(ARGV, 2))
end
if ttl > 0 then
    redis.call('EXPIRE', key, ttl)
end
return 1
`)

// Save 將快照儲存到 Redis 中
// NOTE: 會先刪除舊的資料，再設定新的資料，這個過程是原子性的
func (s *Store) Save(ctx context.Context, name string, data map[string]string) error {
	const op = "redis.Store.Save"
	key := s.options.Prefix + name

	args := make([]any, 0, len(data)*2+1)
	args = append(args, strconv.FormatInt(int64(s.options.TTL/time.Second), 10))
	for k, v := range data {
		args = append(args, k, v)
	}

	err := saveScript.Run(ctx, s.client, []string{key}, args...).Err()
	if err != nil {
		return fmt.Errorf("%s: failed to execute save script: %w", op, err)
	}

	return nil
}
