package api

import "github.com/redis/go-redis/v9"

// EventScript 用於發布回合事件
//  KEYS[1] - 回合的事件序號鍵
//  KEYS[2] - 事件的 stream
//  ARGV[1] - base64 編碼的事件內容
//  ARGV[2] - 序號鍵的過期秒數（0 表示不過期）
//
// 返回值:
//  新產生的事件序號
//
// 流程:
//  - 1. 遞增回合的事件序號
//  - 2. 設定序號鍵的過期時間
//  - 3. 將事件內容與序號一併寫入stream
//  - 4. 返回序號
//
// NOTE: 序號遞增與寫入stream必須是原子性的，否則多實例同時
//       發布時訂閱端看到的序號可能與串流順序不一致。
var EventScript = redis.NewScript(`
-- 產生事件序號
local seq = redis.call('INCR', KEYS[1])

-- 設定序號鍵的過期時間
local ttl = tonumber(ARGV[2])
if ttl > 0 then
    redis.call('EXPIRE', KEYS[1], ttl)
end

-- 將事件寫入 stream
redis.call('XADD', KEYS[2], '*',
    'data', ARGV[1],
    'seq', seq)

return seq
`)
