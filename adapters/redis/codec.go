package redis

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrPointerType 表示序列化目標不可為指標類型
	ErrPointerType = errors.New("pointer type is not allowed")
	// ErrConsumerClosed 表示生產者或消費者已關閉
	ErrConsumerClosed = errors.New("consumer is closed")
)

// EncodeMessage 將 struct 以 msgpack 序列化、base64 編碼後
// 封裝為 Redis Stream 的欄位 map
func EncodeMessage[T any](data T) (map[string]any, error) {
	if reflect.TypeOf(data).Kind() == reflect.Ptr {
		return nil, ErrPointerType
	}

	bytes, err := msgpack.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal error: %w", err)
	}

	return map[string]any{
		"data": base64.StdEncoding.EncodeToString(bytes),
	}, nil
}

// DecodeMessage 將 Redis Stream 的欄位 map 還原為 struct
func DecodeMessage[T any](message map[string]any) (T, error) {
	var result T
	if reflect.TypeOf(result).Kind() == reflect.Ptr {
		return result, ErrPointerType
	}
	if len(message) == 0 {
		return result, nil
	}

	dataStr, ok := message["data"].(string)
	if !ok {
		return result, fmt.Errorf("data field not found or invalid type")
	}

	bytes, err := base64.StdEncoding.DecodeString(dataStr)
	if err != nil {
		return result, fmt.Errorf("base64 decode error: %w", err)
	}

	if err := msgpack.Unmarshal(bytes, &result); err != nil {
		return result, fmt.Errorf("msgpack unmarshal error: %w", err)
	}
	return result, nil
}
