package sse_test

import (
	"io"
	"log"

	"ipo/adapters/sse"
)

func init() {
	// 將日誌輸出重定向到io.Discard
	log.SetOutput(io.Discard)
}

// Message 模擬推送給訂閱者的回合事件
type Message struct {
	Kind   string `json:"kind"`
	Amount int    `json:"amount"`
}

// stubConsumer 以記憶體通道模擬事件串流的消費者
type stubConsumer struct {
	ch chan sse.PublishRequest[Message]
}

func newStubConsumer() *stubConsumer {
	return &stubConsumer{ch: make(chan sse.PublishRequest[Message], 10)}
}

func (s *stubConsumer) Start() {}

func (s *stubConsumer) Subscribe() <-chan sse.PublishRequest[Message] {
	return s.ch
}

func (s *stubConsumer) Close() {
	close(s.ch)
}

// stubProducer 記錄被發布的請求
type stubProducer struct {
	published []sse.PublishRequest[Message]
}

func (s *stubProducer) Start() {}

func (s *stubProducer) Publish(data sse.PublishRequest[Message]) error {
	s.published = append(s.published, data)
	return nil
}

func (s *stubProducer) Close() {}
