package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	redisAdapter "ipo/adapters/redis"
	"ipo/adapters/sse"
	"ipo/engine"
)

// EventInfo 是寫入事件串流的回合事件。
// Sequence 由發布腳本在 Redis 上產生，不參與 msgpack 序列化，
// 消費端從串流欄位讀回後補上。
type EventInfo struct {
	RoundID   uuid.UUID           `msgpack:"roundId"`
	Kind      string              `msgpack:"kind"`
	LotID     string              `msgpack:"lotId"`
	Seat      int                 `msgpack:"seat"`
	SeatName  string              `msgpack:"seatName"`
	Amount    int                 `msgpack:"amount"`
	Result    *engine.RoundResult `msgpack:"result"`
	CreatedAt time.Time           `msgpack:"createdAt"`

	Sequence uint64 `msgpack:"-"`
}

// RoundEvent 是推送給 SSE 訂閱者的事件格式
type RoundEvent struct {
	Seq      uint64              `json:"seq"`
	Kind     string              `json:"kind"`
	LotID    string              `json:"lotId,omitempty"`
	Seat     int                 `json:"seat"`
	SeatName string              `json:"seatName,omitempty"`
	Amount   int                 `json:"amount,omitempty"`
	Result   *engine.RoundResult `json:"result,omitempty"`
	Time     time.Time           `json:"time"`
}

// newEventInfo 將引擎事件轉換為串流格式
func newEventInfo(roundID uuid.UUID, seatName string, event engine.Event) EventInfo {
	return EventInfo{
		RoundID:   roundID,
		Kind:      string(event.Kind),
		LotID:     event.LotID,
		Seat:      int(event.Seat),
		SeatName:  seatName,
		Amount:    event.Amount,
		Result:    event.Result,
		CreatedAt: event.Time,
	}
}

// decodeEventInfo 還原串流訊息並補上發布腳本產生的序號
func decodeEventInfo(values map[string]any) (EventInfo, error) {
	info, err := redisAdapter.DecodeMessage[EventInfo](values)
	if err != nil {
		return EventInfo{}, err
	}
	if raw, ok := values["seq"].(string); ok {
		seq, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return EventInfo{}, fmt.Errorf("invalid sequence field %q, err=%w", raw, err)
		}
		info.Sequence = seq
	}
	return info, nil
}

// decodePublishRequest 將串流訊息轉換為 SSE 廣播請求，
// 頻道名稱即回合ID。
func decodePublishRequest(values map[string]any) (sse.PublishRequest[RoundEvent], error) {
	info, err := decodeEventInfo(values)
	if err != nil {
		return sse.PublishRequest[RoundEvent]{}, fmt.Errorf("fail to decode round event, err=%w", err)
	}
	return sse.PublishRequest[RoundEvent]{
		Channel: info.RoundID.String(),
		Message: RoundEvent{
			Seq:      info.Sequence,
			Kind:     info.Kind,
			LotID:    info.LotID,
			Seat:     info.Seat,
			SeatName: info.SeatName,
			Amount:   info.Amount,
			Result:   info.Result,
			Time:     info.CreatedAt,
		},
	}, nil
}
