package engine

import (
	"errors"
	"fmt"
)

// Code 表示動作被拒絕的原因分類
type Code int

const (
	// CodeWrongTurn 表示動作者不是當前輪到的玩家
	CodeWrongTurn Code = iota + 1
	// CodeNotBiddable 表示標的目前不可出價
	CodeNotBiddable
	// CodeBidTooLow 表示出價低於目前的最低出價
	CodeBidTooLow
	// CodeBadIncrement 表示出價不是規定步進的整數倍
	CodeBadIncrement
	// CodeInsufficientFunds 表示玩家可用資金不足
	CodeInsufficientFunds
	// CodeInvalidFollowUp 表示定價動作的標的、玩家或狀態不正確
	CodeInvalidFollowUp
)

func (c Code) String() string {
	switch c {
	case CodeWrongTurn:
		return "WrongTurn"
	case CodeNotBiddable:
		return "NotBiddable"
	case CodeBidTooLow:
		return "BidTooLow"
	case CodeBadIncrement:
		return "BadIncrement"
	case CodeInsufficientFunds:
		return "InsufficientFunds"
	case CodeInvalidFollowUp:
		return "InvalidFollowUp"
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Rejection 表示一次可恢復的拒絕：引擎狀態完全未改變，
// 呼叫端修正後重新提交即可。
type Rejection struct {
	Code   Code
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Code.String()
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Detail)
}

func reject(code Code, format string, args ...any) error {
	return &Rejection{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// RejectionCode 從錯誤中取出拒絕分類，若錯誤不是 Rejection 則回傳 0
func RejectionCode(err error) Code {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Code
	}
	return 0
}

// InvariantError 表示呼叫端協議錯誤（引用不存在的標的或玩家、
// 在沒有待定價標的時送出定價等）。這是唯一的致命錯誤類別：
// 回合應中止而不是嘗試恢復。
type InvariantError struct {
	Detail string
}

func (e *InvariantError) Error() string {
	return "InvariantViolation: " + e.Detail
}

func invariant(format string, args ...any) error {
	return &InvariantError{Detail: fmt.Sprintf(format, args...)}
}

// IsFatal 判斷錯誤是否屬於致命類別
func IsFatal(err error) bool {
	var e *InvariantError
	return errors.As(err, &e)
}

// ErrRoundAborted 表示回合已因致命錯誤中止，不再接受任何動作
var ErrRoundAborted = errors.New("round aborted by invariant violation")
