package engine

// Seat 是玩家在固定行動順序中的索引
type Seat int

// NoSeat 表示沒有任何玩家
const NoSeat Seat = -1

// Sequencer 追蹤當前行動玩家、優先權指標與棄權狀態。
// 它是純值物件：不依賴玩家名冊，單元測試可以直接建構。
type Sequencer struct {
	n        int
	current  Seat
	priority Seat
	passes   int
	inactive map[string]map[Seat]bool
}

// NewSequencer 建立 n 個座位的序列器，優先權與當前玩家都從座位 0 開始
func NewSequencer(n int) *Sequencer {
	return &Sequencer{
		n:        n,
		inactive: make(map[string]map[Seat]bool),
	}
}

// Seats 回傳座位數
func (s *Sequencer) Seats() int { return s.n }

// Current 回傳當前行動玩家
func (s *Sequencer) Current() Seat { return s.current }

// Priority 回傳優先權玩家：新標的開放或完整一輪棄權後最先行動的人
func (s *Sequencer) Priority() Seat { return s.priority }

// Passes 回傳連續棄權次數
func (s *Sequencer) Passes() int { return s.passes }

// next 回傳 seat 的下一個座位（環狀）
func (s *Sequencer) next(seat Seat) Seat {
	return Seat((int(seat) + 1) % s.n)
}

// Advance 將當前玩家移到下一個座位
func (s *Sequencer) Advance() {
	s.current = s.next(s.current)
}

// AdvancePriority 將優先權移到下一個座位，並把行動權交給新優先權玩家
func (s *Sequencer) AdvancePriority() {
	s.priority = s.next(s.priority)
	s.current = s.priority
}

// SetPriorityAfter 把優先權移到指定座位的下一位（不改變當前玩家）
func (s *Sequencer) SetPriorityAfter(seat Seat) {
	s.priority = s.next(seat)
}

// RestoreToPriority 把行動權交回優先權玩家（新標的開放時）
func (s *Sequencer) RestoreToPriority() {
	s.current = s.priority
}

// SetCurrent 直接指定當前行動玩家
func (s *Sequencer) SetCurrent(seat Seat) {
	s.current = seat
}

// CountPass 累計一次棄權並回傳累計值
func (s *Sequencer) CountPass() int {
	s.passes++
	return s.passes
}

// ResetPasses 在任何出價或購買後清除連續棄權計數
func (s *Sequencer) ResetPasses() {
	s.passes = 0
}

// MarkPassed 標記玩家對某標的永久棄權
func (s *Sequencer) MarkPassed(lotID string, seat Seat) {
	set, ok := s.inactive[lotID]
	if !ok {
		set = make(map[Seat]bool)
		s.inactive[lotID] = set
	}
	set[seat] = true
}

// ActiveOn 判斷玩家在標的上是否仍可行動
func (s *Sequencer) ActiveOn(lotID string, seat Seat) bool {
	return !s.inactive[lotID][seat]
}

// ActiveSeats 回傳仍可對標的行動的座位（依座位順序）
func (s *Sequencer) ActiveSeats(lotID string) []Seat {
	var out []Seat
	for i := 0; i < s.n; i++ {
		if s.ActiveOn(lotID, Seat(i)) {
			out = append(out, Seat(i))
		}
	}
	return out
}

// AdvanceActiveOn 將當前玩家移到下一個仍可對標的行動的座位。
// 找不到任何其他行動者時當前玩家不變。
func (s *Sequencer) AdvanceActiveOn(lotID string) {
	for i := 0; i < s.n; i++ {
		candidate := s.next(s.current + Seat(i))
		if s.ActiveOn(lotID, candidate) {
			s.current = candidate
			return
		}
	}
}

// ClearLot 清除標的的棄權紀錄（標的結算後不再需要）
func (s *Sequencer) ClearLot(lotID string) {
	delete(s.inactive, lotID)
}
