package budget

import "time"

// Floor is the smallest allowance handed to any outbound call. Even a nearly
// exhausted budget still permits one genuine attempt; only a fully exhausted
// budget returns zero.
const Floor = 2 * time.Second

// Budget is the shared, monotonically shrinking time allowance for one
// inbound request. It is immutable after New and safe for concurrent reads;
// every resolver receives the same instance by reference.
type Budget struct {
	start time.Time
	max   time.Duration
}

func New(max time.Duration) *Budget {
	return &Budget{start: time.Now(), max: max}
}

// NewAt is New with an explicit start instant, for tests.
func NewAt(start time.Time, max time.Duration) *Budget {
	return &Budget{start: start, max: max}
}

func (b *Budget) Elapsed() time.Duration {
	return time.Since(b.start)
}

func (b *Budget) Remaining() time.Duration {
	r := b.max - b.Elapsed()
	if r < 0 {
		return 0
	}
	return r
}

func (b *Budget) Expired() bool {
	return b.Remaining() == 0
}

// AllowanceFor bounds one outbound call: the requested stage maximum, capped
// by the remaining budget, but never below Floor so a late-started stage
// still gets a real attempt. An exhausted budget returns 0 and the caller
// must report an un-attempted timeout rather than issue the call.
func (b *Budget) AllowanceFor(requestedMax time.Duration) time.Duration {
	remaining := b.Remaining()
	if remaining == 0 {
		return 0
	}
	allowance := requestedMax
	if remaining < allowance {
		allowance = remaining
	}
	if allowance < Floor {
		allowance = Floor
	}
	return allowance
}
