package weather

import "time"

// DefaultStaleAfter is the age at which a cached payload becomes eligible for
// refresh.
const DefaultStaleAfter = 600 * time.Second

// SlotState is the freshness of one (location, kind) slot.
type SlotState int

const (
	StateEmpty SlotState = iota
	StateFresh
	StateStale
)

func (s SlotState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "invalid"
	}
}

// Action is what a caller should do to satisfy a request for a slot.
type Action int

const (
	ActionReturnCached Action = iota
	ActionDownload
)

func (a Action) String() string {
	if a == ActionReturnCached {
		return "return-cached"
	}
	return "download"
}

// CachePolicy decides between cached payloads and downloads.
type CachePolicy struct {
	StaleAfter time.Duration
}

// DefaultCachePolicy uses DefaultStaleAfter.
func DefaultCachePolicy() CachePolicy {
	return CachePolicy{StaleAfter: DefaultStaleAfter}
}

func (p CachePolicy) threshold() time.Duration {
	if p.StaleAfter <= 0 {
		return DefaultStaleAfter
	}
	return p.StaleAfter
}

// State reports the freshness of slot at now. A download timestamp in the
// future (clock skew) counts as fresh.
func (p CachePolicy) State(slot Slot, now time.Time) SlotState {
	if slot.Empty() || slot.DownloadedAt.IsZero() {
		return StateEmpty
	}
	if now.Sub(slot.DownloadedAt) < p.threshold() {
		return StateFresh
	}
	return StateStale
}

// Resolve returns ActionReturnCached only for a fresh slot when force is false.
func (p CachePolicy) Resolve(slot Slot, force bool, now time.Time) Action {
	if !force && p.State(slot, now) == StateFresh {
		return ActionReturnCached
	}
	return ActionDownload
}
