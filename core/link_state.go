package core

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxSNRSamples bounds the per-link SNR series when no explicit
// capacity is configured.
const DefaultMaxSNRSamples = 1000

type snrSample struct {
	Value float64
	At    time.Time
}

type packetCounter struct {
	Tx uint64
	Rx uint64
}

type lossEvent struct {
	Key LinkKey
	At  time.Time
}

// LinkStateBuffer converts raw per-sample telemetry into queryable per-link
// statistics: a bounded time-ordered SNR series, monotonically increasing
// tx/rx packet counters, and a global timestamped loss-event log for
// windowed queries.
//
// All entry points canonicalize the node pair, so (a,b) and (b,a) always
// address the same series and counters. The buffer performs no background
// eviction: the owner is expected to call ClearOldEvents periodically to
// bound the loss log.
//
// The buffer lives in a single time domain. Event timestamps and the "now"
// used by windowed queries and pruning must come from the same clock: an
// owner that stamps events with simulation time must also advance the
// buffer's reference time via SetReferenceTime, otherwise a simulation
// clock running ahead of the wall clock makes every event look recent and
// pruning never removes anything.
type LinkStateBuffer struct {
	mu sync.RWMutex

	maxSamples int
	samples    map[LinkKey][]snrSample
	counters   map[LinkKey]*packetCounter
	lossEvents []lossEvent

	now func() time.Time
}

// NewLinkStateBuffer creates a buffer holding at most maxSamples SNR
// readings per link. Non-positive values select DefaultMaxSNRSamples.
func NewLinkStateBuffer(maxSamples int) *LinkStateBuffer {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSNRSamples
	}
	return &LinkStateBuffer{
		maxSamples: maxSamples,
		samples:    make(map[LinkKey][]snrSample),
		counters:   make(map[LinkKey]*packetCounter),
		now:        time.Now,
	}
}

// SetReferenceTime pins the buffer's notion of "now" to the given instant.
// Owners that stamp events with simulation time call this every tick so
// windowed queries and pruning operate in simulation time rather than wall
// time. The default reference is the wall clock.
func (b *LinkStateBuffer) SetReferenceTime(t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = func() time.Time { return t }
}

// UpdateSNR appends an SNR reading to the canonical link's bounded sample
// series, evicting the oldest reading once capacity is exceeded. A zero
// timestamp means "now".
func (b *LinkStateBuffer) UpdateSNR(nodeA, nodeB int, snr float64, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if at.IsZero() {
		at = b.now()
	}
	key := NewLinkKey(nodeA, nodeB)
	series := append(b.samples[key], snrSample{Value: snr, At: at})
	if len(series) > b.maxSamples {
		series = series[len(series)-b.maxSamples:]
	}
	b.samples[key] = series
}

// RecordTx increments the transmit counter for the canonical link.
func (b *LinkStateBuffer) RecordTx(nodeA, nodeB int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counterLocked(nodeA, nodeB).Tx++
}

// RecordRx increments the receive counter for the canonical link.
func (b *LinkStateBuffer) RecordRx(nodeA, nodeB int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counterLocked(nodeA, nodeB).Rx++
}

// RecordLoss appends a loss event for the canonical link to the global
// event log. A zero timestamp means "now".
func (b *LinkStateBuffer) RecordLoss(nodeA, nodeB int, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if at.IsZero() {
		at = b.now()
	}
	b.lossEvents = append(b.lossEvents, lossEvent{Key: NewLinkKey(nodeA, nodeB), At: at})
}

// GetAverageSNR returns the mean of the link's sample series, or 0.0 when
// no samples exist. Callers must treat 0.0 as "no data", not as a genuine
// minimum SNR.
func (b *LinkStateBuffer) GetAverageSNR(nodeA, nodeB int) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	series := b.samples[NewLinkKey(nodeA, nodeB)]
	if len(series) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, s := range series {
		sum += s.Value
	}
	return sum / float64(len(series))
}

// GetLatestSNR returns the most recent SNR reading, or 0.0 when no samples
// exist.
func (b *LinkStateBuffer) GetLatestSNR(nodeA, nodeB int) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	series := b.samples[NewLinkKey(nodeA, nodeB)]
	if len(series) == 0 {
		return 0.0
	}
	return series[len(series)-1].Value
}

// GetPacketLossRate computes (tx − rx) / tx for the canonical link, or 0.0
// when nothing has been transmitted yet.
func (b *LinkStateBuffer) GetPacketLossRate(nodeA, nodeB int) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.counters[NewLinkKey(nodeA, nodeB)]
	if !ok || c.Tx == 0 || c.Rx >= c.Tx {
		return 0.0
	}
	return float64(c.Tx-c.Rx) / float64(c.Tx)
}

// GetRecentLossEvents counts logged loss events for the canonical link
// within [now − window, now].
func (b *LinkStateBuffer) GetRecentLossEvents(nodeA, nodeB int, window time.Duration) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	key := NewLinkKey(nodeA, nodeB)
	cutoff := b.now().Add(-window)
	count := 0
	for _, ev := range b.lossEvents {
		if ev.Key == key && !ev.At.Before(cutoff) {
			count++
		}
	}
	return count
}

// ClearOldEvents prunes the global loss log, keeping only events newer than
// (now − maxAge). The log is otherwise unbounded, so the owner must call
// this on a schedule it controls.
func (b *LinkStateBuffer) ClearOldEvents(maxAge time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-maxAge)
	kept := b.lossEvents[:0]
	for _, ev := range b.lossEvents {
		if ev.At.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	b.lossEvents = kept
}

// PendingLossEvents returns the current size of the global loss log.
func (b *LinkStateBuffer) PendingLossEvents() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lossEvents)
}

// GetAllLinks returns the union of link keys known from either SNR samples
// or packet counters, sorted for deterministic iteration.
func (b *LinkStateBuffer) GetAllLinks() []LinkKey {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[LinkKey]struct{}, len(b.samples)+len(b.counters))
	for key := range b.samples {
		seen[key] = struct{}{}
	}
	for key := range b.counters {
		seen[key] = struct{}{}
	}

	out := make([]LinkKey, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// counterLocked fetches the counter pair for the canonical a–b link,
// creating it on first reference. Caller must hold the write lock.
func (b *LinkStateBuffer) counterLocked(nodeA, nodeB int) *packetCounter {
	key := NewLinkKey(nodeA, nodeB)
	c, ok := b.counters[key]
	if !ok {
		c = &packetCounter{}
		b.counters[key] = c
	}
	return c
}
