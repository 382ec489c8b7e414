package core

import (
	"math"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultTrust is the trust assigned to nodes and links on first
	// reference, before any loss has been observed.
	DefaultTrust = 1.0

	// BlackholeTrust is the trust pinned on declared-adversarial nodes and
	// on links confirmed to drop traffic through them.
	BlackholeTrust = 0.01

	// DegradedLinkTrust is the trust assigned to a link whose observed loss
	// exceeded the loss threshold without an adversarial endpoint.
	DegradedLinkTrust = 0.1

	// DefaultLossThreshold separates congestion-grade loss (recoverable)
	// from degradation-grade loss.
	DefaultLossThreshold = 0.5

	// Recovery steps applied when observed loss stays below the threshold.
	linkRecoveryStep = 0.1
	nodeRecoveryStep = 0.05

	// qualityEMAAlpha is the smoothing factor for the per-link SNR quality
	// metric.
	qualityEMAAlpha = 0.3
)

// TrustRecord tracks the reputation and recent channel quality of a single
// link. Records are created lazily on first reference with full trust.
type TrustRecord struct {
	TrustScore     float64   // in [0,1]
	QualityMetric  float64   // EMA-smoothed SNR, dB
	PacketLossRate float64   // last observed loss rate, in [0,1]
	LastUpdate     time.Time
}

// TrustLedger is the single source of truth for how much the router should
// trust traffic through a given node or link. Node and link scores react to
// observed packet loss: declared blackholes are isolated on a single bad
// observation, honest congestion degrades a link and lets it recover
// gradually.
//
// The ledger is concurrency-safe via an internal RWMutex so it can be read
// from goroutines other than the simulation loop (e.g. metrics scrapes).
// The read-then-decide-then-write trust update runs under a single write
// lock, so concurrent loss reports for the same link cannot lose updates.
type TrustLedger struct {
	mu sync.RWMutex

	// LossThreshold is the packet-loss rate above which a non-adversarial
	// link is degraded instead of allowed to recover.
	LossThreshold float64

	links      map[LinkKey]*TrustRecord
	nodes      map[int]float64
	blackholes map[int]bool
}

// NewTrustLedger creates a ledger with the provided set of declared
// adversarial ("blackhole") nodes. Their trust is pinned to BlackholeTrust
// from construction onward.
func NewTrustLedger(blackholes []int) *TrustLedger {
	l := &TrustLedger{
		LossThreshold: DefaultLossThreshold,
		links:         make(map[LinkKey]*TrustRecord),
		nodes:         make(map[int]float64),
		blackholes:    make(map[int]bool),
	}
	for _, id := range blackholes {
		l.blackholes[id] = true
		l.nodes[id] = BlackholeTrust
	}
	return l
}

// UpdateTrust records an observed packet-loss rate for the a–b link and
// applies the trust-update policy. Exactly one branch applies, evaluated in
// order:
//
//  1. nodeB is a declared blackhole and any loss was observed: the link and
//     nodeB drop to BlackholeTrust immediately.
//  2. same for nodeA.
//  3. loss above LossThreshold: the link drops to DegradedLinkTrust and
//     nodeB's trust is lowered to at most DegradedLinkTrust.
//  4. loss at or below the threshold while the link is not fully trusted:
//     the link recovers by linkRecoveryStep and nodeB by nodeRecoveryStep,
//     both capped at DefaultTrust.
//
// The observed loss rate is stored on the record unconditionally. All trust
// values stay in [0,1] by construction of these rules.
func (l *TrustLedger) UpdateTrust(nodeA, nodeB int, lossRate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.linkRecordLocked(nodeA, nodeB)
	rec.PacketLossRate = lossRate
	rec.LastUpdate = time.Now()

	switch {
	case l.blackholes[nodeB] && lossRate > 0:
		// A single bad observation through a declared blackhole is enough;
		// there is no recovery path from here.
		rec.TrustScore = BlackholeTrust
		l.nodes[nodeB] = BlackholeTrust
	case l.blackholes[nodeA] && lossRate > 0:
		rec.TrustScore = BlackholeTrust
		l.nodes[nodeA] = BlackholeTrust
	case lossRate > l.LossThreshold:
		rec.TrustScore = DegradedLinkTrust
		if !l.blackholes[nodeB] {
			l.nodes[nodeB] = math.Min(l.nodeTrustLocked(nodeB), DegradedLinkTrust)
		}
	case rec.TrustScore < DefaultTrust:
		rec.TrustScore = math.Min(DefaultTrust, rec.TrustScore+linkRecoveryStep)
		l.nodes[nodeB] = math.Min(DefaultTrust, l.nodeTrustLocked(nodeB)+nodeRecoveryStep)
	}
}

// UpdateQualityMetric folds a new SNR reading into the link's smoothed
// quality metric using an exponential moving average. Quality is tracked
// independently of trust.
func (l *TrustLedger) UpdateQualityMetric(nodeA, nodeB int, snr float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.linkRecordLocked(nodeA, nodeB)
	rec.QualityMetric = qualityEMAAlpha*snr + (1-qualityEMAAlpha)*rec.QualityMetric
	rec.LastUpdate = time.Now()
}

// GetTrust returns the current trust for a node. Declared blackholes always
// report BlackholeTrust regardless of any stored value; unknown nodes
// default to DefaultTrust.
func (l *TrustLedger) GetTrust(node int) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nodeTrustLocked(node)
}

// GetLinkTrust returns the stored trust for the a–b link. An uninitialized
// link falls back to the trust of its least-trusted endpoint: a link must
// never be treated as more trustworthy than the nodes it connects.
func (l *TrustLedger) GetLinkTrust(nodeA, nodeB int) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if rec, ok := l.links[NewLinkKey(nodeA, nodeB)]; ok {
		return rec.TrustScore
	}
	return math.Min(l.nodeTrustLocked(nodeA), l.nodeTrustLocked(nodeB))
}

// LinkRecord returns a copy of the record for the a–b link, if one exists.
func (l *TrustLedger) LinkRecord(nodeA, nodeB int) (TrustRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.links[NewLinkKey(nodeA, nodeB)]
	if !ok {
		return TrustRecord{}, false
	}
	return *rec, true
}

// DegradeBlackholeTrust re-pins every declared blackhole and all of its
// known links to BlackholeTrust. The sweep is idempotent and safe to run on
// every tick; it exists to cancel any trust the recovery rule may have
// accidentally granted an adversarial node.
func (l *TrustLedger) DegradeBlackholeTrust() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id := range l.blackholes {
		l.nodes[id] = BlackholeTrust
	}
	for key, rec := range l.links {
		if l.blackholes[key.A] || l.blackholes[key.B] {
			rec.TrustScore = BlackholeTrust
		}
	}
}

// IsBlackhole reports whether the node was declared adversarial at
// construction.
func (l *TrustLedger) IsBlackhole(node int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blackholes[node]
}

// Blackholes returns a copy of the declared adversarial set.
func (l *TrustLedger) Blackholes() map[int]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[int]bool, len(l.blackholes))
	for id := range l.blackholes {
		out[id] = true
	}
	return out
}

// KnownLinks returns the canonical keys of all links the ledger has a
// record for, sorted for deterministic iteration.
func (l *TrustLedger) KnownLinks() []LinkKey {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LinkKey, 0, len(l.links))
	for key := range l.links {
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

// linkRecordLocked fetches the record for the canonical a–b link, creating
// it with full trust on first reference. Caller must hold the write lock.
func (l *TrustLedger) linkRecordLocked(nodeA, nodeB int) *TrustRecord {
	key := NewLinkKey(nodeA, nodeB)
	rec, ok := l.links[key]
	if !ok {
		rec = &TrustRecord{TrustScore: DefaultTrust}
		l.links[key] = rec
	}
	return rec
}

// nodeTrustLocked resolves a node's trust with the blackhole override and
// the lazy DefaultTrust fallback. Caller must hold at least a read lock.
func (l *TrustLedger) nodeTrustLocked(node int) float64 {
	if l.blackholes[node] {
		return BlackholeTrust
	}
	if v, ok := l.nodes[node]; ok {
		return v
	}
	return DefaultTrust
}
