package core

import (
	"math"
	"testing"
	"time"
)

func TestPacketLossRateFromCounters(t *testing.T) {
	b := NewLinkStateBuffer(0)

	for i := 0; i < 10; i++ {
		b.RecordTx(1, 2)
	}
	for i := 0; i < 7; i++ {
		b.RecordRx(1, 2)
	}

	got := b.GetPacketLossRate(1, 2)
	if math.Abs(got-0.30) > 1e-2 {
		t.Fatalf("GetPacketLossRate = %v, want 0.30", got)
	}
}

func TestPacketLossRateEdgeCases(t *testing.T) {
	b := NewLinkStateBuffer(0)

	if got := b.GetPacketLossRate(1, 2); got != 0.0 {
		t.Fatalf("loss rate with no traffic = %v, want 0", got)
	}

	// rx >= tx can happen transiently when counters race the reader; it
	// must clamp to zero rather than go negative.
	b.RecordTx(1, 2)
	b.RecordRx(1, 2)
	b.RecordRx(1, 2)
	if got := b.GetPacketLossRate(1, 2); got != 0.0 {
		t.Fatalf("loss rate with rx >= tx = %v, want 0", got)
	}
}

func TestCountersShareCanonicalLink(t *testing.T) {
	b := NewLinkStateBuffer(0)

	b.RecordTx(2, 1)
	b.RecordTx(1, 2)
	b.RecordRx(2, 1)

	if got := b.GetPacketLossRate(1, 2); got != 0.5 {
		t.Fatalf("loss rate = %v, want 0.5", got)
	}
	if got := len(b.GetAllLinks()); got != 1 {
		t.Fatalf("GetAllLinks() = %d links, want 1", got)
	}
}

func TestSNRSeriesIsBounded(t *testing.T) {
	b := NewLinkStateBuffer(3)

	for i := 1; i <= 5; i++ {
		b.UpdateSNR(1, 2, float64(i*10), time.Time{})
	}

	// Only the newest 3 samples (30, 40, 50) survive.
	if got, want := b.GetAverageSNR(1, 2), 40.0; got != want {
		t.Fatalf("GetAverageSNR = %v, want %v", got, want)
	}
	if got, want := b.GetLatestSNR(1, 2), 50.0; got != want {
		t.Fatalf("GetLatestSNR = %v, want %v", got, want)
	}
}

func TestSNRQueriesOnEmptySeries(t *testing.T) {
	b := NewLinkStateBuffer(0)

	if got := b.GetAverageSNR(1, 2); got != 0.0 {
		t.Fatalf("GetAverageSNR(empty) = %v, want 0.0", got)
	}
	if got := b.GetLatestSNR(1, 2); got != 0.0 {
		t.Fatalf("GetLatestSNR(empty) = %v, want 0.0", got)
	}
}

func TestSNRCanonicalRoundTrip(t *testing.T) {
	b := NewLinkStateBuffer(0)

	b.UpdateSNR(5, 3, 12, time.Time{})

	if got := b.GetLatestSNR(3, 5); got != 12 {
		t.Fatalf("GetLatestSNR(3,5) = %v, want 12", got)
	}
}

func TestRecentLossEventsWindow(t *testing.T) {
	b := NewLinkStateBuffer(0)
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	b.SetReferenceTime(base)

	b.RecordLoss(1, 2, base.Add(-90*time.Second))
	b.RecordLoss(1, 2, base.Add(-45*time.Second))
	b.RecordLoss(2, 1, base.Add(-10*time.Second))
	b.RecordLoss(3, 4, base.Add(-5*time.Second)) // other link

	if got := b.GetRecentLossEvents(1, 2, time.Minute); got != 2 {
		t.Fatalf("GetRecentLossEvents(1m) = %d, want 2", got)
	}
	if got := b.GetRecentLossEvents(1, 2, 2*time.Minute); got != 3 {
		t.Fatalf("GetRecentLossEvents(2m) = %d, want 3", got)
	}
	if got := b.GetRecentLossEvents(3, 4, time.Minute); got != 1 {
		t.Fatalf("GetRecentLossEvents(3,4) = %d, want 1", got)
	}
}

func TestClearOldEventsPrunesLog(t *testing.T) {
	b := NewLinkStateBuffer(0)
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	b.SetReferenceTime(base)

	b.RecordLoss(1, 2, base.Add(-2*time.Minute))
	b.RecordLoss(1, 2, base.Add(-30*time.Second))
	b.RecordLoss(1, 2, base)

	if got := b.PendingLossEvents(); got != 3 {
		t.Fatalf("PendingLossEvents before prune = %d, want 3", got)
	}

	b.ClearOldEvents(time.Minute)

	if got := b.PendingLossEvents(); got != 2 {
		t.Fatalf("PendingLossEvents after prune = %d, want 2", got)
	}
	if got := b.GetRecentLossEvents(1, 2, time.Hour); got != 2 {
		t.Fatalf("GetRecentLossEvents after prune = %d, want 2", got)
	}
}

func TestZeroTimestampUsesReferenceTime(t *testing.T) {
	b := NewLinkStateBuffer(0)
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	b.SetReferenceTime(base)

	b.RecordLoss(1, 2, time.Time{})

	if got := b.GetRecentLossEvents(1, 2, time.Second); got != 1 {
		t.Fatalf("GetRecentLossEvents = %d, want 1", got)
	}
}

func TestEventQueriesFollowSimTimeAheadOfWallClock(t *testing.T) {
	b := NewLinkStateBuffer(0)

	// Simulation time running an hour ahead of the wall clock. With the
	// default wall-clock reference these events would look perpetually
	// recent: pruning would keep them and windowed queries would count
	// them forever.
	simTime := time.Now().Add(time.Hour)
	b.SetReferenceTime(simTime)
	b.RecordLoss(1, 2, simTime)

	// One simulated second later the event is outside a 1ns window and
	// older than a 1ns retention.
	simTime = simTime.Add(time.Second)
	b.SetReferenceTime(simTime)

	if got := b.GetRecentLossEvents(1, 2, time.Nanosecond); got != 0 {
		t.Fatalf("GetRecentLossEvents in sim domain = %d, want 0", got)
	}
	b.ClearOldEvents(time.Nanosecond)
	if got := b.PendingLossEvents(); got != 0 {
		t.Fatalf("PendingLossEvents after prune = %d, want 0", got)
	}

	// A fresh event at the current sim instant still counts and survives.
	b.RecordLoss(1, 2, simTime)
	if got := b.GetRecentLossEvents(1, 2, time.Second); got != 1 {
		t.Fatalf("fresh event count = %d, want 1", got)
	}
	b.ClearOldEvents(time.Second)
	if got := b.PendingLossEvents(); got != 1 {
		t.Fatalf("fresh event pruned, pending = %d, want 1", got)
	}
}

func TestGetAllLinksUnionSorted(t *testing.T) {
	b := NewLinkStateBuffer(0)

	b.UpdateSNR(4, 3, 10, time.Time{}) // samples only
	b.RecordTx(1, 2)                   // counters only
	b.UpdateSNR(1, 2, 10, time.Time{}) // both

	got := b.GetAllLinks()
	want := []LinkKey{{A: 1, B: 2}, {A: 3, B: 4}}
	if len(got) != len(want) {
		t.Fatalf("GetAllLinks() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GetAllLinks()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
