package core

import (
	"math/rand"
	"testing"
	"time"
)

// detourScenario places the detour topology as a static scenario with node 2
// declared adversarial and a single 0 -> 3 routing query.
func detourScenario() *Scenario {
	positions := detourTopology()
	nodes := make([]*Node, 0, len(positions))
	for id := 0; id < len(positions); id++ {
		nodes = append(nodes, &Node{
			ID:        id,
			Position:  positions[id],
			Blackhole: id == 2,
			Motion:    StaticMotion{},
		})
	}
	return &Scenario{
		Nodes: nodes,
		Radio: DefaultRadioModel(),
		Run: RunConfig{
			MaxRangeM:       150,
			Alpha:           DefaultAlpha,
			Beta:            DefaultBeta,
			PacketsPerTick:  50,
			LossEventMaxAge: time.Minute,
			Queries:         []QueryPair{{Source: 0, Dest: 3}},
		},
	}
}

func TestEngineBaselineHitsBlackholeProposedAvoidsIt(t *testing.T) {
	engine, err := NewSimulationEngine(detourScenario(), rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}

	report, err := engine.Run(5, time.Now(), time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Nodes != 7 || report.Links != 11 {
		t.Fatalf("topology = %d nodes / %d links, want 7 / 11", report.Nodes, report.Links)
	}
	if len(report.Routes) != 1 {
		t.Fatalf("routes = %d, want 1", len(report.Routes))
	}

	route := report.Routes[0]
	if !pathsEqual(route.Baseline, []int{0, 1, 2, 3}) {
		t.Fatalf("baseline = %v, want [0 1 2 3]", route.Baseline)
	}
	if !route.BaselineThroughBlackhole {
		t.Fatalf("baseline not flagged as passing through the blackhole")
	}

	if len(route.Proposed) == 0 {
		t.Fatalf("proposed path missing")
	}
	if route.ProposedThroughBlackhole {
		t.Fatalf("proposed = %v routes through the blackhole", route.Proposed)
	}
	if route.Proposed[0] != 0 || route.Proposed[len(route.Proposed)-1] != 3 {
		t.Fatalf("proposed endpoints wrong: %v", route.Proposed)
	}
}

func TestEngineTrustStateAfterTicks(t *testing.T) {
	engine, err := NewSimulationEngine(detourScenario(), rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}

	if _, err := engine.Run(5, time.Now(), time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := engine.Ledger.GetTrust(2); got != BlackholeTrust {
		t.Fatalf("blackhole trust = %v, want %v", got, BlackholeTrust)
	}
	for _, id := range []int{0, 1, 3, 4, 5, 6} {
		got := engine.Ledger.GetTrust(id)
		if got < 0 || got > 1 {
			t.Fatalf("node %d trust = %v, out of [0,1]", id, got)
		}
	}
	for _, key := range engine.Ledger.KnownLinks() {
		got := engine.Ledger.GetLinkTrust(key.A, key.B)
		if got < 0 || got > 1 {
			t.Fatalf("link %v trust = %v, out of [0,1]", key, got)
		}
		if key.Has(2) && got != BlackholeTrust {
			t.Fatalf("blackhole link %v trust = %v, want %v", key, got, BlackholeTrust)
		}
	}
}

func TestEngineFeedsLinkStateTelemetry(t *testing.T) {
	engine, err := NewSimulationEngine(detourScenario(), rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}

	if _, err := engine.Run(3, time.Now(), time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := len(engine.LinkState.GetAllLinks()); got != 11 {
		t.Fatalf("telemetry covers %d links, want 11", got)
	}

	// Honest 100 m links at Wi-Fi power sit deep in the top quality bucket.
	if got := engine.LinkState.GetAverageSNR(0, 1); got < 20 {
		t.Fatalf("average SNR on 0-1 = %v, want a strong link", got)
	}

	// A blackhole link shows heavy synthetic loss.
	if got := engine.LinkState.GetPacketLossRate(1, 2); got < 0.5 {
		t.Fatalf("loss rate on 1-2 = %v, want severe loss", got)
	}
	if got := engine.LinkState.GetPacketLossRate(0, 1); got > 0.3 {
		t.Fatalf("loss rate on 0-1 = %v, want a mostly clean link", got)
	}
}

func TestEngineNotifiesTickListeners(t *testing.T) {
	engine, err := NewSimulationEngine(detourScenario(), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}

	var seen []int
	engine.RegisterTickListener(func(r TickReport) { seen = append(seen, r.Tick) })

	if _, err := engine.Run(3, time.Now(), time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Fatalf("listener saw ticks %v, want [0 1 2]", seen)
	}
}

func TestEnginePrunesLossLogInSimTime(t *testing.T) {
	sc := detourScenario()
	sc.Run.LossEventMaxAge = time.Millisecond // shorter than one tick

	engine, err := NewSimulationEngine(sc, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatalf("NewSimulationEngine: %v", err)
	}

	// Simulation time starts far ahead of the wall clock, as it does in
	// accelerated runs. Pruning must still retire events from earlier
	// ticks, so the log never holds more than the current tick's losses.
	start := time.Now().Add(100 * time.Hour)
	if _, err := engine.Run(5, start, time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}

	pending := engine.LinkState.PendingLossEvents()
	perTickCeiling := 11 * sc.Run.PacketsPerTick
	if pending == 0 || pending > perTickCeiling {
		t.Fatalf("pending loss events = %d, want in (0, %d]", pending, perTickCeiling)
	}
}

func TestEngineRejectsEmptyScenario(t *testing.T) {
	if _, err := NewSimulationEngine(nil, nil); err == nil {
		t.Fatalf("nil scenario accepted")
	}
	if _, err := NewSimulationEngine(&Scenario{}, nil); err == nil {
		t.Fatalf("empty scenario accepted")
	}
}

func TestEngineRejectsNonPositivePacketsPerTick(t *testing.T) {
	sc := detourScenario()
	sc.Run.PacketsPerTick = 0

	if _, err := NewSimulationEngine(sc, nil); err == nil {
		t.Fatalf("PacketsPerTick=0 accepted")
	}
}
