package core

import (
	"fmt"
	"math/rand"
	"time"
)

// blackholeLossRate is the fraction of forwarded packets a blackhole node
// drops in the synthesized telemetry.
const blackholeLossRate = 0.95

// RouteDecision is the outcome of one routing query in one tick. A nil
// path means no route was found.
type RouteDecision struct {
	Source int
	Dest   int

	Baseline []int
	Proposed []int

	BaselineThroughBlackhole bool
	ProposedThroughBlackhole bool
}

// TickReport summarises what happened during a single simulation tick.
type TickReport struct {
	Tick   int
	Time   time.Time
	Nodes  int
	Links  int
	Routes []RouteDecision
}

// SimulationEngine owns the routing core trio plus the stations and radio
// model of a scenario, and advances them one logical tick at a time:
// mobility, wholesale topology rebuild, synthesized link telemetry, trust
// updates, housekeeping sweeps, then the configured routing queries.
//
// The engine only ever calls into the trio from Tick, preserving the
// single-threaded call-and-return contract of the components.
type SimulationEngine struct {
	Ledger    *TrustLedger
	LinkState *LinkStateBuffer
	Router    *RoutingEngine
	Radio     RadioModel

	nodes []*Node
	run   RunConfig
	rng   *rand.Rand

	tickListeners []func(TickReport)
}

// NewSimulationEngine wires a loaded scenario into a runnable engine.
func NewSimulationEngine(sc *Scenario, rng *rand.Rand) (*SimulationEngine, error) {
	if sc == nil || len(sc.Nodes) == 0 {
		return nil, fmt.Errorf("NewSimulationEngine: empty scenario")
	}
	if sc.Run.PacketsPerTick <= 0 {
		return nil, fmt.Errorf("NewSimulationEngine: packets per tick must be positive, got %d", sc.Run.PacketsPerTick)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	router, err := NewRoutingEngine(sc.Run.Alpha, sc.Run.Beta)
	if err != nil {
		return nil, err
	}

	var blackholes []int
	for _, n := range sc.Nodes {
		if n.Blackhole {
			blackholes = append(blackholes, n.ID)
		}
	}

	return &SimulationEngine{
		Ledger:    NewTrustLedger(blackholes),
		LinkState: NewLinkStateBuffer(sc.Run.MaxSNRSamples),
		Router:    router,
		Radio:     sc.Radio,
		nodes:     sc.Nodes,
		run:       sc.Run,
		rng:       rng,
	}, nil
}

// RegisterTickListener adds a callback invoked with every tick's report.
func (se *SimulationEngine) RegisterTickListener(fn func(TickReport)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Nodes returns the engine's stations.
func (se *SimulationEngine) Nodes() []*Node { return se.nodes }

// Tick advances the simulation by one logical step at simTime and returns
// the report. Errors from the topology rebuild are impossible for
// range-mode scenarios and indicate a malformed grid scenario otherwise,
// so they surface through the returned error.
func (se *SimulationEngine) Tick(tick int, simTime time.Time) (TickReport, error) {
	// 1) Mobility.
	for _, n := range se.nodes {
		if n.Motion != nil {
			n.Motion.UpdatePosition(simTime, n)
		}
	}

	// 2) Rebuild the topology wholesale; never patch it incrementally.
	positions := make(map[int]Vec3, len(se.nodes))
	for _, n := range se.nodes {
		positions[n.ID] = n.Position
	}
	if err := se.Router.BuildGraphFromTopology(positions, nil, se.run.MaxRangeM, se.run.GridMode); err != nil {
		return TickReport{}, fmt.Errorf("tick %d: %w", tick, err)
	}

	// 3) Synthesize telemetry for every live link and feed the trio. The
	// buffer's reference time follows simulation time so windowed queries
	// and pruning stay meaningful when sim time outruns the wall clock.
	se.LinkState.SetReferenceTime(simTime)
	blackholes := se.Ledger.Blackholes()
	for _, key := range se.Router.Links() {
		dist := positions[key.A].DistanceTo(positions[key.B])
		snr := se.Radio.EstimateSNR(dist) + se.rng.NormFloat64()*se.run.SNRJitterDB

		se.LinkState.UpdateSNR(key.A, key.B, snr, simTime)
		se.Ledger.UpdateQualityMetric(key.A, key.B, snr)

		lossRate := ExpectedLossRate(snr)
		if blackholes[key.A] || blackholes[key.B] {
			lossRate = blackholeLossRate
		}

		lost := 0
		for i := 0; i < se.run.PacketsPerTick; i++ {
			se.LinkState.RecordTx(key.A, key.B)
			if se.rng.Float64() < lossRate {
				lost++
				se.LinkState.RecordLoss(key.A, key.B, simTime)
			} else {
				se.LinkState.RecordRx(key.A, key.B)
			}
		}

		observed := float64(lost) / float64(se.run.PacketsPerTick)
		se.Ledger.UpdateTrust(key.A, key.B, observed)
	}

	// 4) Housekeeping the components do not do on their own.
	se.Ledger.DegradeBlackholeTrust()
	se.LinkState.ClearOldEvents(se.run.LossEventMaxAge)

	// 5) Routing queries under both cost models.
	report := TickReport{
		Tick:  tick,
		Time:  simTime,
		Nodes: se.Router.NodeCount(),
		Links: se.Router.LinkCount(),
	}
	for _, q := range se.run.Queries {
		decision := RouteDecision{Source: q.Source, Dest: q.Dest}

		if path, err := se.Router.GetBaselinePath(q.Source, q.Dest); err == nil {
			decision.Baseline = path
			decision.BaselineThroughBlackhole = PathThroughBlackhole(path, blackholes)
		}
		if path, err := se.Router.GetProposedPath(q.Source, q.Dest, se.Ledger, se.LinkState); err == nil {
			decision.Proposed = path
			decision.ProposedThroughBlackhole = PathThroughBlackhole(path, blackholes)
		}
		report.Routes = append(report.Routes, decision)
	}

	for _, fn := range se.tickListeners {
		fn(report)
	}
	return report, nil
}

// Run advances the engine for the given number of ticks, stepping simTime
// by tickInterval each time. It is a convenience for tests and headless
// runs; interactive runs drive Tick from a time controller instead.
func (se *SimulationEngine) Run(ticks int, start time.Time, tickInterval time.Duration) (TickReport, error) {
	var last TickReport
	simTime := start
	for tick := 0; tick < ticks; tick++ {
		simTime = simTime.Add(tickInterval)
		report, err := se.Tick(tick, simTime)
		if err != nil {
			return TickReport{}, err
		}
		last = report
	}
	return last, nil
}
