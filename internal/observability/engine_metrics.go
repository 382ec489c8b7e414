package observability

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineCollector exposes metrics about the simulation loop itself: tick
// durations, trust state, and the size of the pending loss-event log.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	TickDuration      prometheus.Histogram
	TrustUpdatesTotal prometheus.Counter
	LossEventsPending prometheus.Gauge
	NodeTrust         *prometheus.GaugeVec
}

// NewEngineCollector registers engine metrics against the provided registerer.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_tick_duration_seconds",
		Help:    "Wall-clock duration of one simulation tick.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	tickHistogram, err := registerHistogram(reg, tickHistogram, "engine_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	trustUpdates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_trust_updates_total",
		Help: "Cumulative number of per-link trust updates applied by the engine.",
	})
	trustUpdates, err = registerCounter(reg, trustUpdates, "engine_trust_updates_total")
	if err != nil {
		return nil, err
	}

	lossPending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "engine_loss_events_pending",
		Help: "Size of the loss-event log after the per-tick pruning sweep.",
	})
	lossPending, err = registerGauge(reg, lossPending, "engine_loss_events_pending")
	if err != nil {
		return nil, err
	}

	nodeTrust := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "engine_node_trust",
		Help: "Current trust score per station.",
	}, []string{"node"})
	nodeTrust, err = registerGaugeVec(reg, nodeTrust, "engine_node_trust")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:          gatherer,
		TickDuration:      tickHistogram,
		TrustUpdatesTotal: trustUpdates,
		LossEventsPending: lossPending,
		NodeTrust:         nodeTrust,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *EngineCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one tick's wall-clock duration.
func (c *EngineCollector) ObserveTick(d time.Duration) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

// AddTrustUpdates bumps the trust-update counter by the number of links
// updated this tick.
func (c *EngineCollector) AddTrustUpdates(n int) {
	if c == nil || c.TrustUpdatesTotal == nil || n <= 0 {
		return
	}
	c.TrustUpdatesTotal.Add(float64(n))
}

// SetPendingLossEvents updates the loss-log size gauge.
func (c *EngineCollector) SetPendingLossEvents(count int) {
	if c == nil || c.LossEventsPending == nil {
		return
	}
	c.LossEventsPending.Set(float64(count))
}

// SetNodeTrust records a station's current trust score.
func (c *EngineCollector) SetNodeTrust(node int, trust float64) {
	if c == nil || c.NodeTrust == nil {
		return
	}
	c.NodeTrust.WithLabelValues(strconv.Itoa(node)).Set(trust)
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
