package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route query label values.
const (
	ModeBaseline = "baseline"
	ModeProposed = "proposed"

	ResultOK     = "ok"
	ResultNoPath = "no_path"
)

// RoutingCollector bundles Prometheus metrics for the routing layer and the
// scenario topology, and provides a ready-made /metrics handler.
type RoutingCollector struct {
	gatherer prometheus.Gatherer

	RouteQueries    *prometheus.CounterVec
	BlackholeRoutes *prometheus.CounterVec
	RouteHops       *prometheus.HistogramVec

	ScenarioNodes      prometheus.Gauge
	ScenarioLinks      prometheus.Gauge
	ScenarioBlackholes prometheus.Gauge
}

// NewRoutingCollector registers routing Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewRoutingCollector(reg prometheus.Registerer) (*RoutingCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_queries_total",
		Help: "Total number of answered routing queries, labeled by cost mode and result.",
	}, []string{"mode", "result"})
	queries, err := registerCounterVec(reg, queries, "routing_queries_total")
	if err != nil {
		return nil, err
	}

	blackholeRoutes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "routing_blackhole_paths_total",
		Help: "Total number of returned paths that traverse a declared adversarial node, by cost mode.",
	}, []string{"mode"})
	blackholeRoutes, err = registerCounterVec(reg, blackholeRoutes, "routing_blackhole_paths_total")
	if err != nil {
		return nil, err
	}

	hops := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "routing_path_hops",
		Help:    "Hop count of returned paths, by cost mode.",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
	}, []string{"mode"})
	hops, err = registerHistogramVec(reg, hops, "routing_path_hops")
	if err != nil {
		return nil, err
	}

	nodes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_nodes",
		Help: "Current number of stations in the topology.",
	}), "scenario_nodes")
	if err != nil {
		return nil, err
	}
	links, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_links",
		Help: "Current number of undirected links in the topology.",
	}), "scenario_links")
	if err != nil {
		return nil, err
	}
	blackholes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_blackholes",
		Help: "Number of declared adversarial nodes in the scenario.",
	}), "scenario_blackholes")
	if err != nil {
		return nil, err
	}

	return &RoutingCollector{
		gatherer:           gatherer,
		RouteQueries:       queries,
		BlackholeRoutes:    blackholeRoutes,
		RouteHops:          hops,
		ScenarioNodes:      nodes,
		ScenarioLinks:      links,
		ScenarioBlackholes: blackholes,
	}, nil
}

// ObserveRoute records the outcome of one routing query under the given cost
// mode. A nil path counts as no_path; otherwise the hop count and, when the
// path traverses an adversarial node, the blackhole counter are recorded.
func (c *RoutingCollector) ObserveRoute(mode string, path []int, throughBlackhole bool) {
	if c == nil {
		return
	}
	if len(path) == 0 {
		c.RouteQueries.WithLabelValues(mode, ResultNoPath).Inc()
		return
	}
	c.RouteQueries.WithLabelValues(mode, ResultOK).Inc()
	c.RouteHops.WithLabelValues(mode).Observe(float64(len(path) - 1))
	if throughBlackhole {
		c.BlackholeRoutes.WithLabelValues(mode).Inc()
	}
}

// SetTopologyCounts updates the scenario gauges after a topology rebuild.
func (c *RoutingCollector) SetTopologyCounts(nodes, links, blackholes int) {
	if c == nil {
		return
	}
	c.ScenarioNodes.Set(float64(nodes))
	c.ScenarioLinks.Set(float64(links))
	c.ScenarioBlackholes.Set(float64(blackholes))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RoutingCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
