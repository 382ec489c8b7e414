package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldmesh/manet-simulator/core"
	"github.com/fieldmesh/manet-simulator/internal/logging"
	"github.com/fieldmesh/manet-simulator/internal/observability"
	"github.com/fieldmesh/manet-simulator/timectrl"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	scenarioPath := flag.String("scenario", "configs/scenario.json", "path to the JSON scenario")
	duration := flag.Duration("duration", 60*time.Second, "total simulation duration")
	tick := flag.Duration("tick", 1*time.Second, "tick interval")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	seed := flag.Int64("seed", 1, "seed for all simulation randomness")
	metricsAddr := flag.String("metrics-addr", "", "listen address for /metrics (empty disables)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	if err := run(ctx, log, *scenarioPath, *duration, *tick, *accelerated, *seed, *metricsAddr); err != nil {
		log.Error(ctx, "simulation failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, log logging.Logger, scenarioPath string, duration, tick time.Duration, accelerated bool, seed int64, metricsAddr string) error {
	tracingCfg := observability.TracingConfigFromEnv()
	tracingCfg.ScenarioPath = scenarioPath
	tracingCfg.TickInterval = tick
	tracingCfg.Seed = seed
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	f, err := os.Open(scenarioPath)
	if err != nil {
		return fmt.Errorf("open scenario %q: %w", scenarioPath, err)
	}
	rng := rand.New(rand.NewSource(seed))
	scenario, err := core.LoadScenario(f, rng)
	f.Close()
	if err != nil {
		return err
	}

	engine, err := core.NewSimulationEngine(scenario, rng)
	if err != nil {
		return err
	}

	routingMetrics, err := observability.NewRoutingCollector(nil)
	if err != nil {
		return fmt.Errorf("register routing metrics: %w", err)
	}
	engineMetrics, err := observability.NewEngineCollector(nil)
	if err != nil {
		return fmt.Errorf("register engine metrics: %w", err)
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", routingMetrics.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
		defer srv.Close()
		log.Info(ctx, "serving metrics", logging.String("addr", metricsAddr))
	}

	log.Info(ctx, "scenario loaded",
		logging.String("path", scenarioPath),
		logging.Int("nodes", len(engine.Nodes())),
		logging.Int("queries", len(scenario.Run.Queries)),
	)

	tracer := otel.Tracer("manet-simulator")
	blackholes := len(engine.Ledger.Blackholes())

	tickIndex := 0
	mode := timectrl.RealTime
	if accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), tick, mode)

	tc.AddListener(func(simTime time.Time) {
		tickCtx, span := tracer.Start(ctx, "engine.tick",
			trace.WithAttributes(attribute.Int("tick", tickIndex)))
		started := time.Now()

		report, err := engine.Tick(tickIndex, simTime)
		tickIndex++
		if err != nil {
			span.End()
			log.Error(tickCtx, "tick failed", logging.String("error", err.Error()))
			tc.Stop()
			return
		}

		engineMetrics.ObserveTick(time.Since(started))
		engineMetrics.AddTrustUpdates(report.Links)
		engineMetrics.SetPendingLossEvents(engine.LinkState.PendingLossEvents())
		for _, n := range engine.Nodes() {
			engineMetrics.SetNodeTrust(n.ID, engine.Ledger.GetTrust(n.ID))
		}

		routingMetrics.SetTopologyCounts(report.Nodes, report.Links, blackholes)
		for _, route := range report.Routes {
			routingMetrics.ObserveRoute(observability.ModeBaseline, route.Baseline, route.BaselineThroughBlackhole)
			routingMetrics.ObserveRoute(observability.ModeProposed, route.Proposed, route.ProposedThroughBlackhole)

			log.Info(tickCtx, "route decision",
				logging.Int("tick", report.Tick),
				logging.Int("source", route.Source),
				logging.Int("dest", route.Dest),
				logging.Any("baseline", route.Baseline),
				logging.Any("proposed", route.Proposed),
				logging.Any("baseline_blackhole", route.BaselineThroughBlackhole),
				logging.Any("proposed_blackhole", route.ProposedThroughBlackhole),
			)
		}
		span.End()
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info(ctx, "shutdown requested")
		tc.Stop()
	}()

	log.Info(ctx, "starting simulation",
		logging.Duration("duration", duration),
		logging.Duration("tick", tick),
		logging.Any("accelerated", accelerated),
	)
	<-tc.Start(duration)
	log.Info(ctx, "simulation complete", logging.Int("ticks", tickIndex))
	return nil
}
