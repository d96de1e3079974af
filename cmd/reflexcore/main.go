// Command reflexcore runs the tick driver standalone: it wires the
// world-state cache, the reflex registry, and the supporting stores together
// and drives EvaluateTick on an interval. It exposes no HTTP or CLI surface
// of its own beyond a metrics endpoint — the reflex core is library-shaped,
// and this binary exists only to exercise it outside of the agent runtime
// it is meant to be embedded in.
package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conscious-bot/reflexcore/internal/collab"
	"github.com/conscious-bot/reflexcore/internal/config"
	"github.com/conscious-bot/reflexcore/internal/credit"
	"github.com/conscious-bot/reflexcore/internal/lifecycle"
	"github.com/conscious-bot/reflexcore/internal/memtasks"
	"github.com/conscious-bot/reflexcore/internal/proof"
	"github.com/conscious-bot/reflexcore/internal/reflex"
	"github.com/conscious-bot/reflexcore/internal/registry"
	"github.com/conscious-bot/reflexcore/internal/worldstate"
)

func main() {
	cfg := config.ApplyEnvOverrides(mustLoadConfig())

	tasks := memtasks.New()
	emitter := lifecycle.NewEmitter(lifecycle.DefaultCap)

	creditStore := buildCreditStore()
	_, closeRecorder := buildProofRecorder()
	defer closeRecorder()
	_ = creditStore // exercised through ReportExecutionOutcome once the execution pipeline reports back; wired here so it starts alongside the tick loop.

	cache := worldstate.NewCache(syntheticFetcher(), cfg.CacheTTL())

	explorationCtrl := reflex.NewExplorationController(cfg.ToExplorationConfig(), emitter)
	sleepCtrl := reflex.NewSleepController(cfg.ToSleepConfig(), emitter)

	reg := registry.New(cache, cfg.StaleWindow())
	reg.Register(reflex.NewHungerController(cfg.ToHungerConfig(), emitter))
	reg.Register(explorationCtrl)
	reg.Register(sleepCtrl)

	log.Printf("reflexcore: registered %d reflexes, cacheTTL=%s staleWindow=%s", len(reg.GetRegistered()), cfg.CacheTTL(), cfg.StaleWindow())

	startMetricsServer()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runTickLoop(ctx, reg, tasks, cache, explorationCtrl, sleepCtrl)

	log.Println("reflexcore: shutdown complete")
}

func mustLoadConfig() config.ReflexConfig {
	path := os.Getenv("REFLEXCORE_CONFIG_FILE")
	cfg, err := config.LoadFile(path)
	if err != nil {
		log.Fatalf("❌ reflexcore: loading config %s: %v", path, err)
	}
	return cfg
}

// buildCreditStore selects a Redis-backed prior store when REDIS_ADDR is
// set, otherwise falls back to the in-memory store — mirroring the
// control plane's Redis-or-nothing backend selection for its stores.
func buildCreditStore() *credit.Store {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		log.Println("reflexcore: REDIS_ADDR unset, credit priors held in memory only")
		return credit.NewStore(nil)
	}

	backend, err := credit.NewRedisBackend(addr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		log.Printf("⚠️ reflexcore: Redis unavailable at %s, falling back to in-memory priors: %v", addr, err)
		return credit.NewStore(nil)
	}
	log.Printf("✅ reflexcore: connected to Redis at %s for credit priors", addr)
	return credit.NewStore(backend)
}

// buildProofRecorder selects a Postgres-backed recorder when DATABASE_URL is
// set, otherwise keeps the bounded in-memory ring buffer.
func buildProofRecorder() (collab.ProofRecorder, func()) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Println("reflexcore: DATABASE_URL unset, proof bundles held in memory only")
		return proof.NewRecorder(proof.DefaultRecorderCap), func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pg, err := proof.NewPostgresRecorder(ctx, dsn)
	if err != nil {
		log.Printf("⚠️ reflexcore: Postgres unavailable, falling back to in-memory proof recorder: %v", err)
		return proof.NewRecorder(proof.DefaultRecorderCap), func() {}
	}
	log.Println("✅ reflexcore: connected to Postgres for proof bundle recording")
	return pg, pg.Close
}

// startMetricsServer exposes /metrics on REFLEXCORE_METRICS_ADDR (default
// :9090), the same promhttp wiring the control plane uses.
func startMetricsServer() {
	addr := os.Getenv("REFLEXCORE_METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️ reflexcore: metrics server exited: %v", err)
		}
	}()
	log.Printf("reflexcore: metrics listening on %s", addr)
}

// runTickLoop drives EvaluateTick on a fixed interval until ctx is
// cancelled. There is no external execution pipeline wired in standalone
// mode, so idleReason is always "no_tasks" and dryRun is never set — every
// reflex that fires enqueues into the in-memory task store. Exploration and
// sleep's idle/day-night state machines are advanced every tick too, since
// nothing else in this standalone binary drives them.
func runTickLoop(ctx context.Context, reg *registry.Registry, tasks *memtasks.Store, cache *worldstate.Cache, exploration *reflex.ExplorationController, sleep *reflex.SleepController) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("reflexcore: shutdown signal received, stopping tick loop")
			return
		case <-ticker.C:
			exploration.Tick(true)
			if sample := cache.Get(ctx); sample != nil {
				sleep.Tick(sample.TimeOfDay)
			}

			outcome := reg.EvaluateTick(ctx, reflex.IdleNoTasks, tasks.AddTask, tasks.GetTasks, false)
			if outcome.Fired {
				log.Printf("reflexcore: tick fired reflex=%s enqueue=%+v", outcome.ReflexName, outcome.Enqueue)
			}
		}
	}
}

// syntheticFetcher stands in for the external agent's world-state feed
// during standalone operation: it reports a roaming, slowly-hungering bot
// with no hostiles nearby, enough to exercise every reflex's hysteresis
// over a long enough run. A real embedding replaces this with a poll of the
// agent process or a worldstate.Streamer.
func syntheticFetcher() worldstate.Fetcher {
	start := time.Now()
	food := 20
	tick := 0

	return func(ctx context.Context) (*worldstate.Sample, error) {
		elapsed := time.Since(start)
		tick = (6000 + int(elapsed.Seconds())*20) % 24000

		if int(elapsed.Seconds())%7 == 0 && food > 0 {
			food--
		}

		health := 20.0
		hostiles := 0
		pos := worldstate.Position{
			X: 10 * float64(rand.Intn(5)),
			Y: 64,
			Z: 10 * float64(rand.Intn(5)),
		}

		return &worldstate.Sample{
			Position:       &pos,
			Health:         &health,
			Food:           &food,
			Inventory:      []collab.InventoryItem{{Name: "bread", Count: 3}},
			TimeOfDay:      &tick,
			NearbyHostiles: &hostiles,
		}, nil
	}
}
