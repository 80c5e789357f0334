// File: cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/intent"
	"github.com/xkilldash9x/wayfinder/internal/navgraph"
	"github.com/xkilldash9x/wayfinder/internal/observability"
	"github.com/xkilldash9x/wayfinder/internal/orchestrator"
	"github.com/xkilldash9x/wayfinder/internal/planner"
	"github.com/xkilldash9x/wayfinder/internal/relay"
	"github.com/xkilldash9x/wayfinder/internal/solver"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connects to the device relay and serves navigation plans",
		Long: `Serve runs the planning service. It dials the websocket relay, announces
readiness, and then reacts to voice commands, graph updates, UI state and
action results until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := observability.GetLogger()
			cfg := appConfig

			components, err := initializeServeComponents(ctx, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return fmt.Errorf("failed to initialize service components: %w", err)
			}
			defer components.Shutdown()

			logger.Info("Service components initialized",
				zap.String("graph_backend", cfg.Graph.Backend),
				zap.String("solver_mode", cfg.Solver.Mode),
				zap.String("intent_provider", cfg.Intent.Provider),
				zap.String("relay_url", cfg.Relay.URL))

			if err := components.Relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("relay loop ended: %w", err)
			}
			logger.Info("Service stopped")
			return nil
		},
	}
}

// serveComponents holds the initialized service graph.
type serveComponents struct {
	Store        navgraph.Store
	Extractor    schemas.IntentExtractor
	Solver       schemas.Solver
	Orchestrator *orchestrator.Orchestrator
	Relay        *relay.Relay
	DBPool       *pgxpool.Pool
}

// Shutdown releases held resources.
func (sc *serveComponents) Shutdown() {
	if sc.DBPool != nil {
		sc.DBPool.Close()
	}
}

// initializeServeComponents handles dependency injection.
func initializeServeComponents(ctx context.Context, logger *zap.Logger) (*serveComponents, error) {
	cfg := appConfig
	components := &serveComponents{}

	// 1. Graph store
	switch cfg.Graph.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Graph.Postgres.DSN())
		if err != nil {
			return components, fmt.Errorf("failed to connect to database: %w", err)
		}
		components.DBPool = pool

		store, err := navgraph.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			return components, fmt.Errorf("failed to initialize graph store: %w", err)
		}
		graphs, err := store.LoadAll(ctx)
		if err != nil {
			return components, fmt.Errorf("failed to load persisted graphs: %w", err)
		}
		logger.Info("Resumed persisted navigation graphs", zap.Int("count", len(graphs)))
		components.Store = navgraph.NewCachedStore(store, graphs, logger)
	default:
		components.Store = navgraph.NewMemoryStore(logger)
	}

	// 2. Intent extraction
	switch cfg.Intent.Provider {
	case "gemini":
		ex, err := intent.NewLLMExtractor(ctx, cfg.Intent.LLM, logger)
		if err != nil {
			logger.Warn("Model extractor unavailable, using rule extraction only", zap.Error(err))
			components.Extractor = intent.NewRuleExtractor(logger)
		} else {
			components.Extractor = ex
		}
	default:
		components.Extractor = intent.NewRuleExtractor(logger)
	}

	// 3. Path solver. The oracle is always backed by the exact BFS search.
	bfs := solver.NewBFS(logger)
	if cfg.Solver.Mode == "oracle" {
		oracle := solver.NewOracleClient(cfg.Solver.OracleURL, cfg.Solver.Timeout, logger)
		components.Solver = solver.NewFallback(oracle, bfs, logger)
	} else {
		components.Solver = bfs
	}

	// 4. Planning and orchestration
	assembler := planner.NewAssembler(components.Solver, cfg.Planner, logger)
	components.Orchestrator = orchestrator.New(components.Store, components.Extractor, components.Solver, assembler, logger)

	// 5. Relay transport
	components.Relay = relay.New(cfg.Relay, components.Orchestrator, logger)
	components.Orchestrator.SetSender(components.Relay)

	return components, nil
}
