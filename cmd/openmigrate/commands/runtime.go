package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openmigrate/openmigrate/pkg/checkpoint"
	"github.com/openmigrate/openmigrate/pkg/config"
	"github.com/openmigrate/openmigrate/pkg/engine"
	"github.com/openmigrate/openmigrate/pkg/journal"
	"github.com/openmigrate/openmigrate/pkg/state"
	"github.com/openmigrate/openmigrate/pkg/steps"
	"github.com/openmigrate/openmigrate/pkg/telemetry"
)

// runtime bundles everything a command needs: the parsed configuration
// and the fully wired orchestrator with its store, gates, journal, and
// telemetry.
type runtime struct {
	cfg          *config.File
	logger       zerolog.Logger
	metrics      *telemetry.Metrics
	tracer       *telemetry.Tracer
	store        *state.Manager
	gates        *checkpoint.Manager
	journal      *journal.Store
	orchestrator *engine.Orchestrator
}

// buildRuntime loads the configuration and assembles the orchestrator
// stack. dryRun forces dry-run regardless of the config file.
func buildRuntime(ctx context.Context, dryRun bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := telemetry.NewLogger(cfg.Telemetry.Logging)
	if err != nil {
		return nil, err
	}

	metrics, err := telemetry.NewMetrics(cfg.Telemetry.Metrics)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		go func() {
			if err := metrics.Serve(); err != nil {
				logger.Warn().Err(err).Msg("Metrics listener stopped")
			}
		}()
	}

	tracer, err := telemetry.NewTracer(
		cfg.Telemetry.Tracing,
		cfg.Telemetry.ServiceName,
		cfg.Telemetry.ServiceVersion,
		cfg.Telemetry.Environment,
	)
	if err != nil {
		return nil, err
	}

	store := state.NewManager(cfg.State.Dir, cfg.State.BackupDir, logger)
	store.SetMetrics(metrics)

	gates, err := buildGates(cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := []engine.OrchestratorOption{
		engine.WithMetrics(metrics),
		engine.WithTracer(tracer.Tracer()),
		engine.WithDryRun(dryRun || cfg.Migration.DryRun),
	}

	var journalStore *journal.Store
	if cfg.Journal.Enabled {
		journalStore, err = journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithJournal(journalStore))
	}

	orchestrator := engine.NewOrchestrator(store, gates, logger, opts...)
	if err := steps.RegisterDefaults(orchestrator); err != nil {
		return nil, err
	}
	steps.RegisterProbes(orchestrator)

	return &runtime{
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		tracer:       tracer,
		store:        store,
		gates:        gates,
		journal:      journalStore,
		orchestrator: orchestrator,
	}, nil
}

// buildGates assembles the checkpoint manager from the built-in gates,
// the optional approval-directory handler, and any rego policy files.
func buildGates(cfg *config.File, logger zerolog.Logger) (*checkpoint.Manager, error) {
	gates := checkpoint.NewManager(logger)

	if !cfg.Checkpoints.DisableBuiltins {
		for _, cp := range checkpoint.Builtins() {
			if cfg.Checkpoints.ApprovalDir != "" {
				cp.Handler = checkpoint.ApprovalHandler(cfg.Checkpoints.ApprovalDir)
			}
			if err := gates.Register(cp); err != nil {
				return nil, err
			}
		}
	}

	if cfg.Checkpoints.PolicyDir != "" {
		policies, err := checkpoint.LoadRegoCheckpoints(cfg.Checkpoints.PolicyDir)
		if err != nil {
			return nil, err
		}
		for _, cp := range policies {
			if cfg.Checkpoints.ApprovalDir != "" {
				cp.Handler = checkpoint.ApprovalHandler(cfg.Checkpoints.ApprovalDir)
			}
			if err := gates.Register(cp); err != nil {
				return nil, err
			}
		}
	}

	return gates, nil
}

// close releases the runtime's resources.
func (r *runtime) close(ctx context.Context) {
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close journal")
		}
	}
	if err := r.tracer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to shut down tracer")
	}
}

// reportRun prints a run result. A checkpoint pause is an expected
// outcome and exits cleanly; anything else that stopped the run is an
// error.
func reportRun(res engine.RunResult, st *engine.MigrationState) error {
	if res.Success {
		fmt.Println("Migration completed successfully")
		return nil
	}
	if st != nil && st.Status == engine.StatusPaused {
		fmt.Printf("Migration paused at step %s: %s\n", res.FailedStep, res.Reason)
		fmt.Println("Resolve the condition and run 'openmigrate resume' to continue")
		return nil
	}
	if res.FailedStep != "" {
		return fmt.Errorf("migration stopped at step %s: %s", res.FailedStep, res.Reason)
	}
	return fmt.Errorf("migration stopped: %s", res.Reason)
}
