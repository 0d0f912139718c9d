// Package service wires configuration, logging, the traversal driver,
// the run-history store and trace artifact storage into one entry point
// a front-end (cmd/gpusatcount) can call.
package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/satcount/gpusatgo/internal/config"
	"github.com/satcount/gpusatgo/internal/driver"
	"github.com/satcount/gpusatgo/internal/repository"
	"github.com/satcount/gpusatgo/internal/storage"
	"github.com/satcount/gpusatgo/pkg/cnf"
	"github.com/satcount/gpusatgo/pkg/compression"
	"github.com/satcount/gpusatgo/pkg/model"
	"github.com/satcount/gpusatgo/pkg/telemetry"
	"github.com/satcount/gpusatgo/pkg/treedec"
	"github.com/satcount/gpusatgo/pkg/utils"
	"github.com/satcount/gpusatgo/pkg/writer"
)

// tracerName identifies this package's spans in the exported traces.
const tracerName = "github.com/satcount/gpusatgo/internal/service"

// Solver is the main application service: it owns the ambient
// components (database, storage) and drives one solve end to end,
// matching spec §6's external interface.
type Solver struct {
	config  *config.Config
	logger  utils.Logger
	db      *repository.Repositories
	storage storage.Storage

	running  bool
	shutdown telemetry.ShutdownFunc
}

// New creates a new Solver instance.
func New(cfg *config.Config, logger utils.Logger) (*Solver, error) {
	if logger == nil {
		level := utils.LevelInfo
		if cfg.Log.Level != "" {
			level = utils.ParseLogLevel(cfg.Log.Level)
		}
		if cfg.Log.OutputPath != "" {
			fileLogger, err := utils.NewFileLogger(level, cfg.Log.OutputPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open log file: %w", err)
			}
			logger = fileLogger
		} else {
			logger = utils.NewDefaultLogger(level, os.Stdout)
		}
	}

	return &Solver{
		config: cfg,
		logger: logger,
	}, nil
}

// Initialize initializes all service components.
func (s *Solver) Initialize(ctx context.Context) error {
	s.logger.Info("Initializing service components...")

	if err := s.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := s.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := s.initTelemetry(ctx); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	s.running = true
	s.logger.Info("Service components initialized successfully")
	return nil
}

// initDatabase initializes the database connection and repositories.
func (s *Solver) initDatabase() error {
	s.logger.Info("Connecting to database (%s)...", s.config.Database.Type)

	dbConfig := &repository.DBConfig{
		Type:     s.config.Database.Type,
		Host:     s.config.Database.Host,
		Port:     s.config.Database.Port,
		Database: s.config.Database.Database,
		User:     s.config.Database.User,
		Password: s.config.Database.Password,
		MaxConns: s.config.Database.MaxConns,
	}

	gormDB, err := repository.NewGormDB(dbConfig)
	if err != nil {
		return err
	}

	s.db = repository.NewRepositories(gormDB, s.config.Database.Type)
	s.logger.Info("Database connection established")

	return nil
}

// initStorage initializes the object storage used for trace artifacts.
func (s *Solver) initStorage() error {
	s.logger.Info("Initializing storage (%s)...", s.config.Storage.Type)

	store, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return err
	}

	s.storage = store
	s.logger.Info("Storage initialized")

	return nil
}

// initTelemetry starts OpenTelemetry tracing when the config enables it.
// telemetry.Init reads its settings from OTEL_* environment variables
// (the teacher's chosen convention), so the resolved config is first
// exported into the process environment.
func (s *Solver) initTelemetry(ctx context.Context) error {
	if !s.config.Telemetry.Enabled {
		return nil
	}

	os.Setenv("OTEL_ENABLED", "true")
	if s.config.Telemetry.ServiceName != "" {
		os.Setenv("OTEL_SERVICE_NAME", s.config.Telemetry.ServiceName)
	}
	if s.config.Telemetry.Endpoint != "" {
		os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", s.config.Telemetry.Endpoint)
	}

	shutdown, err := telemetry.Init(ctx)
	if err != nil {
		return err
	}
	s.shutdown = shutdown
	s.logger.Info("Telemetry initialized (service=%s endpoint=%s)", s.config.Telemetry.ServiceName, s.config.Telemetry.Endpoint)
	return nil
}

// Solve runs the engine over formula/decomp under task's resolved
// SolveConfig, persists a SolveRun row, and optionally uploads a trace
// document (spec §C.1, §C.2). It never mutates formula/decomp.
func (s *Solver) Solve(ctx context.Context, formula *cnf.Formula, decomp *treedec.Decomposition, task *model.SolveTask) (*model.SolveResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Solver.Solve")
	defer span.End()

	log := s.logger.WithField("bag_count", len(decomp.Bags))
	log.Info("Starting solve for %s / %s", task.FormulaPath, task.DecompPath)

	task.MarkRunning()
	start := time.Now()

	cfg := driver.DefaultConfig()
	if task.Layout != "" {
		cfg.Layout = driver.Layout(task.Layout)
	}
	if task.MaxBag > 0 {
		cfg.MaxBag = task.MaxBag
	}
	if task.CombineWidth > 0 {
		cfg.CombineWidth = task.CombineWidth
	}
	cfg.MaxMemoryBuffer = task.MaxMemoryBuffer

	timer := utils.NewTimer(fmt.Sprintf("solve-%d", task.ID), utils.WithLogger(s.logger))
	cfg.Timer = timer
	cfg.Logger = s.logger

	res, err := driver.Solve(ctx, formula, decomp, cfg)
	timer.PrintSummary()
	if err != nil {
		task.MarkDone(true, err.Error())
		s.recordRun(ctx, task, nil, time.Since(start))
		return nil, err
	}

	task.MarkDone(false, "")
	duration := time.Since(start)

	result := &model.SolveResult{
		TaskID:             task.ID,
		IsSat:              res.IsSat,
		Count:              res.Count,
		Exponent:           res.Exponent,
		NumJoin:            res.NumJoin,
		NumIntroduceForget: res.NumIntroduceForget,
		MaxTableSize:       res.MaxTableSize,
		AnalyzedAt:         time.Now(),
	}

	s.recordRun(ctx, task, result, duration)

	if task.DoTrace {
		s.uploadTrace(ctx, task, result)
	}

	log.Info("Solve finished: isSat=%v count=%v exponent=%d", res.IsSat, res.Count, res.Exponent)
	return result, nil
}

// recordRun persists a SolveRun row if a repository is configured.
// Failure to record history never fails the solve itself.
func (s *Solver) recordRun(ctx context.Context, task *model.SolveTask, result *model.SolveResult, duration time.Duration) {
	if s.db == nil || s.db.Run == nil {
		return
	}

	run := &repository.SolveRun{
		FormulaPath: task.FormulaPath,
		DecompPath:  task.DecompPath,
		Layout:      task.Layout,
		Weighted:    task.Weighted,
		DurationMS:  duration.Milliseconds(),
	}
	if result != nil {
		run.IsSat = result.IsSat
		run.Count = result.Count
		run.Exponent = result.Exponent
		run.NumJoin = result.NumJoin
		run.NumIntroduce = result.NumIntroduceForget
		run.MaxTableSize = result.MaxTableSize
	}

	if err := s.db.Run.SaveRun(ctx, run); err != nil {
		s.logger.Error("Failed to record solve run: %v", err)
	}
}

// uploadTrace writes the per-level trace document (spec §C.2). This
// implementation emits a single summary entry; the driver itself does
// not yet expose per-bag trace hooks.
func (s *Solver) uploadTrace(ctx context.Context, task *model.SolveTask, result *model.SolveResult) {
	if s.storage == nil {
		return
	}

	trace := &model.Trace{
		TaskID: task.ID,
		Entries: []model.TraceEntry{
			{
				Kind:      "root",
				TableSize: result.MaxTableSize,
				Exponent:  result.Exponent,
			},
		},
	}

	var buf bytes.Buffer
	if err := writer.NewJSONWriter[*model.Trace]().Write(trace, &buf); err != nil {
		s.logger.Error("Failed to marshal trace: %v", err)
		return
	}

	comp := compression.Default()
	defer compression.Close(comp)
	compressed, err := comp.Compress(buf.Bytes())
	if err != nil {
		s.logger.Error("Failed to compress trace (%s): %v", comp.Name(), err)
		return
	}

	key := fmt.Sprintf("traces/%s.json.zst", task.DecompPath)
	if err := s.storage.Upload(ctx, key, bytes.NewReader(compressed)); err != nil {
		s.logger.Error("Failed to upload trace: %v", err)
	}
}

// Stop stops the service gracefully, closing owned resources.
func (s *Solver) Stop() error {
	s.logger.Info("Stopping service...")

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection: %v", err)
		}
	}

	if s.shutdown != nil {
		if err := s.shutdown(context.Background()); err != nil {
			s.logger.Error("Failed to shut down telemetry: %v", err)
		}
	}

	s.running = false
	s.logger.Info("Service stopped")

	return nil
}

// IsRunning returns whether the service has been initialized.
func (s *Solver) IsRunning() bool {
	return s.running
}

// HealthCheck performs a health check on the service.
func (s *Solver) HealthCheck(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}
	return nil
}

// ServiceStats holds service statistics.
type ServiceStats struct {
	Running bool `json:"running"`
}

// Stats returns service statistics.
func (s *Solver) Stats() ServiceStats {
	return ServiceStats{Running: s.running}
}
