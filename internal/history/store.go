package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/elokus/StructGenie/engine"
	"github.com/elokus/StructGenie/types"
)

// =============================================================================
// Run history store
// =============================================================================

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Config selects and tunes the database.
type Config struct {
	// Driver is sqlite, postgres or mysql.
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store persists run records with gorm. It implements engine.Recorder.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ engine.Recorder = (*Store)(nil)

// Open connects to the configured database, tunes the pool and migrates
// the schema.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := New(db, logger)
	if err := s.Migrate(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s.logger.Info("history store opened", zap.String("driver", cfg.Driver))
	return s, nil
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported history driver: %q (supported: sqlite, postgres, mysql)", cfg.Driver)
	}
}

// New wraps an open database without migrating it.
func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.With(zap.String("component", "history"))}
}

// Migrate creates or updates the history tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Run{}, &Failure{}); err != nil {
		return fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// =============================================================================
// engine.Recorder
// =============================================================================

// Record stores rec with one Failure row per failed attempt.
func (s *Store) Record(ctx context.Context, rec *engine.RunRecord) error {
	run, err := fromRecord(rec)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		s.logger.Error("record run failed", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	s.logger.Debug("run recorded", zap.String("run_id", run.ID), zap.String("status", run.Status))
	return nil
}

func fromRecord(rec *engine.RunRecord) (*Run, error) {
	inputs, err := yaml.Marshal(rec.Inputs)
	if err != nil {
		return nil, fmt.Errorf("encode inputs: %w", err)
	}
	run := &Run{
		ID:             rec.RunID.String(),
		Engine:         rec.Engine,
		Status:         "success",
		Attempts:       rec.Metrics.Attempts,
		FailedAttempts: rec.Metrics.FailureRate,
		TotalTokens:    rec.Metrics.TotalTokens,
		ElapsedMS:      rec.Metrics.Elapsed.Milliseconds(),
		Inputs:         string(inputs),
		StartedAt:      rec.StartedAt,
	}
	if rec.Output != nil {
		output, err := yaml.Marshal(rec.Output)
		if err != nil {
			return nil, fmt.Errorf("encode output: %w", err)
		}
		run.Output = string(output)
	}
	if rec.Err != nil {
		run.Status = "failure"
		run.Error = rec.Err.Error()
		run.ErrorKind = types.ErrorKind(rec.Err)
	}
	for _, ferr := range rec.Metrics.Errors {
		f := Failure{Kind: types.ErrorKind(ferr), Message: ferr.Error()}
		var re *types.EngineRunError
		if errors.As(ferr, &re) {
			f.Attempt = re.Attempt
			f.Message = re.Err.Error()
		}
		run.Failures = append(run.Failures, f)
	}
	return run, nil
}

// =============================================================================
// Queries
// =============================================================================

// Get loads one run with its failures.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Preload("Failures", func(db *gorm.DB) *gorm.DB { return db.Order("attempt") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Engine string
	Status string
	Since  time.Time
	Limit  int
}

// List returns runs newest first, without failures.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	q := s.db.WithContext(ctx).Model(&Run{})
	if f.Engine != "" {
		q = q.Where("engine = ?", f.Engine)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.Since.IsZero() {
		q = q.Where("started_at >= ?", f.Since)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var runs []Run
	if err := q.Order("started_at desc").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Summary aggregates the runs of one engine.
type Summary struct {
	Runs        int64
	Failures    int64
	Attempts    int64
	TotalTokens int64
}

// AverageAttempts is Attempts per run, or 0 without runs.
func (s Summary) AverageAttempts() float64 {
	if s.Runs == 0 {
		return 0
	}
	return float64(s.Attempts) / float64(s.Runs)
}

// Summarize aggregates all runs of engineName, or of every engine when it
// is empty.
func (s *Store) Summarize(ctx context.Context, engineName string) (Summary, error) {
	q := s.db.WithContext(ctx).Model(&Run{})
	if engineName != "" {
		q = q.Where("engine = ?", engineName)
	}

	var out Summary
	err := q.Select(
		"COUNT(*) AS runs, " +
			"COALESCE(SUM(CASE WHEN status = 'failure' THEN 1 ELSE 0 END), 0) AS failures, " +
			"COALESCE(SUM(attempts), 0) AS attempts, " +
			"COALESCE(SUM(total_tokens), 0) AS total_tokens",
	).Scan(&out).Error
	if err != nil {
		return Summary{}, fmt.Errorf("summarize runs: %w", err)
	}
	return out, nil
}

// Prune deletes runs started before t together with their failures and
// returns the number of runs removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old := tx.Model(&Run{}).Select("id").Where("started_at < ?", before)
		if err := tx.Where("run_id IN (?)", old).Delete(&Failure{}).Error; err != nil {
			return err
		}
		res := tx.Where("started_at < ?", before).Delete(&Run{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return removed, nil
}
