package history

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/elokus/StructGenie/engine"
	"github.com/elokus/StructGenie/testutil/fixtures"
	"github.com/elokus/StructGenie/testutil/mocks"
	"github.com/elokus/StructGenie/types"
)

// =============================================================================
// Store tests
// =============================================================================

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "history.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(engineName string, started time.Time, err error, failures ...error) *engine.RunRecord {
	rec := &engine.RunRecord{
		RunID:     uuid.New(),
		Engine:    engineName,
		Inputs:    map[string]any{"text": "hello"},
		StartedAt: started,
		Err:       err,
		Metrics: engine.RunMetrics{
			Attempts:    len(failures) + 1,
			FailureRate: len(failures),
			TotalTokens: 30 * (len(failures) + 1),
			Elapsed:     1500 * time.Millisecond,
			Errors:      failures,
		},
	}
	if err == nil {
		rec.Output = map[string]any{"summary": "A short text.", "words": 3}
	}
	return rec
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported history driver")
}

func TestStore_RecordAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	failures := []error{
		types.NewEngineRunError(0, &types.ParsingError{Message: "Failed to parse output"}),
		types.NewEngineRunError(1, &types.ValidationError{Errors: []*types.Error{
			types.NewError(types.ErrValidationKey, "Key 'words' not in output"),
		}}),
	}
	rec := record("summary", time.Now(), nil, failures...)
	require.NoError(t, s.Record(ctx, rec))

	got, err := s.Get(ctx, rec.RunID.String())
	require.NoError(t, err)
	assert.Equal(t, "summary", got.Engine)
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, 2, got.FailedAttempts)
	assert.Equal(t, 90, got.TotalTokens)
	assert.Equal(t, int64(1500), got.ElapsedMS)
	assert.Contains(t, got.Output, "words: 3")
	assert.Contains(t, got.Inputs, "text: hello")

	require.Len(t, got.Failures, 2)
	assert.Equal(t, 0, got.Failures[0].Attempt)
	assert.Equal(t, "parsing", got.Failures[0].Kind)
	assert.Equal(t, 1, got.Failures[1].Attempt)
	assert.Equal(t, "validation", got.Failures[1].Kind)
	assert.Contains(t, got.Failures[1].Message, "Key 'words' not in output")
}

func TestStore_RecordFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	runErr := &types.MaxRetriesError{Attempts: 1}
	rec := record("summary", time.Now(), runErr, types.NewEngineRunError(0, errors.New("generate: down")))
	require.NoError(t, s.Record(ctx, rec))

	got, err := s.Get(ctx, rec.RunID.String())
	require.NoError(t, err)
	assert.Equal(t, "failure", got.Status)
	assert.Equal(t, "max_retries", got.ErrorKind)
	assert.Empty(t, got.Output)

	// run ids are unique
	assert.Error(t, s.Record(ctx, rec))
}

func TestStore_GetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListAndSummarize(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, s.Record(ctx, record("summary", base, nil)))
	require.NoError(t, s.Record(ctx, record("summary", base.Add(time.Minute), errors.New("boom"), errors.New("x"))))
	require.NoError(t, s.Record(ctx, record("title", base.Add(2*time.Minute), nil)))

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "title", all[0].Engine)

	failed, err := s.List(ctx, Filter{Engine: "summary", Status: "failure"})
	require.NoError(t, err)
	require.Len(t, failed, 1)

	limited, err := s.List(ctx, Filter{Limit: 2, Since: base.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	sum, err := s.Summarize(ctx, "summary")
	require.NoError(t, err)
	assert.Equal(t, Summary{Runs: 2, Failures: 1, Attempts: 3, TotalTokens: 90}, sum)
	assert.InDelta(t, 1.5, sum.AverageAttempts(), 1e-9)

	total, err := s.Summarize(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total.Runs)
	assert.Zero(t, Summary{}.AverageAttempts())
}

func TestStore_Prune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := record("summary", now.Add(-48*time.Hour), nil, errors.New("x"))
	fresh := record("summary", now, nil)
	require.NoError(t, s.Record(ctx, old))
	require.NoError(t, s.Record(ctx, fresh))

	n, err := s.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get(ctx, old.RunID.String())
	assert.ErrorIs(t, err, ErrNotFound)
	var failures int64
	require.NoError(t, s.db.Model(&Failure{}).Count(&failures).Error)
	assert.Zero(t, failures)
}

func TestStore_EngineRecorder(t *testing.T) {
	s := openTestStore(t)
	p := mocks.NewMockPredictor().WithResponses("Summary: hi", fixtures.SummaryCompletion)
	e, err := engine.FromTemplate(fixtures.SummaryTemplate,
		engine.WithName("summary"),
		engine.WithPredictor(p),
		engine.WithRecorder(s),
	)
	require.NoError(t, err)

	res, err := e.Run(context.Background(), map[string]any{"text": "hello"})
	require.NoError(t, err)

	got, err := s.Get(context.Background(), res.Metrics.RunID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "validation", got.Failures[0].Kind)
}

// =============================================================================
// PostgreSQL dialect
// =============================================================================

func TestStore_RecordPostgres(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	s := New(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "structgenie_runs"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Record(context.Background(), record("summary", time.Now(), nil)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
