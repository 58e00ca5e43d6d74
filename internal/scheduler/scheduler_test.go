package scheduler

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/advisor/internal/modules/universe"
)

type stubJob struct {
	name     string
	runs     int
	err      error
	panicMsg string
}

func (j *stubJob) Name() string { return j.name }

func (j *stubJob) Run() error {
	j.runs++
	if j.panicMsg != "" {
		panic(j.panicMsg)
	}
	return j.err
}

func TestSchedulerRegistersAndReportsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("0 30 2 * * *", &stubJob{name: "nightly"}))
	require.NoError(t, s.AddJob("@hourly", &stubJob{name: "hourly"}))

	status := s.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "nightly", status[0].Name)
	assert.Equal(t, "0 30 2 * * *", status[0].Schedule)
	assert.True(t, status[0].NextRun.IsZero(), "next run is unknown before start")

	s.Start()
	defer s.Stop()

	status = s.Status()
	assert.False(t, status[0].NextRun.IsZero())
	assert.False(t, status[1].NextRun.IsZero())
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddJob("not a schedule", &stubJob{name: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Empty(t, s.Status())
}

func TestRunNowExecutesJob(t *testing.T) {
	s := New(zerolog.Nop())
	job := &stubJob{name: "once"}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)
}

func TestRunNowReturnsJobError(t *testing.T) {
	s := New(zerolog.Nop())
	job := &stubJob{name: "failing", err: errors.New("disk full")}

	err := s.RunNow(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRunNowRecoversPanic(t *testing.T) {
	s := New(zerolog.Nop())
	job := &stubJob{name: "crashy", panicMsg: "nil map write"}

	err := s.RunNow(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crashy panicked")
	assert.Contains(t, err.Error(), "nil map write")
}

type stubReloader struct {
	dir    string
	result *universe.ImportResult
	err    error
}

func (r *stubReloader) Reload(dir string) (*universe.ImportResult, error) {
	r.dir = dir
	return r.result, r.err
}

type stubInvalidator struct {
	calls int
	err   error
}

func (i *stubInvalidator) InvalidateAll() error {
	i.calls++
	return i.err
}

func TestReloadJobReloadsAndInvalidates(t *testing.T) {
	reloader := &stubReloader{result: &universe.ImportResult{Files: 3, Rows: 1200}}
	cache := &stubInvalidator{}
	job := NewReloadJob(reloader, cache, "/data/market", zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, "/data/market", reloader.dir)
	assert.Equal(t, 1, cache.calls)
}

func TestReloadJobKeepsCacheOnImportFailure(t *testing.T) {
	reloader := &stubReloader{err: errors.New("directory missing")}
	cache := &stubInvalidator{}
	job := NewReloadJob(reloader, cache, "/data/market", zerolog.Nop())

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reload market data")
	assert.Zero(t, cache.calls, "cache must survive a failed import")
}

func TestReloadJobReportsInvalidationFailure(t *testing.T) {
	reloader := &stubReloader{result: &universe.ImportResult{Files: 1, Rows: 10}}
	cache := &stubInvalidator{err: errors.New("cache locked")}
	job := NewReloadJob(reloader, cache, "/data/market", zerolog.Nop())

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalidate statistics cache")
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE sample (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	return db
}

func TestCheckWALCheckpointsJobRuns(t *testing.T) {
	job := NewCheckWALCheckpointsJob(openTestDB(t), openTestDB(t), nil, zerolog.Nop())
	assert.Equal(t, "check_wal_checkpoints", job.Name())
	require.NoError(t, job.Run())
}

func TestCheckCoreDatabasesJobPassesOnHealthyDBs(t *testing.T) {
	job := NewCheckCoreDatabasesJob(openTestDB(t), openTestDB(t), openTestDB(t), zerolog.Nop())
	assert.Equal(t, "check_core_databases", job.Name())
	require.NoError(t, job.Run())
}
