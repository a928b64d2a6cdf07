package db

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/report-renderer/internal/types"
)

// testClock is a settable time source for deterministic timestamps.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func openTestSQLite(t *testing.T) (*SQLiteDB, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "jobs.db"), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store, clock
}

func sampleParams() types.ReportParams {
	return types.ReportParams{
		BrandID:         "brand-42",
		CampaignIDs:     []types.Option{{Value: "c1", Label: "Spring"}, {Value: "77"}},
		LocationIDs:     []types.Option{{Value: "loc-9", Label: "Downtown"}},
		FromDate:        "2025-01-01",
		ToDate:          "2025-01-31",
		Currency:        "USD",
		TimeZone:        "America/New_York",
		HomePageDetails: json.RawMessage(`{"title":"Monthly"}`),
		Logo:            "https://cdn.example.com/logo.png",
		Level:           types.LevelCampaign,
	}
}

func TestNewJobID_Format(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id, err := NewJobID(now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^report_1700000000123_[0-9a-z]{8}$`), id)

	other, err := NewJobID(now)
	require.NoError(t, err)
	assert.NotEqual(t, id, other, "ids should not repeat within the same millisecond")
}

func TestSQLite_CreateAndGetJob(t *testing.T) {
	store, clock := openTestSQLite(t)
	ctx := context.Background()

	id, err := store.CreateJob(ctx, sampleParams())
	require.NoError(t, err)

	job, ok := store.GetJob(ctx, id)
	require.True(t, ok)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, types.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Empty(t, job.DownloadURL)
	assert.Empty(t, job.Error)
	assert.Equal(t, sampleParams().CampaignIDs, job.CampaignIDs)
	assert.Equal(t, sampleParams().LocationIDs, job.LocationIDs)
	assert.JSONEq(t, `{"title":"Monthly"}`, string(job.HomePageDetails))
	assert.Equal(t, types.LevelCampaign, job.Level)
	assert.True(t, clock.now.Equal(job.CreatedAt))
	assert.True(t, clock.now.Equal(job.UpdatedAt))
	assert.NoError(t, job.CheckInvariants())
}

func TestSQLite_GetJobAbsent(t *testing.T) {
	store, _ := openTestSQLite(t)

	job, ok := store.GetJob(context.Background(), "report_0_missing0")
	assert.False(t, ok)
	assert.Nil(t, job)
}

func TestSQLite_UpdateJobIsSparse(t *testing.T) {
	store, clock := openTestSQLite(t)
	ctx := context.Background()

	id, err := store.CreateJob(ctx, sampleParams())
	require.NoError(t, err)
	created := clock.now

	clock.Advance(time.Minute)
	require.NoError(t, store.UpdateJob(ctx, id, types.ProcessingUpdate(40)))

	job, ok := store.GetJob(ctx, id)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusProcessing, job.Status)
	assert.Equal(t, 40, job.Progress)
	assert.Equal(t, "brand-42", job.BrandID, "untouched fields must survive a partial update")
	assert.Equal(t, "USD", job.Currency)
	assert.Len(t, job.CampaignIDs, 2)
	assert.True(t, created.Equal(job.CreatedAt))
	assert.True(t, clock.now.Equal(job.UpdatedAt))

	currency := "EUR"
	require.NoError(t, store.UpdateJob(ctx, id, types.JobUpdate{Currency: &currency}))
	job, ok = store.GetJob(ctx, id)
	require.True(t, ok)
	assert.Equal(t, "EUR", job.Currency)
	assert.Equal(t, 40, job.Progress)
}

func TestSQLite_EmptyUpdateIsNoop(t *testing.T) {
	store, clock := openTestSQLite(t)
	ctx := context.Background()

	id, err := store.CreateJob(ctx, sampleParams())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	require.NoError(t, store.UpdateJob(ctx, id, types.JobUpdate{}))

	job, ok := store.GetJob(ctx, id)
	require.True(t, ok)
	assert.True(t, job.CreatedAt.Equal(job.UpdatedAt), "empty update must not touch updated_at")
}

func TestSQLite_TerminalUpdatesKeepInvariants(t *testing.T) {
	store, _ := openTestSQLite(t)
	ctx := context.Background()

	id, err := store.CreateJob(ctx, sampleParams())
	require.NoError(t, err)

	require.NoError(t, store.UpdateJob(ctx, id, types.ProcessingUpdate(85)))
	require.NoError(t, store.UpdateJob(ctx, id, types.DownloadUpdate("https://cdn.example.com/report.pdf")))

	job, ok := store.GetJob(ctx, id)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusDownload, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "https://cdn.example.com/report.pdf", job.DownloadURL)
	assert.NoError(t, job.CheckInvariants())

	other, err := store.CreateJob(ctx, sampleParams())
	require.NoError(t, err)
	require.NoError(t, store.UpdateJob(ctx, other, types.ProcessingUpdate(70)))
	require.NoError(t, store.UpdateJob(ctx, other, types.FailedUpdate("navigation error: timeout")))

	job, ok = store.GetJob(ctx, other)
	require.True(t, ok)
	assert.Equal(t, types.JobStatusFailed, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, "navigation error: timeout", job.Error)
	assert.Empty(t, job.DownloadURL)
	assert.NoError(t, job.CheckInvariants())
}

func TestSQLite_UpdateRejectsInvalidValues(t *testing.T) {
	store, _ := openTestSQLite(t)
	ctx := context.Background()

	id, err := store.CreateJob(ctx, sampleParams())
	require.NoError(t, err)

	status := types.JobStatus("Exploded")
	err = store.UpdateJob(ctx, id, types.JobUpdate{Status: &status})
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "update job", perr.Op)

	progress := 101
	err = store.UpdateJob(ctx, id, types.JobUpdate{Progress: &progress})
	require.True(t, errors.As(err, &perr))
}

func TestSQLite_CleanupOldJobs(t *testing.T) {
	store, clock := openTestSQLite(t)
	ctx := context.Background()

	oldDone, err := store.CreateJob(ctx, sampleParams())
	require.NoError(t, err)
	require.NoError(t, store.UpdateJob(ctx, oldDone, types.ProcessingUpdate(20)))
	require.NoError(t, store.UpdateJob(ctx, oldDone, types.DownloadUpdate("https://cdn.example.com/a.pdf")))

	clock.Advance(time.Hour)
	oldPending, err := store.CreateJob(ctx, sampleParams())
	require.NoError(t, err)

	clock.Advance(20 * time.Hour)
	fresh, err := store.CreateJob(ctx, sampleParams())
	require.NoError(t, err)

	// oldDone is 25h30m old, oldPending 24h30m, fresh 4h30m.
	clock.Advance(4*time.Hour + 30*time.Minute)

	removed := store.CleanupOldJobs(ctx, 24)
	assert.Equal(t, int64(2), removed)

	_, ok := store.GetJob(ctx, oldDone)
	assert.False(t, ok, "terminal jobs past the cutoff are removed")
	_, ok = store.GetJob(ctx, oldPending)
	assert.False(t, ok, "non-terminal jobs past the cutoff are removed too")
	_, ok = store.GetJob(ctx, fresh)
	assert.True(t, ok)
}

func TestSQLite_CleanupDefaultsAge(t *testing.T) {
	store, clock := openTestSQLite(t)
	ctx := context.Background()

	id, err := store.CreateJob(ctx, sampleParams())
	require.NoError(t, err)

	clock.Advance(23 * time.Hour)
	assert.Equal(t, int64(0), store.CleanupOldJobs(ctx, 0))

	clock.Advance(2 * time.Hour)
	assert.Equal(t, int64(1), store.CleanupOldJobs(ctx, 0))
	_, ok := store.GetJob(ctx, id)
	assert.False(t, ok)
}

func TestSQLite_FailuresAfterClose(t *testing.T) {
	clock := &testClock{now: time.Now()}
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "jobs.db"), WithClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()

	id, err := store.CreateJob(ctx, sampleParams())
	require.NoError(t, err)
	store.Close()

	_, ok := store.GetJob(ctx, id)
	assert.False(t, ok, "read failures collapse to absent")

	_, err = store.CreateJob(ctx, sampleParams())
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "create job", perr.Op)

	assert.Equal(t, int64(0), store.CleanupOldJobs(ctx, 24), "cleanup never fails")
}

func TestBuildUpdate_Postgres(t *testing.T) {
	cols, err := updateColumns(types.ProcessingUpdate(70))
	require.NoError(t, err)

	at := time.Unix(0, 0)
	query, args := buildUpdate(cols, at, "report_1_abcdefgh", pgPlaceholder)

	assert.Equal(t, "UPDATE report_jobs SET status = $1, progress = $2, updated_at = $3 WHERE id = $4", query)
	assert.Equal(t, []any{"Processing", 70, at, "report_1_abcdefgh"}, args)
}

func TestBuildInsert_SQLite(t *testing.T) {
	cols, err := paramColumns(types.ReportParams{BrandID: "b"})
	require.NoError(t, err)

	query, args := buildInsert("report_1_x", cols, types.JobStatusPending, int64(5), sqlitePlaceholder)
	assert.Contains(t, query, "INSERT INTO report_jobs (id, brand_id, campaign_ids")
	assert.Len(t, args, len(cols)+5)
	assert.Equal(t, "pending", args[len(args)-4])
	assert.Nil(t, args[2], "empty option lists are stored as NULL")
}

func TestUpdateColumns_EmptyStringsBecomeNull(t *testing.T) {
	cols, err := updateColumns(types.DownloadUpdate("https://x/y.pdf"))
	require.NoError(t, err)

	byName := map[string]any{}
	for _, c := range cols {
		byName[c.name] = c.value
	}
	assert.Equal(t, "https://x/y.pdf", byName["download_url"])
	assert.Nil(t, byName["error"])
}
