package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/jonathan/report-renderer/internal/observability"
	"github.com/jonathan/report-renderer/internal/types"
)

// JobStore is the lifecycle record façade for report jobs.
type JobStore interface {
	// CreateJob inserts a pending job and returns its fresh id.
	CreateJob(ctx context.Context, params types.ReportParams) (string, error)
	// GetJob returns the job, or false when it is absent or could not be read.
	GetJob(ctx context.Context, id string) (*types.Job, bool)
	// UpdateJob writes only the fields set in update, plus updated_at.
	UpdateJob(ctx context.Context, id string, update types.JobUpdate) error
	// CleanupOldJobs deletes jobs created more than maxAgeHours ago, whatever their status.
	// It never fails; the number of removed rows is returned for reporting.
	CleanupOldJobs(ctx context.Context, maxAgeHours int) int64
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close()
}

// DefaultMaxAgeHours is the retention used when a non-positive age is passed to CleanupOldJobs.
const DefaultMaxAgeHours = 24

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewJobID returns an id of the form report_<unix-millis>_<8 base36 chars>.
func NewJobID(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(idAlphabet, 8)
	if err != nil {
		return "", fmt.Errorf("failed to generate job id: %w", err)
	}
	return fmt.Sprintf("report_%d_%s", now.UnixMilli(), suffix), nil
}

// Option configures a job store backend.
type Option func(*storeOptions)

type storeOptions struct {
	now    func() time.Time
	logger *observability.Logger
}

// WithClock overrides the time source used for created_at, updated_at and cleanup cutoffs.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

// WithLogger sets the logger used for swallowed read and cleanup failures.
func WithLogger(logger *observability.Logger) Option {
	return func(o *storeOptions) { o.logger = logger }
}

func newStoreOptions(opts []Option) storeOptions {
	o := storeOptions{now: time.Now, logger: observability.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.Component("job_store")
	return o
}

// jobColumns is the select list shared by both backends; jobRow.targets scans
// the same order minus the two trailing timestamps.
const jobColumns = `id, brand_id, campaign_ids, location_ids, from_date, to_date, currency,
	time_zone, home_page_details, logo, level, status, progress, download_url, error,
	created_at, updated_at`

type jobRow struct {
	id              string
	brandID         string
	campaignIDs     []byte
	locationIDs     []byte
	fromDate        *string
	toDate          *string
	currency        *string
	timeZone        *string
	homePageDetails []byte
	logo            *string
	level           *string
	status          string
	progress        int
	downloadURL     *string
	errorMessage    *string
}

func (r *jobRow) targets() []any {
	return []any{
		&r.id, &r.brandID, &r.campaignIDs, &r.locationIDs, &r.fromDate, &r.toDate, &r.currency,
		&r.timeZone, &r.homePageDetails, &r.logo, &r.level, &r.status, &r.progress,
		&r.downloadURL, &r.errorMessage,
	}
}

func (r *jobRow) toJob(createdAt, updatedAt time.Time) (*types.Job, error) {
	job := &types.Job{
		ID: r.id,
		ReportParams: types.ReportParams{
			BrandID:  r.brandID,
			FromDate: deref(r.fromDate),
			ToDate:   deref(r.toDate),
			Currency: deref(r.currency),
			TimeZone: deref(r.timeZone),
			Logo:     deref(r.logo),
			Level:    types.Level(deref(r.level)),
		},
		Status:      types.JobStatus(r.status),
		Progress:    r.progress,
		DownloadURL: deref(r.downloadURL),
		Error:       deref(r.errorMessage),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
	if len(r.homePageDetails) > 0 {
		job.HomePageDetails = json.RawMessage(r.homePageDetails)
	}
	var err error
	if job.CampaignIDs, err = decodeOptions(r.campaignIDs); err != nil {
		return nil, fmt.Errorf("failed to decode campaign_ids: %w", err)
	}
	if job.LocationIDs, err = decodeOptions(r.locationIDs); err != nil {
		return nil, fmt.Errorf("failed to decode location_ids: %w", err)
	}
	return job, nil
}

// columnValue is one assignment in an INSERT or sparse UPDATE.
type columnValue struct {
	name  string
	value any
}

// paramColumns returns the parameter columns of a new job in insert order.
func paramColumns(p types.ReportParams) ([]columnValue, error) {
	campaigns, err := encodeOptions(p.CampaignIDs)
	if err != nil {
		return nil, err
	}
	locations, err := encodeOptions(p.LocationIDs)
	if err != nil {
		return nil, err
	}
	return []columnValue{
		{"brand_id", p.BrandID},
		{"campaign_ids", campaigns},
		{"location_ids", locations},
		{"from_date", nullable(p.FromDate)},
		{"to_date", nullable(p.ToDate)},
		{"currency", nullable(p.Currency)},
		{"time_zone", nullable(p.TimeZone)},
		{"home_page_details", rawJSON(p.HomePageDetails)},
		{"logo", nullable(p.Logo)},
		{"level", nullable(string(p.Level))},
	}, nil
}

// updateColumns maps the set fields of u onto their columns.
func updateColumns(u types.JobUpdate) ([]columnValue, error) {
	if u.Status != nil && !u.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", *u.Status)
	}
	if u.Progress != nil && (*u.Progress < 0 || *u.Progress > 100) {
		return nil, fmt.Errorf("progress %d out of range", *u.Progress)
	}

	var cols []columnValue
	add := func(name string, value any) { cols = append(cols, columnValue{name, value}) }

	if u.BrandID != nil {
		add("brand_id", *u.BrandID)
	}
	if u.CampaignIDs != nil {
		v, err := encodeOptions(*u.CampaignIDs)
		if err != nil {
			return nil, err
		}
		add("campaign_ids", v)
	}
	if u.LocationIDs != nil {
		v, err := encodeOptions(*u.LocationIDs)
		if err != nil {
			return nil, err
		}
		add("location_ids", v)
	}
	if u.FromDate != nil {
		add("from_date", nullable(*u.FromDate))
	}
	if u.ToDate != nil {
		add("to_date", nullable(*u.ToDate))
	}
	if u.Currency != nil {
		add("currency", nullable(*u.Currency))
	}
	if u.TimeZone != nil {
		add("time_zone", nullable(*u.TimeZone))
	}
	if u.HomePageDetails != nil {
		add("home_page_details", rawJSON(*u.HomePageDetails))
	}
	if u.Logo != nil {
		add("logo", nullable(*u.Logo))
	}
	if u.Level != nil {
		add("level", nullable(string(*u.Level)))
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.Progress != nil {
		add("progress", *u.Progress)
	}
	if u.DownloadURL != nil {
		add("download_url", nullable(*u.DownloadURL))
	}
	if u.Error != nil {
		add("error", nullable(*u.Error))
	}
	return cols, nil
}

// buildUpdate renders "UPDATE report_jobs SET a = $1, ..., updated_at = $n WHERE id = $n+1".
func buildUpdate(cols []columnValue, updatedAt any, id string, placeholder func(n int) string) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(cols)+2)

	sb.WriteString("UPDATE report_jobs SET ")
	for _, col := range cols {
		args = append(args, col.value)
		fmt.Fprintf(&sb, "%s = %s, ", col.name, placeholder(len(args)))
	}
	args = append(args, updatedAt)
	fmt.Fprintf(&sb, "updated_at = %s", placeholder(len(args)))
	args = append(args, id)
	fmt.Fprintf(&sb, " WHERE id = %s", placeholder(len(args)))

	return sb.String(), args
}

// buildInsert renders the INSERT for a new job.
func buildInsert(id string, cols []columnValue, status types.JobStatus, createdAt any, placeholder func(n int) string) (string, []any) {
	names := []string{"id"}
	args := []any{id}
	for _, col := range cols {
		names = append(names, col.name)
		args = append(args, col.value)
	}
	names = append(names, "status", "progress", "created_at", "updated_at")
	args = append(args, string(status), 0, createdAt, createdAt)

	marks := make([]string, len(args))
	for i := range args {
		marks[i] = placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO report_jobs (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(marks, ", "))
	return query, args
}

// schemaStatements splits an embedded schema file into individual statements.
func schemaStatements(schema string) []string {
	var stmts []string
	for _, stmt := range strings.Split(schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

func cleanupCutoff(now time.Time, maxAgeHours int) time.Time {
	if maxAgeHours <= 0 {
		maxAgeHours = DefaultMaxAgeHours
	}
	return now.Add(-time.Duration(maxAgeHours) * time.Hour)
}

func encodeOptions(options []types.Option) (any, error) {
	if len(options) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}
	return string(data), nil
}

func decodeOptions(data []byte) ([]types.Option, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var options []types.Option
	if err := json.Unmarshal(data, &options); err != nil {
		return nil, err
	}
	return options, nil
}

func rawJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
