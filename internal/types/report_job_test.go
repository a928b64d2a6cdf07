//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusPending, JobStatusDownload, false},
		{JobStatusProcessing, JobStatusProcessing, true},
		{JobStatusProcessing, JobStatusDownload, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusDownload, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusProcessing, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, JobStatusDownload.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.False(t, JobStatus("done").Valid())
}

func TestLevel_Normalize(t *testing.T) {
	assert.Equal(t, LevelCampaign, Level("Campaign Level").Normalize())
	assert.Equal(t, LevelCampaign, Level(" campaign ").Normalize())
	assert.Equal(t, LevelLocation, Level("LOCATION LEVEL").Normalize())
	assert.Equal(t, LevelUnscoped, Level("Brand Level").Normalize())
	assert.Equal(t, LevelUnscoped, Level("").Normalize())
}

func TestOptionValue_UnmarshalJSON(t *testing.T) {
	var opts []Option
	require.NoError(t, json.Unmarshal([]byte(`[{"value":12,"label":"a"},{"value":"x-1"},{"value":1.5},{"value":null}]`), &opts))

	require.Len(t, opts, 4)
	assert.Equal(t, OptionValue("12"), opts[0].Value)
	assert.Equal(t, "a", opts[0].Label)
	assert.Equal(t, OptionValue("x-1"), opts[1].Value)
	assert.Equal(t, OptionValue("1.5"), opts[2].Value)
	assert.Equal(t, OptionValue(""), opts[3].Value)

	var bad Option
	assert.Error(t, json.Unmarshal([]byte(`{"value":true}`), &bad))
}

func TestReportParams_FillMissing(t *testing.T) {
	stored := ReportParams{
		BrandID:     "brand-1",
		CampaignIDs: []Option{{Value: "1"}},
		Currency:    "USD",
		Level:       LevelCampaign,
		Logo:        "https://cdn.example.com/logo.png",
	}
	params := ReportParams{Currency: "EUR"}

	params.FillMissing(stored)

	assert.Equal(t, "brand-1", params.BrandID)
	assert.Equal(t, "EUR", params.Currency)
	assert.Equal(t, LevelCampaign, params.Level)
	assert.Equal(t, stored.CampaignIDs, params.CampaignIDs)
	assert.Equal(t, stored.Logo, params.Logo)
}

func TestJobUpdate_ApplyKeepsInvariants(t *testing.T) {
	job := &Job{ID: "report_1_abc", ReportParams: ReportParams{BrandID: "b"}, Status: JobStatusPending}
	require.NoError(t, job.CheckInvariants())

	ProcessingUpdate(40).Apply(job)
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, 40, job.Progress)
	require.NoError(t, job.CheckInvariants())

	DownloadUpdate("https://cdn.example.com/r.pdf").Apply(job)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "https://cdn.example.com/r.pdf", job.DownloadURL)
	require.NoError(t, job.CheckInvariants())

	failed := &Job{ID: "j", Status: JobStatusProcessing, Progress: 70}
	FailedUpdate("").Apply(failed)
	assert.Equal(t, JobStatusFailed, failed.Status)
	assert.Equal(t, 0, failed.Progress)
	assert.Equal(t, "report generation failed", failed.Error)
	require.NoError(t, failed.CheckInvariants())
}

func TestJob_CheckInvariants(t *testing.T) {
	tests := []struct {
		name string
		job  Job
	}{
		{"unknown status", Job{Status: "done"}},
		{"progress out of range", Job{Status: JobStatusProcessing, Progress: 120}},
		{"complete progress without download", Job{Status: JobStatusProcessing, Progress: 100}},
		{"download without url", Job{Status: JobStatusDownload, Progress: 100}},
		{"error on a processing job", Job{Status: JobStatusProcessing, Progress: 20, Error: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.job.CheckInvariants())
		})
	}
}

func TestJobUpdate_IsEmpty(t *testing.T) {
	assert.True(t, JobUpdate{}.IsEmpty())
	assert.False(t, ProcessingUpdate(10).IsEmpty())
}

func TestJob_JSONShape(t *testing.T) {
	job := Job{
		ID:           "report_1_abc",
		ReportParams: ReportParams{BrandID: "b", Level: LevelLocation},
		Status:       JobStatusDownload,
		Progress:     100,
		DownloadURL:  "https://cdn.example.com/r.pdf",
	}
	data, err := json.Marshal(job)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "report_1_abc", raw["id"])
	assert.Equal(t, "b", raw["brandId"])
	assert.Equal(t, "Location Level", raw["level"])
	assert.Equal(t, "Download", raw["status"])
	assert.Equal(t, "https://cdn.example.com/r.pdf", raw["downloadUrl"])
	assert.NotContains(t, raw, "error")
}
