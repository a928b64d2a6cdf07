// Package types provides type definitions for the report jobs handled by the renderer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a report job. It is persisted as text.
type JobStatus string

// Job status values. The casing matches what report consumers already poll for.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "Processing"
	JobStatusDownload   JobStatus = "Download"
	JobStatusFailed     JobStatus = "Failed"
)

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusDownload, JobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDownload || s == JobStatusFailed
}

// CanTransitionTo reports whether moving from s to next respects
// pending -> Processing -> {Download | Failed}.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusPending || next == JobStatusProcessing || next == JobStatusFailed
	case JobStatusProcessing:
		return next == JobStatusProcessing || next == JobStatusDownload || next == JobStatusFailed
	default:
		return false
	}
}

// Level scopes a report and decides which chart elements must be awaited.
type Level string

// Known report levels. Anything else is treated as unscoped.
const (
	LevelUnscoped Level = ""
	LevelCampaign Level = "Campaign Level"
	LevelLocation Level = "Location Level"
)

// Normalize maps unknown or differently-cased values onto the known levels.
func (l Level) Normalize() Level {
	switch strings.ToLower(strings.TrimSpace(string(l))) {
	case "campaign level", "campaign":
		return LevelCampaign
	case "location level", "location":
		return LevelLocation
	default:
		return LevelUnscoped
	}
}

// OptionValue is an identifier that clients send either as a JSON string or a JSON number.
type OptionValue string

// UnmarshalJSON accepts strings and numbers.
func (v *OptionValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = OptionValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("option value must be a string or number: %w", err)
	}
	*v = OptionValue(n.String())
	return nil
}

// Option is a campaign or location picked in the report UI.
type Option struct {
	Value OptionValue `json:"value"`
	Label string      `json:"label,omitempty"`
}

// ReportParams are the write-once parameters of a report job.
type ReportParams struct {
	BrandID         string          `json:"brandId"`
	CampaignIDs     []Option        `json:"campaignIds,omitempty"`
	LocationIDs     []Option        `json:"locationIds,omitempty"`
	FromDate        string          `json:"fromDate,omitempty"`
	ToDate          string          `json:"toDate,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	TimeZone        string          `json:"timeZone,omitempty"`
	HomePageDetails json.RawMessage `json:"homePageDetails,omitempty"`
	Logo            string          `json:"logo,omitempty"`
	Level           Level           `json:"level,omitempty"`
}

// FillMissing copies any field that is empty in p from stored.
func (p *ReportParams) FillMissing(stored ReportParams) {
	if p.BrandID == "" {
		p.BrandID = stored.BrandID
	}
	if len(p.CampaignIDs) == 0 {
		p.CampaignIDs = stored.CampaignIDs
	}
	if len(p.LocationIDs) == 0 {
		p.LocationIDs = stored.LocationIDs
	}
	if p.FromDate == "" {
		p.FromDate = stored.FromDate
	}
	if p.ToDate == "" {
		p.ToDate = stored.ToDate
	}
	if p.Currency == "" {
		p.Currency = stored.Currency
	}
	if p.TimeZone == "" {
		p.TimeZone = stored.TimeZone
	}
	if len(p.HomePageDetails) == 0 {
		p.HomePageDetails = stored.HomePageDetails
	}
	if p.Logo == "" {
		p.Logo = stored.Logo
	}
	if p.Level == LevelUnscoped {
		p.Level = stored.Level
	}
}

// Job is a report-generation request and its externally visible state.
type Job struct {
	ID string `json:"id"`
	ReportParams
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CheckInvariants returns an error describing the first broken job invariant, if any.
func (j *Job) CheckInvariants() error {
	if !j.Status.Valid() {
		return fmt.Errorf("unknown status %q", j.Status)
	}
	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("progress %d out of range", j.Progress)
	}
	if (j.Progress == 100) != (j.Status == JobStatusDownload) {
		return fmt.Errorf("progress %d with status %s", j.Progress, j.Status)
	}
	if (j.DownloadURL != "") != (j.Status == JobStatusDownload) {
		return fmt.Errorf("download url %q with status %s", j.DownloadURL, j.Status)
	}
	if (j.Error != "") != (j.Status == JobStatusFailed) {
		return fmt.Errorf("error %q with status %s", j.Error, j.Status)
	}
	return nil
}

// JobUpdate is a sparse patch: nil fields are left untouched.
type JobUpdate struct {
	BrandID         *string
	CampaignIDs     *[]Option
	LocationIDs     *[]Option
	FromDate        *string
	ToDate          *string
	Currency        *string
	TimeZone        *string
	HomePageDetails *json.RawMessage
	Logo            *string
	Level           *Level
	Status          *JobStatus
	Progress        *int
	DownloadURL     *string
	Error           *string
}

// IsEmpty reports whether the update carries no fields.
func (u JobUpdate) IsEmpty() bool {
	return u.BrandID == nil && u.CampaignIDs == nil && u.LocationIDs == nil &&
		u.FromDate == nil && u.ToDate == nil && u.Currency == nil && u.TimeZone == nil &&
		u.HomePageDetails == nil && u.Logo == nil && u.Level == nil &&
		u.Status == nil && u.Progress == nil && u.DownloadURL == nil && u.Error == nil
}

// Apply writes the set fields of u onto j.
func (u JobUpdate) Apply(j *Job) {
	if u.BrandID != nil {
		j.BrandID = *u.BrandID
	}
	if u.CampaignIDs != nil {
		j.CampaignIDs = *u.CampaignIDs
	}
	if u.LocationIDs != nil {
		j.LocationIDs = *u.LocationIDs
	}
	if u.FromDate != nil {
		j.FromDate = *u.FromDate
	}
	if u.ToDate != nil {
		j.ToDate = *u.ToDate
	}
	if u.Currency != nil {
		j.Currency = *u.Currency
	}
	if u.TimeZone != nil {
		j.TimeZone = *u.TimeZone
	}
	if u.HomePageDetails != nil {
		j.HomePageDetails = *u.HomePageDetails
	}
	if u.Logo != nil {
		j.Logo = *u.Logo
	}
	if u.Level != nil {
		j.Level = *u.Level
	}
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.DownloadURL != nil {
		j.DownloadURL = *u.DownloadURL
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
}

// ProcessingUpdate moves a job to Processing at the given progress.
func ProcessingUpdate(progress int) JobUpdate {
	status := JobStatusProcessing
	return JobUpdate{Status: &status, Progress: &progress}
}

// DownloadUpdate marks a job complete with its artifact URL.
func DownloadUpdate(url string) JobUpdate {
	status := JobStatusDownload
	progress := 100
	empty := ""
	return JobUpdate{Status: &status, Progress: &progress, DownloadURL: &url, Error: &empty}
}

// FailedUpdate marks a job failed with a message and resets progress.
func FailedUpdate(message string) JobUpdate {
	status := JobStatusFailed
	progress := 0
	empty := ""
	if message == "" {
		message = "report generation failed"
	}
	return JobUpdate{Status: &status, Progress: &progress, Error: &message, DownloadURL: &empty}
}

// DiagnoseResult is the outcome of a standalone navigation probe.
type DiagnoseResult struct {
	Success   bool      `json:"success"`
	URL       string    `json:"-"`
	LoadTime  int64     `json:"loadTime"`
	Title     string    `json:"title,omitempty"`
	FinalURL  string    `json:"finalUrl,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
