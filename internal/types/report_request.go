package types

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

// GenerateReportRequest is the body of POST /generate-report.
type GenerateReportRequest struct {
	JobID           string          `json:"jobId" validate:"required"`
	BaseURL         string          `json:"baseURL" validate:"required,url"`
	BrandID         string          `json:"brandId" validate:"required,excludesall=/\\"`
	Level           Level           `json:"level,omitempty"`
	CampaignIDs     []Option        `json:"campaignIds,omitempty"`
	LocationIDs     []Option        `json:"locationIds,omitempty"`
	FromDate        string          `json:"fromDate,omitempty"`
	ToDate          string          `json:"toDate,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	TimeZone        string          `json:"timeZone,omitempty"`
	HomePageDetails json.RawMessage `json:"homePageDetails,omitempty"`
	Logo            string          `json:"logo,omitempty"`
	Selectors       []string        `json:"selectors,omitempty" validate:"omitempty,dive,required"`
}

// Validate validates the GenerateReportRequest using the validator.
func (r *GenerateReportRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Params extracts the job parameters carried by the request.
func (r *GenerateReportRequest) Params() ReportParams {
	return ReportParams{
		BrandID:         r.BrandID,
		CampaignIDs:     r.CampaignIDs,
		LocationIDs:     r.LocationIDs,
		FromDate:        r.FromDate,
		ToDate:          r.ToDate,
		Currency:        r.Currency,
		TimeZone:        r.TimeZone,
		HomePageDetails: r.HomePageDetails,
		Logo:            r.Logo,
		Level:           r.Level.Normalize(),
	}
}

// CreateJobRequest is the body of POST /jobs.
type CreateJobRequest struct {
	ReportParams
}

// Validate validates the CreateJobRequest using the validator.
func (r *CreateJobRequest) Validate() error {
	validate := validator.New()
	return validate.Var(r.BrandID, "required,excludesall=/\\")
}

// DiagnoseRequest is the body of POST /diagnose-url.
type DiagnoseRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// Validate validates the DiagnoseRequest using the validator.
func (r *DiagnoseRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
