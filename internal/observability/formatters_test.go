package observability

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/report-renderer/internal/types"
)

func TestPrintJob(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	job := &types.Job{
		ID: "report_1700000000000_abcdefgh",
		ReportParams: types.ReportParams{
			BrandID:     "brand-1",
			Level:       types.LevelCampaign,
			FromDate:    "2024-01-01",
			ToDate:      "2024-01-31",
			CampaignIDs: []types.Option{{Value: "12", Label: "Spring Sale"}, {Value: "13"}},
		},
		Status:      types.JobStatusDownload,
		Progress:    100,
		DownloadURL: "https://cdn.example.com/r.pdf",
	}

	p.PrintJob(job)
	output := buf.String()

	assert.Contains(t, output, "report_1700000000000_abcdefgh")
	assert.Contains(t, output, "brand-1")
	assert.Contains(t, output, "Campaign Level")
	assert.Contains(t, output, "Download (100%)")
	assert.Contains(t, output, "Spring Sale")
	assert.Contains(t, output, "https://cdn.example.com/r.pdf")
}

func TestPrintJob_Failed(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintJob(&types.Job{ID: "j", ReportParams: types.ReportParams{BrandID: "b"}, Status: types.JobStatusFailed, Error: "navigation timed out"})
	output := buf.String()

	assert.Contains(t, output, "Failed (0%)")
	assert.Contains(t, output, "navigation timed out")
	assert.NotContains(t, output, "Level:")
}

func TestPrintJob_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintJob(nil)

	assert.Empty(t, buf.String())
}

func TestPrintDiagnose(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf).PrintDiagnose(&types.DiagnoseResult{
			Success:  true,
			URL:      "https://example.com",
			Title:    "Example Domain",
			FinalURL: "https://example.com/",
			LoadTime: 420,
		})
		output := buf.String()

		assert.Contains(t, output, "URL DIAGNOSIS")
		assert.Contains(t, output, "reachable")
		assert.Contains(t, output, "Example Domain")
		assert.Contains(t, output, "420ms")
	})

	t.Run("unreachable", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf).PrintDiagnose(&types.DiagnoseResult{Error: "net::ERR_NAME_NOT_RESOLVED"})
		output := buf.String()

		assert.Contains(t, output, "unreachable")
		assert.Contains(t, output, "ERR_NAME_NOT_RESOLVED")
	})
}

func TestPrintGenerateResult_TruncatesFailedCharts(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	var failed []string
	for i := 0; i < maxItemsToShow+2; i++ {
		failed = append(failed, fmt.Sprintf("campaign-%d", i))
	}

	p.PrintGenerateResult("report_1_abc", "https://cdn.example.com/r.pdf", 2, failed)
	output := buf.String()

	assert.Contains(t, output, "REPORT GENERATED")
	assert.Contains(t, output, "Attempts: 2")
	assert.Contains(t, output, "Missing charts (7)")
	assert.Contains(t, output, "campaign-0")
	assert.NotContains(t, output, "campaign-6")
	assert.Contains(t, output, "... and 2 more")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	long := "https://cdn.example.com/" + string(bytes.Repeat([]byte("a"), 100))
	p.PrintGenerateResult("j", long, 1, nil)

	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), long)
}
