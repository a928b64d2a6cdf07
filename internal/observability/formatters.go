package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/report-renderer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted terminal output for the CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintJob outputs a human-readable summary of a job record.
func (p *Printer) PrintJob(job *types.Job) {
	if job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID:       %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("Brand:    %s\n", job.BrandID))
	if job.Level != types.LevelUnscoped {
		sb.WriteString(fmt.Sprintf("Level:    %s\n", job.Level))
	}
	sb.WriteString(fmt.Sprintf("Status:   %s (%d%%)\n", job.Status, job.Progress))
	if job.FromDate != "" || job.ToDate != "" {
		sb.WriteString(fmt.Sprintf("Range:    %s → %s\n", job.FromDate, job.ToDate))
	}
	writeOptions(&sb, "Campaigns", job.CampaignIDs)
	writeOptions(&sb, "Locations", job.LocationIDs)
	if job.DownloadURL != "" {
		sb.WriteString(fmt.Sprintf("Download: %s\n", job.DownloadURL))
	}
	if job.Error != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", job.Error))
	}
	sb.WriteString(fmt.Sprintf("Created:  %s\n", job.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Updated:  %s", job.UpdatedAt.Format(time.RFC3339)))

	p.printBox("REPORT JOB", sb.String())
}

func writeOptions(sb *strings.Builder, label string, options []types.Option) {
	if len(options) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("%s:\n", label))
	count := min(len(options), maxItemsToShow)
	for i := 0; i < count; i++ {
		opt := options[i]
		if opt.Label != "" {
			sb.WriteString(fmt.Sprintf("  • %s (%s)\n", opt.Value, opt.Label))
		} else {
			sb.WriteString(fmt.Sprintf("  • %s\n", opt.Value))
		}
	}
	if len(options) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(options)-maxItemsToShow))
	}
}

// PrintDiagnose outputs the result of a navigation probe.
func (p *Printer) PrintDiagnose(result *types.DiagnoseResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	if result.URL != "" {
		sb.WriteString(fmt.Sprintf("URL:       %s\n", result.URL))
	}
	if result.Success {
		sb.WriteString("Result:    reachable\n")
		sb.WriteString(fmt.Sprintf("Title:     %s\n", result.Title))
		sb.WriteString(fmt.Sprintf("Final URL: %s\n", result.FinalURL))
	} else {
		sb.WriteString("Result:    unreachable\n")
		sb.WriteString(fmt.Sprintf("Error:     %s\n", result.Error))
	}
	sb.WriteString(fmt.Sprintf("Load time: %dms", result.LoadTime))

	p.printBox("URL DIAGNOSIS", sb.String())
}

// PrintGenerateResult outputs the outcome of a one-shot report generation.
func (p *Printer) PrintGenerateResult(jobID, url string, attempts int, failedCharts []string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", jobID))
	sb.WriteString(fmt.Sprintf("Attempts: %d\n", attempts))
	if len(failedCharts) > 0 {
		sb.WriteString(fmt.Sprintf("Missing charts (%d):\n", len(failedCharts)))
		count := min(len(failedCharts), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", failedCharts[i]))
		}
		if len(failedCharts) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(failedCharts)-maxItemsToShow))
		}
	}
	sb.WriteString(fmt.Sprintf("URL:      %s", url))

	p.printBox("REPORT GENERATED", sb.String())
}
