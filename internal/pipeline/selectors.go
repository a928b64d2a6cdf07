package pipeline

import (
	"strings"

	"github.com/jonathan/report-renderer/internal/types"
)

// DefaultChartNames are the chart element ids every report renders.
var DefaultChartNames = []string{
	"Age & Gender Split Bar Chart",
	"Age & Gender Split Pie Chart",
	"Best Time Chart",
	"Device Split Chart",
}

// ReadySelectors signal that the report shell has rendered, most specific first.
var ReadySelectors = []string{
	"#report-home-page",
	".report-container",
	`[data-testid="report"]`,
	".main-content",
	"body",
}

// ChartSelectors returns the chart element ids to await. Scoped levels produce
// one id per chart per campaign or location: "<chart> <value>".
func ChartSelectors(level types.Level, chartNames []string, campaigns, locations []types.Option) []string {
	if len(chartNames) == 0 {
		chartNames = DefaultChartNames
	}

	var scope []types.Option
	switch level.Normalize() {
	case types.LevelLocation:
		scope = locations
	case types.LevelCampaign:
		scope = campaigns
	default:
		return append([]string(nil), chartNames...)
	}

	ids := make([]string, 0, len(scope)*len(chartNames))
	for _, option := range scope {
		for _, chart := range chartNames {
			ids = append(ids, chart+" "+string(option.Value))
		}
	}
	return ids
}

var cssAttrEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// CSSForID turns an element id, which may contain spaces and punctuation, into
// an attribute selector.
func CSSForID(id string) string {
	return `[id="` + cssAttrEscaper.Replace(id) + `"]`
}
