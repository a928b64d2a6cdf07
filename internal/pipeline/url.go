package pipeline

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jonathan/report-renderer/internal/types"
)

// DefaultRenderPath is the route of the report page under the base URL.
const DefaultRenderPath = "/render-chart"

// BuildReportURL returns {baseURL}{renderPath}?jobId=...&isReport=true. With
// inline set, the report parameters are added to the query so the page does not
// need to read them back from the job record.
func BuildReportURL(baseURL, renderPath, jobID string, params types.ReportParams, inline bool) (string, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return "", fmt.Errorf("invalid base url %q: must be an absolute http(s) url", baseURL)
	}
	if renderPath == "" {
		renderPath = DefaultRenderPath
	}

	base.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(renderPath, "/")
	base.RawPath = ""
	base.Fragment = ""

	query := url.Values{}
	query.Set("jobId", jobID)
	query.Set("isReport", "true")
	if inline {
		setIfPresent(query, "brandId", params.BrandID)
		setIfPresent(query, "campaignIds", joinOptionValues(params.CampaignIDs))
		setIfPresent(query, "locationIds", joinOptionValues(params.LocationIDs))
		setIfPresent(query, "fromDate", params.FromDate)
		setIfPresent(query, "toDate", params.ToDate)
		setIfPresent(query, "currency", params.Currency)
		setIfPresent(query, "timeZone", params.TimeZone)
		setIfPresent(query, "logo", params.Logo)
		setIfPresent(query, "level", string(params.Level))
	}
	base.RawQuery = query.Encode()

	return base.String(), nil
}

func setIfPresent(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func joinOptionValues(options []types.Option) string {
	values := make([]string, 0, len(options))
	for _, o := range options {
		values = append(values, string(o.Value))
	}
	return strings.Join(values, ",")
}
