package ga4

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mkoziy/ga4mirror/internal/models"
	"github.com/mkoziy/ga4mirror/internal/report"
)

// RunReport runs one report call, following offset pagination until every
// row (or req.Limit rows) is fetched. Requests with more than
// MaxDimensionsPerReport dimensions are rejected without calling the API.
func (c *Client) RunReport(ctx context.Context, req report.Request) (*report.Table, error) {
	if len(req.Dimensions) > MaxDimensionsPerReport {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyDimensions, len(req.Dimensions), MaxDimensionsPerReport)
	}

	body := runReportRequest{
		DateRanges: []dateRange{{StartDate: req.StartDate, EndDate: req.EndDate}},
		Dimensions: make([]named, 0, len(req.Dimensions)),
		Metrics:    make([]named, 0, len(req.Metrics)),
	}
	for _, d := range req.Dimensions {
		body.Dimensions = append(body.Dimensions, named{Name: d})
	}
	for _, m := range req.Metrics {
		body.Metrics = append(body.Metrics, named{Name: m})
	}

	endpoint := fmt.Sprintf("%s/%s:runReport", c.dataBaseURL, models.PropertyResource(req.PropertyID))

	var (
		first runReportResponse
		rows  [][]string
	)
	for page := 0; ; page++ {
		body.Offset = int64(len(rows))
		body.Limit = int64(c.reportPage)
		if req.Limit > 0 && req.Limit-len(rows) < c.reportPage {
			body.Limit = int64(req.Limit - len(rows))
		}

		var resp runReportResponse
		err := c.do(ctx, call{
			api:      apiData,
			endpoint: "run_report",
			method:   http.MethodPost,
			url:      endpoint,
			body:     body,
		}, &resp)
		if err != nil {
			return nil, err
		}
		if page == 0 {
			first = resp
		}

		rows = append(rows, mapRows(resp.Rows)...)
		if len(resp.Rows) == 0 || len(rows) >= resp.RowCount || (req.Limit > 0 && len(rows) >= req.Limit) {
			break
		}
	}

	table := mapReport(req, first, rows)
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("run_report: %w", err)
	}
	return table, nil
}
