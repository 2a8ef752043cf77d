package ga4

import (
	"time"

	"github.com/mkoziy/ga4mirror/internal/models"
	"github.com/mkoziy/ga4mirror/internal/report"
)

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func mapAccount(a account) models.Account {
	return models.Account{RemoteID: a.Name, DisplayName: a.DisplayName}
}

func mapProperty(p property) models.RemoteProperty {
	parent := p.Parent
	if parent == "" {
		parent = p.Account
	}
	return models.RemoteProperty{
		RemoteID:        p.Name,
		DisplayName:     p.DisplayName,
		ParentAccountID: parent,
		CreatedAt:       parseTime(p.CreateTime),
		UpdatedAt:       parseTime(p.UpdateTime),
	}
}

func mapDataStream(propertyID string, ds dataStream) models.RemoteDataStream {
	out := models.RemoteDataStream{
		RemoteID:               ds.Name,
		ParentPropertyRemoteID: propertyID,
		DisplayName:            ds.DisplayName,
		Type:                   models.StreamType(ds.Type),
		CreatedAt:              parseTime(ds.CreateTime),
		UpdatedAt:              parseTime(ds.UpdateTime),
	}
	if out.Type == "" {
		out.Type = models.StreamUnknown
	}
	if ds.WebStreamData != nil {
		out.DefaultURI = optional(ds.WebStreamData.DefaultURI)
		out.MeasurementID = optional(ds.WebStreamData.MeasurementID)
	}
	return out
}

func headerNames(hs []named) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Name
	}
	return out
}

func metricNames(hs []metricHdr) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Name
	}
	return out
}

// mapRows flattens dimension values then metric values, matching the
// column layout of report.NewTable.
func mapRows(rows []row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		vals := make([]string, 0, len(r.DimensionValues)+len(r.MetricValues))
		for _, v := range r.DimensionValues {
			vals = append(vals, v.Value)
		}
		for _, v := range r.MetricValues {
			vals = append(vals, v.Value)
		}
		out = append(out, vals)
	}
	return out
}

func mapReport(req report.Request, resp runReportResponse, rows [][]string) *report.Table {
	dims := headerNames(resp.DimensionHeaders)
	if len(dims) == 0 {
		dims = req.Dimensions
	}
	mets := metricNames(resp.MetricHeaders)
	if len(mets) == 0 {
		mets = req.Metrics
	}
	t := report.NewTable(dims, mets, rows)
	t.RowCount = resp.RowCount
	return t
}
