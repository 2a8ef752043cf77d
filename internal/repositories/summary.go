package repositories

import (
	"context"
	"time"

	"github.com/mkoziy/ga4mirror/internal/models"
)

// SyncSummary is a snapshot of what the mirror currently holds.
type SyncSummary struct {
	TotalProperties int               `json:"total_properties"`
	TotalWebsites   int               `json:"total_websites"`
	Properties      []PropertySummary `json:"properties"`
}

// PropertySummary describes one stored property and its websites.
type PropertySummary struct {
	RemoteID    string           `json:"remote_id"`
	DisplayName string           `json:"display_name"`
	AccountID   string           `json:"account_id"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Websites    []WebsiteSummary `json:"websites"`
}

type WebsiteSummary struct {
	RemoteID      string            `json:"remote_id"`
	DisplayName   string            `json:"display_name"`
	StreamType    models.StreamType `json:"stream_type"`
	URL           string            `json:"url,omitempty"`
	MeasurementID string            `json:"measurement_id,omitempty"`
}

// Summary builds a SyncSummary from the stored rows.
func (s *Store) Summary(ctx context.Context) (SyncSummary, error) {
	props, err := s.ListProperties(ctx)
	if err != nil {
		return SyncSummary{}, err
	}

	summary := SyncSummary{
		TotalProperties: len(props),
		Properties:      make([]PropertySummary, 0, len(props)),
	}
	for _, p := range props {
		ps := PropertySummary{
			RemoteID:    p.RemoteID,
			DisplayName: p.DisplayName,
			AccountID:   p.AccountID,
			UpdatedAt:   p.UpdatedAt,
			Websites:    make([]WebsiteSummary, 0, len(p.Websites)),
		}
		for _, w := range p.Websites {
			ws := WebsiteSummary{
				RemoteID:    w.RemoteID,
				DisplayName: w.DisplayName,
				StreamType:  w.StreamType,
				URL:         w.URL(),
			}
			if w.MeasurementID != nil {
				ws.MeasurementID = *w.MeasurementID
			}
			ps.Websites = append(ps.Websites, ws)
		}
		summary.TotalWebsites += len(p.Websites)
		summary.Properties = append(summary.Properties, ps)
	}
	return summary, nil
}
