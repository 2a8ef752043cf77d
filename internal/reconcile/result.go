package reconcile

import "time"

// Counts tallies what a reconciliation run did per entity.
type Counts struct {
	PropertiesFetched int `json:"properties_fetched"`
	PropertiesCreated int `json:"properties_created"`
	PropertiesUpdated int `json:"properties_updated"`
	PropertiesSkipped int `json:"properties_skipped"`
	WebsitesFetched   int `json:"websites_fetched"`
	WebsitesCreated   int `json:"websites_created"`
	WebsitesUpdated   int `json:"websites_updated"`
	WebsitesSkipped   int `json:"websites_skipped"`
}

func (c *Counts) add(o Counts) {
	c.PropertiesFetched += o.PropertiesFetched
	c.PropertiesCreated += o.PropertiesCreated
	c.PropertiesUpdated += o.PropertiesUpdated
	c.PropertiesSkipped += o.PropertiesSkipped
	c.WebsitesFetched += o.WebsitesFetched
	c.WebsitesCreated += o.WebsitesCreated
	c.WebsitesUpdated += o.WebsitesUpdated
	c.WebsitesSkipped += o.WebsitesSkipped
}

// SyncResult is the outcome of one reconciliation run. Per-item failures are
// listed in Errors in the order the items were attempted.
type SyncResult struct {
	RunID string `json:"run_id"`
	Counts
	Errors      []string  `json:"errors"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// HasErrors reports whether any item failed.
func (r SyncResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Duration is the wall time of the run.
func (r SyncResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

func (r *SyncResult) merge(o SyncResult) {
	r.Counts.add(o.Counts)
	r.Errors = append(r.Errors, o.Errors...)
}

func (r *SyncResult) addError(msg string) {
	r.Errors = append(r.Errors, msg)
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

func (o outcome) String() string {
	switch o {
	case outcomeCreated:
		return "created"
	case outcomeUpdated:
		return "updated"
	default:
		return "skipped"
	}
}

func (c *Counts) countProperty(o outcome) {
	switch o {
	case outcomeCreated:
		c.PropertiesCreated++
	case outcomeUpdated:
		c.PropertiesUpdated++
	default:
		c.PropertiesSkipped++
	}
}

func (c *Counts) countWebsite(o outcome) {
	switch o {
	case outcomeCreated:
		c.WebsitesCreated++
	case outcomeUpdated:
		c.WebsitesUpdated++
	default:
		c.WebsitesSkipped++
	}
}
