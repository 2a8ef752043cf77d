package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRequestValidate(t *testing.T) {
	ok := Request{PropertyID: "properties/1", StartDate: "30daysAgo", EndDate: "today", Metrics: []string{"sessions"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	cases := map[string]Request{
		"no metrics":     {PropertyID: "properties/1", StartDate: "2023-01-01", EndDate: "2023-01-02"},
		"bad date":       {PropertyID: "properties/1", StartDate: "01/01/2023", EndDate: "2023-01-02", Metrics: []string{"m"}},
		"reversed dates": {PropertyID: "properties/1", StartDate: "2023-02-01", EndDate: "2023-01-02", Metrics: []string{"m"}},
		"dup dimension":  {PropertyID: "properties/1", StartDate: "2023-01-01", EndDate: "2023-01-02", Metrics: []string{"m"}, Dimensions: []string{"date", "date"}},
		"no property":    {StartDate: "2023-01-01", EndDate: "2023-01-02", Metrics: []string{"m"}},
	}
	for name, req := range cases {
		if err := req.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestEffectiveJoinKey(t *testing.T) {
	if k := (Request{Dimensions: []string{"country", "date"}}).EffectiveJoinKey(); k != "date" {
		t.Fatalf("expected date, got %q", k)
	}
	if k := (Request{Dimensions: []string{"country", "yearMonth"}}).EffectiveJoinKey(); k != "yearMonth" {
		t.Fatalf("expected yearMonth, got %q", k)
	}
	if k := (Request{Dimensions: []string{"country", "date"}, JoinKey: "country"}).EffectiveJoinKey(); k != "country" {
		t.Fatalf("expected explicit key, got %q", k)
	}
	if k := (Request{Dimensions: []string{"country"}}).EffectiveJoinKey(); k != "" {
		t.Fatalf("expected no key, got %q", k)
	}
}

func TestParseDateRange(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		in, start, end string
	}{
		{"today", "2024-03-10", "2024-03-10"},
		{"yesterday", "2024-03-09", "2024-03-09"},
		{"last-7-days", "2024-03-04", "2024-03-10"},
		{"last_30_days", "2024-02-10", "2024-03-10"},
		{"2023-01-31,2023-01-01", "2023-01-01", "2023-01-31"},
	}
	for _, c := range cases {
		start, end, err := ParseDateRange(c.in, now)
		if err != nil {
			t.Fatalf("%s: %v", c.in, err)
		}
		if start != c.start || end != c.end {
			t.Fatalf("%s: expected %s..%s, got %s..%s", c.in, c.start, c.end, start, end)
		}
	}

	if _, _, err := ParseDateRange("invalid-format", now); err == nil {
		t.Fatalf("expected error for unknown range")
	}
}

func TestLoadDefinitions(t *testing.T) {
	data := []byte(`reports:
  engagement:
    description: Engagement by day
    metrics: [engagementRate, userEngagementDuration, averageSessionDuration]
    dimensions: [date]
    date_range: last-30-days
  acquisition:
    metrics: [sessions]
    dimensions: [date, sessionSource, sessionMedium]
    join_key: date
`)
	defs, err := LoadDefinitions(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := strings.Join(defs.Names(), ","); got != "acquisition,engagement" {
		t.Fatalf("unexpected names %s", got)
	}

	def, err := defs.Get("acquisition")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	req := def.Request("properties/9", "2023-01-01", "2023-01-31")
	if req.PropertyID != "properties/9" || req.JoinKey != "date" || len(req.Dimensions) != 3 {
		t.Fatalf("unexpected request %+v", req)
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("definition request should validate: %v", err)
	}

	if _, err := defs.Get("missing"); !errors.Is(err, ErrUnknownDefinition) {
		t.Fatalf("expected ErrUnknownDefinition, got %v", err)
	}

	if _, err := LoadDefinitions([]byte("reports:\n  empty:\n    dimensions: [date]\n")); err == nil {
		t.Fatalf("expected error for definition without metrics")
	}
}

func TestTableWriteCSV(t *testing.T) {
	table := NewTable([]string{"date", "pagePath"}, []string{"screenPageViews"}, [][]string{
		{"2023-01-01", "/a,b", "3"},
	})
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	want := "date,pagePath,screenPageViews\n2023-01-01,\"/a,b\",3\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv %q", buf.String())
	}
}
