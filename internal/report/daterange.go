package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDateRange turns a named range ("today", "yesterday", "last-7-days",
// "last_30_days", ...) or a custom "YYYY-MM-DD,YYYY-MM-DD" pair into start and
// end dates relative to now. Custom pairs given in reverse order are swapped.
func ParseDateRange(spec string, now time.Time) (start, end string, err error) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch spec {
	case "today":
		d := today.Format(time.DateOnly)
		return d, d, nil
	case "yesterday":
		d := today.AddDate(0, 0, -1).Format(time.DateOnly)
		return d, d, nil
	}

	if a, b, ok := strings.Cut(spec, ","); ok {
		s, err := time.Parse(time.DateOnly, strings.TrimSpace(a))
		if err != nil {
			return "", "", fmt.Errorf("parse start date: %w", err)
		}
		e, err := time.Parse(time.DateOnly, strings.TrimSpace(b))
		if err != nil {
			return "", "", fmt.Errorf("parse end date: %w", err)
		}
		if e.Before(s) {
			s, e = e, s
		}
		return s.Format(time.DateOnly), e.Format(time.DateOnly), nil
	}

	normalized := strings.ReplaceAll(spec, "_", "-")
	if rest, ok := strings.CutPrefix(normalized, "last-"); ok {
		if n, ok := strings.CutSuffix(rest, "-days"); ok {
			days, err := strconv.Atoi(n)
			if err == nil && days > 0 {
				return today.AddDate(0, 0, -(days - 1)).Format(time.DateOnly), today.Format(time.DateOnly), nil
			}
		}
	}

	return "", "", fmt.Errorf("unknown date range %q", spec)
}
