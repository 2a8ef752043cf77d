package report

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Request describes one report against a single property.
type Request struct {
	PropertyID string   `json:"property_id" validate:"required"`
	StartDate  string   `json:"start_date" validate:"required,reportdate"`
	EndDate    string   `json:"end_date" validate:"required,reportdate"`
	Metrics    []string `json:"metrics" validate:"required,min=1,dive,required"`
	Dimensions []string `json:"dimensions,omitempty" validate:"dive,required"`
	// JoinKey names the dimension shared by every sub-request when the
	// dimension list has to be split. Empty means EffectiveJoinKey decides.
	JoinKey string `json:"join_key,omitempty"`
	// Limit caps the number of rows returned. Zero fetches every page.
	Limit int `json:"limit,omitempty" validate:"gte=0"`
}

var (
	relativeDate = regexp.MustCompile(`^(today|yesterday|[0-9]+daysAgo)$`)
	validate     = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("reportdate", func(fl validator.FieldLevel) bool {
		return isReportDate(fl.Field().String())
	})
	return v
}

func isReportDate(s string) bool {
	if relativeDate.MatchString(s) {
		return true
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

// Validate checks field shapes, duplicate names and date ordering.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid report request: %w", err)
	}
	if dup := firstDuplicate(r.Dimensions); dup != "" {
		return fmt.Errorf("invalid report request: dimension %q listed twice", dup)
	}
	if dup := firstDuplicate(r.Metrics); dup != "" {
		return fmt.Errorf("invalid report request: metric %q listed twice", dup)
	}
	start, err1 := time.Parse(time.DateOnly, r.StartDate)
	end, err2 := time.Parse(time.DateOnly, r.EndDate)
	if err1 == nil && err2 == nil && end.Before(start) {
		return errors.New("invalid report request: end date before start date")
	}
	return nil
}

var dateDimensions = []string{
	"date", "dateHour", "dateHourMinute", "yearMonth", "yearWeek",
	"isoYearIsoWeek", "year", "month", "week", "day", "nthDay",
}

// EffectiveJoinKey returns the explicit join key, else the first date-like
// dimension of the request, else an empty string.
func (r Request) EffectiveJoinKey() string {
	if r.JoinKey != "" {
		return r.JoinKey
	}
	for _, d := range r.Dimensions {
		if slices.Contains(dateDimensions, d) {
			return d
		}
	}
	return ""
}

// withDimensions returns an unlimited copy of r carrying dims and the given join key.
func (r Request) withDimensions(dims []string, joinKey string) Request {
	out := r
	out.Metrics = slices.Clone(r.Metrics)
	out.Dimensions = dims
	out.JoinKey = joinKey
	out.Limit = 0
	return out
}

// String is used in log lines and error messages.
func (r Request) String() string {
	return fmt.Sprintf("%s %s..%s metrics=[%s] dimensions=[%s]",
		r.PropertyID, r.StartDate, r.EndDate,
		strings.Join(r.Metrics, ","), strings.Join(r.Dimensions, ","))
}

func firstDuplicate(names []string) string {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			return n
		}
		seen[n] = struct{}{}
	}
	return ""
}
