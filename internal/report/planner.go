package report

import (
	"errors"
	"fmt"
	"slices"
)

// DefaultMaxDimensionsPerCall is the provider's dimension cap for one report call.
const DefaultMaxDimensionsPerCall = 9

var (
	ErrJoinKeyRequired = errors.New("join key required to split dimensions")
	ErrInvalidLimit    = errors.New("invalid dimensions-per-call limit")
	ErrMetricMismatch  = errors.New("sub-requests disagree on metrics")
)

// Plan splits req into sub-requests with at most maxDims dimensions each.
// When req already fits it is returned unchanged as the only element.
// Otherwise the join key is removed from the dimension list, the rest is cut
// into consecutive groups of maxDims-1, and the join key is prepended to each
// group. Metrics and dates are copied to every sub-request. A row limit is
// not: each group would return its own top rows keyed on different join
// values, so split sub-requests fetch every row and the caller applies the
// limit to the joined table.
func Plan(req Request, maxDims int) ([]Request, error) {
	if maxDims < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, maxDims)
	}
	if len(req.Dimensions) <= maxDims {
		return []Request{req}, nil
	}
	if maxDims < 2 {
		return nil, fmt.Errorf("%w: %d leaves no room beside the join key", ErrInvalidLimit, maxDims)
	}

	key := req.EffectiveJoinKey()
	if key == "" {
		return nil, fmt.Errorf("%w: %d dimensions exceed %d", ErrJoinKeyRequired, len(req.Dimensions), maxDims)
	}

	rest := make([]string, 0, len(req.Dimensions))
	for _, d := range req.Dimensions {
		if d != key {
			rest = append(rest, d)
		}
	}

	size := maxDims - 1
	subs := make([]Request, 0, (len(rest)+size-1)/size)
	for chunk := range slices.Chunk(rest, size) {
		dims := make([]string, 0, len(chunk)+1)
		dims = append(dims, key)
		dims = append(dims, chunk...)
		subs = append(subs, req.withDimensions(dims, key))
	}
	return subs, nil
}

// ValidatePlan rejects sub-request sets that cannot be joined: every
// sub-request must target the same property and date range, carry the same
// metric list and, when there is more than one, include the shared join key.
func ValidatePlan(subs []Request) error {
	if len(subs) < 2 {
		return nil
	}
	first := subs[0]
	for i, s := range subs[1:] {
		if !slices.Equal(s.Metrics, first.Metrics) {
			return fmt.Errorf("sub-request %d: %w", i+1, ErrMetricMismatch)
		}
		if s.PropertyID != first.PropertyID || s.StartDate != first.StartDate || s.EndDate != first.EndDate {
			return fmt.Errorf("sub-request %d targets a different property or date range", i+1)
		}
	}
	for i, s := range subs {
		if s.JoinKey == "" || !slices.Contains(s.Dimensions, s.JoinKey) || s.JoinKey != first.JoinKey {
			return fmt.Errorf("sub-request %d: %w", i, ErrJoinKeyRequired)
		}
	}
	return nil
}
