// ABOUTME: Per-column reducers used when collapsing rows that share a date.
// ABOUTME: Sum and Mean skip absent values; all-absent input reduces to absent.
package aggregate

import (
	"fmt"
	"strings"
)

// Reducer names a per-date reduction.
type Reducer string

const (
	Sum  Reducer = "sum"
	Mean Reducer = "mean"
)

// ParseReducer accepts "sum" or "mean" in any case. Empty means Sum.
func ParseReducer(s string) (Reducer, error) {
	r := Reducer(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return Sum, nil
	}
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

func (r Reducer) Validate() error {
	switch r {
	case Sum, Mean:
		return nil
	default:
		return fmt.Errorf("unknown reducer %q", string(r))
	}
}

// Apply reduces the present values. It returns nil when none are present.
func (r Reducer) Apply(vals []*float64) *float64 {
	var total float64
	n := 0
	for _, v := range vals {
		if v == nil {
			continue
		}
		total += *v
		n++
	}
	if n == 0 {
		return nil
	}
	if r == Mean {
		total /= float64(n)
	}
	return &total
}
