// ABOUTME: Cell coercion helpers shared by the ingestion parsers.
// ABOUTME: Unparseable numbers become absent values instead of errors.
package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/healthdash/internal/models"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// coerce parses a numeric cell. Empty, malformed, NaN, and infinite values
// return nil.
func coerce(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func parseDateCell(s string) (models.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Date{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOf(t), true
		}
	}
	return models.Date{}, false
}
