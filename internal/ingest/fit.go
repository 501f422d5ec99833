// ABOUTME: Fitness API aggregate-response ingestion.
// ABOUTME: Reduces each daily bucket's points to one observation per UTC day.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/healthdash/internal/models"
	log "github.com/sirupsen/logrus"
)

// FitResponse is the body of a dataset:aggregate call.
type FitResponse struct {
	Bucket []FitBucket `json:"bucket"`
}

// FitBucket is one time bucket, normally one day.
type FitBucket struct {
	StartTimeMillis flexInt64    `json:"startTimeMillis"`
	EndTimeMillis   flexInt64    `json:"endTimeMillis"`
	Dataset         []FitDataset `json:"dataset"`
}

type FitDataset struct {
	DataSourceID string     `json:"dataSourceId"`
	Point        []FitPoint `json:"point"`
}

type FitPoint struct {
	StartTimeNanos flexInt64  `json:"startTimeNanos"`
	EndTimeNanos   flexInt64  `json:"endTimeNanos"`
	DataTypeName   string     `json:"dataTypeName"`
	Value          []FitValue `json:"value"`
}

type FitValue struct {
	IntVal *int64   `json:"intVal,omitempty"`
	FpVal  *float64 `json:"fpVal,omitempty"`
}

// number returns whichever of intVal or fpVal is set.
func (v FitValue) number() (float64, bool) {
	switch {
	case v.FpVal != nil:
		return *v.FpVal, true
	case v.IntVal != nil:
		return float64(*v.IntVal), true
	default:
		return 0, false
	}
}

// flexInt64 accepts both JSON numbers and numeric strings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	*f = flexInt64(n)
	return nil
}

// ParseFitResponse decodes an aggregate response and returns one observation
// per bucket for the given subject and metric. Buckets without points are
// left out.
func ParseFitResponse(r io.Reader, subject string, metric models.Metric) ([]models.Observation, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, &models.ValidationError{Field: "subject", Message: "subject is required"}
	}
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	if metric.Kind == models.KindCustom {
		return nil, &models.ValidationError{Field: "metric", Message: "fitness responses carry built-in metrics only"}
	}

	var resp FitResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, &models.ValidationError{Field: "body", Message: fmt.Sprintf("decode aggregate response: %v", err)}
	}
	return resp.Observations(subject, metric), nil
}

// Observations reduces each bucket with the metric's rule. A bucket with no
// points is dropped rather than stored as absent, since upserts never
// overwrite and a later pull must still be able to fill that day.
func (resp FitResponse) Observations(subject string, metric models.Metric) []models.Observation {
	out := make([]models.Observation, 0, len(resp.Bucket))
	empty := 0
	for _, b := range resp.Bucket {
		v := reduceBucket(b, metric.Kind)
		if v == nil {
			empty++
			continue
		}
		out = append(out, models.Observation{
			SubjectID: subject,
			Date:      models.DateOf(time.UnixMilli(int64(b.StartTimeMillis)).UTC()),
			Metric:    metric,
			Value:     v,
		})
	}
	if empty > 0 {
		log.WithFields(log.Fields{"metric": metric.String(), "empty": empty}).Debug("dropped empty buckets")
	}
	return out
}

func reduceBucket(b FitBucket, kind models.MetricKind) *float64 {
	var sum float64
	var n int
	for _, ds := range b.Dataset {
		for _, p := range ds.Point {
			switch kind {
			case models.KindSleepMinutes:
				if p.EndTimeNanos > p.StartTimeNanos {
					sum += float64(p.EndTimeNanos-p.StartTimeNanos) / float64(time.Minute)
					n++
				}
			case models.KindHeartRate:
				// The first value of an aggregated heart rate point is its average.
				if len(p.Value) > 0 {
					if v, ok := p.Value[0].number(); ok {
						sum += v
						n++
					}
				}
			default:
				for _, v := range p.Value {
					if x, ok := v.number(); ok {
						sum += x
						n++
					}
				}
			}
		}
	}
	if n == 0 {
		return nil
	}
	if kind == models.KindHeartRate {
		mean := sum / float64(n)
		return &mean
	}
	return &sum
}
