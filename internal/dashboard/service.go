// ABOUTME: Request-scoped dashboard pipeline: storage -> aggregate -> render.
// ABOUTME: Every Build reads fresh series and constructs new panels; nothing is cached.
package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/healthdash/internal/aggregate"
	"github.com/harperreed/healthdash/internal/models"
	"github.com/harperreed/healthdash/internal/render"
	"github.com/harperreed/healthdash/internal/storage"
	"github.com/harperreed/healthdash/internal/telemetry"
	log "github.com/sirupsen/logrus"
)

// DefaultTitle heads the composite figure.
const DefaultTitle = "Health Dashboard Overview"

// Options configure a Service. Zero values fall back to the defaults.
type Options struct {
	Title   string
	Columns int
	Height  int
	Charts  []render.ChartSpec
	Metrics *telemetry.Manager
}

// Service builds dashboards from a repository.
type Service struct {
	repo    storage.Repository
	title   string
	columns int
	height  int
	charts  []render.ChartSpec
	metrics *telemetry.Manager
}

// Request scopes one dashboard build. An empty subject aggregates every subject.
type Request struct {
	Subject string
	Range   models.DateRange
}

// NewService validates the chart specs and returns a Service.
func NewService(repo storage.Repository, opts Options) (*Service, error) {
	s := &Service{
		repo:    repo,
		title:   opts.Title,
		columns: opts.Columns,
		height:  opts.Height,
		charts:  opts.Charts,
		metrics: opts.Metrics,
	}
	if s.title == "" {
		s.title = DefaultTitle
	}
	if s.columns <= 0 {
		s.columns = 2
	}
	if s.height <= 0 {
		s.height = render.DefaultHeight
	}
	if len(s.charts) == 0 {
		s.charts = DefaultCharts()
	}
	for _, c := range s.charts {
		if err := c.Validate(); err != nil {
			return nil, &models.ValidationError{Field: "charts", Message: err.Error()}
		}
	}
	return s, nil
}

// Charts returns the configured chart specs.
func (s *Service) Charts() []render.ChartSpec {
	return s.charts
}

// Build assembles the composite for one request.
func (s *Service) Build(ctx context.Context, req Request) (render.Composite, error) {
	panels := make([]render.Panel, 0, len(s.charts))
	for _, spec := range s.charts {
		table, err := s.Table(ctx, spec, req)
		if err != nil {
			return render.Composite{}, fmt.Errorf("build %q: %w", spec.Title, err)
		}
		panels = append(panels, render.RenderPanel(spec, table))
	}

	c := render.Compose(s.title, s.columns, panels)
	c.Height = s.height
	s.metrics.ObserveRender()
	log.WithFields(log.Fields{"subject": req.Subject, "panels": len(panels)}).Debug("dashboard built")
	return c, nil
}

// Table loads and merges the series a chart needs. Each series is collapsed
// to one value per date with its field's reducer before the join, so several
// subjects on the same date do not multiply into each other.
func (s *Service) Table(ctx context.Context, spec render.ChartSpec, req Request) (aggregate.Table, error) {
	reducers := spec.Reducers()
	series := make([]aggregate.Series, 0, len(spec.YFields))
	for i, f := range spec.YFields {
		metric, err := models.ParseMetric(f.Metric)
		if err != nil {
			return aggregate.Table{}, err
		}
		obs, err := s.repo.List(ctx, req.Subject, metric, req.Range)
		if err != nil {
			return aggregate.Table{}, err
		}
		series = append(series, aggregate.Collapse(aggregate.FromObservations(f.Label, obs), reducers[i]))
	}
	return aggregate.GroupBy(aggregate.Merge(series...), reducers)
}

// Summary renders plain-text context lines ("subject - date: N unit") for
// every stored observation of the requested subject.
func (s *Service) Summary(ctx context.Context, req Request) (string, error) {
	metrics, err := s.repo.Metrics(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, m := range metrics {
		obs, err := s.repo.List(ctx, req.Subject, m, req.Range)
		if err != nil {
			return "", err
		}
		for _, o := range obs {
			if o.Value == nil {
				continue
			}
			unit := m.Unit()
			if unit == "" {
				unit = m.Name
			}
			sb.WriteString(fmt.Sprintf("%s - %s: %s %s\n", o.SubjectID, o.Date, formatValue(*o.Value), unit))
		}
	}
	return sb.String(), nil
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
