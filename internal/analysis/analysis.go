// Package analysis wires the baseline, anomaly, timeline and incident
// engines into one batch run over a tenant's dataset.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/1sec-project/breachline/internal/anomaly"
	"github.com/1sec-project/breachline/internal/baseline"
	"github.com/1sec-project/breachline/internal/core"
	"github.com/1sec-project/breachline/internal/geo"
	"github.com/1sec-project/breachline/internal/incident"
	"github.com/1sec-project/breachline/internal/timeline"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Publisher receives findings as they are produced. core.ReportBus
// implements it.
type Publisher interface {
	Publish(tenant, kind string, v any) error
}

// Counts records the input size of a run.
type Counts struct {
	SignIns int `json:"sign_ins"`
	Legacy  int `json:"legacy"`
	Audits  int `json:"audits"`
	Mailbox int `json:"mailbox"`
}

// Report is the full output of one run.
type Report struct {
	RunID           string                           `json:"run_id"`
	Tenant          string                           `json:"tenant"`
	GeneratedAt     time.Time                        `json:"generated_at"`
	Duration        time.Duration                    `json:"duration"`
	Settings        core.AnalysisConfig              `json:"settings"`
	Counts          Counts                           `json:"counts"`
	Baselines       map[string]baseline.UserBaseline `json:"baselines"`
	BaselineSummary baseline.Summary                 `json:"baseline_summary"`
	Anomalies       []anomaly.Anomaly                `json:"anomalies"`
	AnomalySummary  anomaly.Summary                  `json:"anomaly_summary"`
	Timeline        []timeline.Event                 `json:"timeline"`
	TimelineSummary timeline.Summary                 `json:"timeline_summary"`
	Incident        incident.IncidentTimeline        `json:"incident"`
}

// Analyzer runs the engines with one fixed configuration. It holds no
// per-run state and may be shared across goroutines.
type Analyzer struct {
	cfg       core.AnalysisConfig
	resolver  *geo.Resolver
	detector  *anomaly.Detector
	metrics   *Metrics
	publisher Publisher
	base      zerolog.Logger
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithResolver sets the geo resolver used for impossible travel.
func WithResolver(r *geo.Resolver) Option {
	return func(a *Analyzer) { a.resolver = r }
}

// WithMetrics records every run in m.
func WithMetrics(m *Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithPublisher publishes anomalies and the incident after each run.
func WithPublisher(p Publisher) Option {
	return func(a *Analyzer) { a.publisher = p }
}

// New creates an Analyzer.
func New(cfg core.AnalysisConfig, logger zerolog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:    cfg,
		base:   logger,
		logger: logger.With().Str("component", "analyzer").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.resolver == nil {
		a.resolver = geo.NewResolver()
	}
	a.detector = anomaly.NewDetector(cfg, a.resolver, logger)
	return a
}

// Config returns the analysis settings.
func (a *Analyzer) Config() core.AnalysisConfig { return a.cfg }

// Baselines computes every user's baseline.
func (a *Analyzer) Baselines(ds *core.Dataset) map[string]baseline.UserBaseline {
	return baseline.CalculateAll(ds.SignIns, baseline.OptionsFromConfig(a.cfg))
}

// HomeCountry returns the configured home country or, when none is set, the
// one inferred from baselines. Every engine in a run uses this value.
func (a *Analyzer) HomeCountry(baselines map[string]baseline.UserBaseline) string {
	if home := a.configuredHome(); home != "" {
		return home
	}
	return baseline.HomeCountry(baselines)
}

func (a *Analyzer) configuredHome() string {
	return strings.ToUpper(strings.TrimSpace(a.cfg.HomeCountry))
}

// homeFor avoids computing baselines when the home country is configured.
func (a *Analyzer) homeFor(ds *core.Dataset) string {
	if home := a.configuredHome(); home != "" {
		return home
	}
	return a.HomeCountry(a.Baselines(ds))
}

// detectorFor returns the rule set bound to home. The shared detector
// already carries the configured value.
func (a *Analyzer) detectorFor(home string) *anomaly.Detector {
	if home == a.configuredHome() {
		return a.detector
	}
	cfg := a.cfg
	cfg.HomeCountry = home
	return anomaly.NewDetector(cfg, a.resolver, a.base)
}

// Anomalies runs every anomaly rule with freshly computed baselines.
func (a *Analyzer) Anomalies(ds *core.Dataset) []anomaly.Anomaly {
	baselines := a.Baselines(ds)
	return a.detectorFor(a.HomeCountry(baselines)).DetectAll(ds.SignIns, ds.Legacy, baselines)
}

// Timeline builds, correlates and classifies the merged timeline.
func (a *Analyzer) Timeline(ds *core.Dataset) []timeline.Event {
	return a.timeline(ds, a.homeFor(ds))
}

func (a *Analyzer) timeline(ds *core.Dataset, home string) []timeline.Event {
	tl := timeline.Build(ds.SignIns, ds.Audits, ds.Mailbox)
	tl = timeline.Correlate(tl, a.cfg.CorrelationSpan())
	return timeline.DetectAttackPhases(tl, home)
}

// Incident reconstructs the incident timeline.
func (a *Analyzer) Incident(ds *core.Dataset, baselines map[string]baseline.UserBaseline) incident.IncidentTimeline {
	return a.incident(ds, baselines, a.HomeCountry(baselines))
}

func (a *Analyzer) incident(ds *core.Dataset, baselines map[string]baseline.UserBaseline, home string) incident.IncidentTimeline {
	opts := incident.OptionsFromConfig(a.cfg)
	opts.HomeCountry = home
	return incident.Build(incident.Input{
		SignIns:   ds.SignIns,
		Audits:    ds.Audits,
		Baselines: baselines,
	}, opts)
}

// Run performs the full analysis of one tenant. The dataset is not modified.
func (a *Analyzer) Run(ctx context.Context, tenant string, ds *core.Dataset) (*Report, error) {
	report, err := a.run(ctx, tenant, ds)
	a.metrics.observe(report, err)
	if err != nil {
		return nil, err
	}
	a.publish(report)
	return report, nil
}

func (a *Analyzer) run(ctx context.Context, tenant string, ds *core.Dataset) (*Report, error) {
	if ds == nil {
		ds = &core.Dataset{}
	}
	start := a.now()
	log := a.logger.With().Str("tenant", tenant).Logger()

	r := &Report{
		RunID:       uuid.NewString(),
		Tenant:      tenant,
		GeneratedAt: start.UTC(),
		Settings:    a.cfg,
		Counts: Counts{
			SignIns: len(ds.SignIns),
			Legacy:  len(ds.Legacy),
			Audits:  len(ds.Audits),
			Mailbox: len(ds.Mailbox),
		},
	}

	r.Baselines = a.Baselines(ds)
	r.BaselineSummary = baseline.Summarize(r.Baselines)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis of %s cancelled: %w", tenant, err)
	}

	home := a.HomeCountry(r.Baselines)
	r.Anomalies = a.detectorFor(home).DetectAll(ds.SignIns, ds.Legacy, r.Baselines)
	r.AnomalySummary = anomaly.Summarize(r.Anomalies)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis of %s cancelled: %w", tenant, err)
	}

	r.Timeline = a.timeline(ds, home)
	r.TimelineSummary = timeline.Summarize(r.Timeline)
	r.Incident = a.incident(ds, r.Baselines, home)

	r.Duration = a.now().Sub(start)
	log.Info().
		Int("users", r.BaselineSummary.TotalUsers).
		Int("anomalies", len(r.Anomalies)).
		Int("timeline_events", len(r.Timeline)).
		Str("attack_start_confidence", string(r.Incident.AttackStartConfidence)).
		Dur("duration", r.Duration).
		Msg("analysis complete")
	return r, nil
}

func (a *Analyzer) publish(r *Report) {
	if a.publisher == nil {
		return
	}
	failed := 0
	for _, an := range r.Anomalies {
		if err := a.publisher.Publish(r.Tenant, "anomaly", an); err != nil {
			failed++
		}
	}
	if err := a.publisher.Publish(r.Tenant, "incident", r.Incident); err != nil {
		failed++
	}
	if failed > 0 {
		a.logger.Warn().Str("tenant", r.Tenant).Int("failed", failed).Msg("some findings were not published")
	}
}

// RunTenants analyses every tenant concurrently, at most limit at a time
// (limit <= 0 means unbounded). Tenants share nothing but the analyzer's
// immutable settings and its distance cache. The first error cancels the
// remaining runs.
func (a *Analyzer) RunTenants(ctx context.Context, tenants map[string]*core.Dataset, limit int) (map[string]*Report, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	names := make([]string, 0, len(tenants))
	for name := range tenants {
		names = append(names, name)
	}
	sort.Strings(names)

	var mu sync.Mutex
	reports := make(map[string]*Report, len(tenants))
	for _, name := range names {
		ds := tenants[name]
		g.Go(func() error {
			r, err := a.Run(ctx, name, ds)
			if err != nil {
				return err
			}
			mu.Lock()
			reports[name] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
