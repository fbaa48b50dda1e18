package anomaly

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/1sec-project/breachline/internal/baseline"
	"github.com/1sec-project/breachline/internal/core"
	"github.com/1sec-project/breachline/internal/geo"
	"github.com/rs/zerolog"
)

// ErrUnsupportedAggregation is returned by Aggregate for an unknown grouping.
var ErrUnsupportedAggregation = errors.New("unsupported aggregation")

// Detector runs a fixed set of rules over one event batch.
type Detector struct {
	rules  []Rule
	logger zerolog.Logger
}

// NewDetector builds the standard rule set from the analysis config.
func NewDetector(cfg core.AnalysisConfig, resolver *geo.Resolver, logger zerolog.Logger) *Detector {
	highRisk := cfg.HighRiskSet()
	return NewDetectorWithRules(logger,
		NewImpossibleTravelRule(resolver, cfg.MaxTravelSpeedKmh, cfg.MinTravelDistanceKm),
		NewLegacyAuthRule(cfg.HomeCountry, cfg.CredentialStuffingThreshold, cfg.StuffingWindow()),
		NewHighRiskCountryRule(highRisk),
		NewForeignLoginRule(ForeignPolicy{HighRisk: highRisk, Strict: cfg.StrictHighRisk}),
	)
}

// NewDetectorWithRules builds a detector over an explicit rule list.
func NewDetectorWithRules(logger zerolog.Logger, rules ...Rule) *Detector {
	return &Detector{
		rules:  rules,
		logger: logger.With().Str("component", "anomaly_detector").Logger(),
	}
}

// DetectAll runs every rule and returns the combined, time-sorted findings.
// baselines may be nil, which disables the foreign-login rule.
func (d *Detector) DetectAll(signIns []core.SignInEvent, legacy []core.LegacyAuthEvent, baselines map[string]baseline.UserBaseline) []Anomaly {
	in := Input{SignIns: signIns, Legacy: legacy, Baselines: baselines}
	out := []Anomaly{}
	for _, rule := range d.rules {
		found := rule.Detect(in)
		d.logger.Debug().Str("rule", rule.Name()).Int("anomalies", len(found)).Msg("rule evaluated")
		out = append(out, found...)
	}
	Sort(out)
	return out
}

// Summary counts anomalies along each reporting dimension.
type Summary struct {
	Total       int            `json:"total"`
	ByType      map[string]int `json:"by_type"`
	ByUser      map[string]int `json:"by_user"`
	BySeverity  map[string]int `json:"by_severity"`
	UniqueUsers int            `json:"unique_users"`
}

func Summarize(anomalies []Anomaly) Summary {
	s := Summary{
		Total:      len(anomalies),
		ByType:     map[string]int{},
		ByUser:     map[string]int{},
		BySeverity: map[string]int{},
	}
	for _, a := range anomalies {
		s.ByType[string(a.Kind)]++
		s.ByUser[a.UserID]++
		s.BySeverity[a.Severity.String()]++
	}
	s.UniqueUsers = len(s.ByUser)
	return s
}

// GroupBy names an aggregation dimension.
type GroupBy string

const (
	GroupByKind     GroupBy = "kind"
	GroupByUser     GroupBy = "user"
	GroupBySeverity GroupBy = "severity"
	GroupByDay      GroupBy = "day"
)

// Group is one bucket of an aggregation.
type Group struct {
	Key       string    `json:"key"`
	Count     int       `json:"count"`
	Anomalies []Anomaly `json:"anomalies"`
}

// Aggregate buckets anomalies by the given dimension. Groups are ordered by
// key; anomalies keep their input order within a group.
func Aggregate(anomalies []Anomaly, by GroupBy) ([]Group, error) {
	var keyOf func(*Anomaly) string
	switch GroupBy(strings.ToLower(string(by))) {
	case GroupByKind:
		keyOf = func(a *Anomaly) string { return string(a.Kind) }
	case GroupByUser:
		keyOf = func(a *Anomaly) string { return a.UserID }
	case GroupBySeverity:
		keyOf = func(a *Anomaly) string { return a.Severity.String() }
	case GroupByDay:
		keyOf = func(a *Anomaly) string { return core.Day(a.Timestamp).Format("2006-01-02") }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAggregation, by)
	}

	index := map[string]int{}
	var groups []Group
	for i := range anomalies {
		k := keyOf(&anomalies[i])
		gi, ok := index[k]
		if !ok {
			gi = len(groups)
			index[k] = gi
			groups = append(groups, Group{Key: k})
		}
		groups[gi].Count++
		groups[gi].Anomalies = append(groups[gi].Anomalies, anomalies[i])
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups, nil
}
