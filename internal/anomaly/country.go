package anomaly

import (
	"fmt"

	"github.com/1sec-project/breachline/internal/baseline"
	"github.com/1sec-project/breachline/internal/core"
)

// HighRiskCountryRule flags every interactive sign-in from a high-risk
// country, whatever the user's baseline says.
type HighRiskCountryRule struct {
	Countries map[string]bool
}

func NewHighRiskCountryRule(countries map[string]bool) *HighRiskCountryRule {
	return &HighRiskCountryRule{Countries: countries}
}

func (r *HighRiskCountryRule) Name() string { return "high_risk_country" }

func (r *HighRiskCountryRule) Detect(in Input) []Anomaly {
	var out []Anomaly
	for i := range in.SignIns {
		e := &in.SignIns[i]
		country, ok := e.Country()
		if !ok || !r.Countries[country] {
			continue
		}
		out = append(out, Anomaly{
			ID:          anomalyID(KindHighRiskCountry, e.UserID, nanos(e.Timestamp), e.SourceIP, e.App),
			Kind:        KindHighRiskCountry,
			UserID:      e.UserID,
			Timestamp:   e.Timestamp,
			Severity:    core.SeverityMedium,
			Description: fmt.Sprintf("Sign-in from high-risk country %s", e.Location),
			Evidence: map[string]any{
				"country":   country,
				"source_ip": e.SourceIP,
				"app":       e.App,
				"succeeded": e.Status.Succeeded,
			},
			Source: e.Location,
		})
	}
	return out
}

// ForeignPolicy controls how secondary countries are treated.
type ForeignPolicy struct {
	HighRisk map[string]bool
	// Strict treats a high-risk country as foreign even when it is one of
	// the user's secondary countries.
	Strict bool
}

// IsForeign reports whether the sign-in falls outside the user's baseline.
// A sign-in without a country is never foreign.
func IsForeign(e *core.SignInEvent, b *baseline.UserBaseline, policy ForeignPolicy) bool {
	country, ok := e.Country()
	if !ok {
		return false
	}
	if country == b.PrimaryCountry {
		return false
	}
	if b.HasSecondary(country) {
		return policy.Strict && policy.HighRisk[country]
	}
	return true
}

// FindAnomalousLogins returns the sign-ins for which IsForeign is true.
// Users without a baseline are skipped.
func FindAnomalousLogins(signIns []core.SignInEvent, baselines map[string]baseline.UserBaseline, policy ForeignPolicy) []core.SignInEvent {
	var out []core.SignInEvent
	for i := range signIns {
		b, ok := baselines[signIns[i].UserID]
		if !ok {
			continue
		}
		if IsForeign(&signIns[i], &b, policy) {
			out = append(out, signIns[i])
		}
	}
	return out
}

// ForeignLoginRule turns FindAnomalousLogins into anomalies. It does nothing
// when no baselines are supplied.
type ForeignLoginRule struct {
	Policy ForeignPolicy
}

func NewForeignLoginRule(policy ForeignPolicy) *ForeignLoginRule {
	return &ForeignLoginRule{Policy: policy}
}

func (r *ForeignLoginRule) Name() string { return "foreign_login" }

func (r *ForeignLoginRule) Detect(in Input) []Anomaly {
	if len(in.Baselines) == 0 {
		return nil
	}
	var out []Anomaly
	for _, e := range FindAnomalousLogins(in.SignIns, in.Baselines, r.Policy) {
		b := in.Baselines[e.UserID]
		sev := core.SeverityMedium
		if b.IsSuspicious {
			sev = core.SeverityLow
		}
		country, _ := e.Country()
		out = append(out, Anomaly{
			ID:          anomalyID(KindForeignLogin, e.UserID, nanos(e.Timestamp), e.SourceIP, e.App),
			Kind:        KindForeignLogin,
			UserID:      e.UserID,
			Timestamp:   e.Timestamp,
			Severity:    sev,
			Description: fmt.Sprintf("Sign-in from %s outside baseline (home %s)", e.Location, b.PrimaryCountry),
			Evidence: map[string]any{
				"country":             country,
				"primary_country":     b.PrimaryCountry,
				"secondary_countries": b.SecondaryCountries,
				"baseline_confidence": b.Confidence,
				"baseline_suspicious": b.IsSuspicious,
				"source_ip":           e.SourceIP,
			},
			Source: e.Location,
		})
	}
	return out
}
