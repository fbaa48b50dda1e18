package anomaly

import (
	"fmt"
	"math"

	"github.com/1sec-project/breachline/internal/core"
	"github.com/1sec-project/breachline/internal/geo"
)

// ImpossibleTravelRule flags consecutive sign-ins of one user whose implied
// ground speed exceeds MaxSpeedKmh over more than MinDistanceKm.
type ImpossibleTravelRule struct {
	Resolver      *geo.Resolver
	MaxSpeedKmh   float64
	MinDistanceKm float64
}

// NewImpossibleTravelRule creates the rule. A nil resolver uses the shipped
// coordinate tables.
func NewImpossibleTravelRule(resolver *geo.Resolver, maxSpeedKmh, minDistanceKm float64) *ImpossibleTravelRule {
	if resolver == nil {
		resolver = geo.NewResolver()
	}
	return &ImpossibleTravelRule{
		Resolver:      resolver,
		MaxSpeedKmh:   maxSpeedKmh,
		MinDistanceKm: minDistanceKm,
	}
}

func (r *ImpossibleTravelRule) Name() string { return "impossible_travel" }

// Detect walks each user's located sign-ins in time order. Sign-ins without
// geography are skipped rather than breaking the chain.
func (r *ImpossibleTravelRule) Detect(in Input) []Anomaly {
	var out []Anomaly
	users, byUser := groupSignIns(in.SignIns)
	for _, user := range users {
		var prev *core.SignInEvent
		events := byUser[user]
		for i := range events {
			cur := &events[i]
			if cur.Location == nil {
				continue
			}
			if prev != nil {
				if a, ok := r.check(prev, cur); ok {
					out = append(out, a)
				}
			}
			prev = cur
		}
	}
	return out
}

func (r *ImpossibleTravelRule) check(from, to *core.SignInEvent) (Anomaly, bool) {
	if from.Location.SameAs(to.Location) {
		return Anomaly{}, false
	}
	elapsed := to.Timestamp.Sub(from.Timestamp)
	hours := elapsed.Hours()
	if hours <= 0 {
		return Anomaly{}, false
	}

	dist := r.Resolver.DistanceKm(from.Location.City, from.Location.Country, to.Location.City, to.Location.Country)
	speed := dist / hours
	if speed <= r.MaxSpeedKmh || dist <= r.MinDistanceKm {
		return Anomaly{}, false
	}

	_, fromPrec := r.Resolver.Resolve(from.Location.City, from.Location.Country)
	_, toPrec := r.Resolver.Resolve(to.Location.City, to.Location.Country)

	return Anomaly{
		ID: anomalyID(KindImpossibleTravel, to.UserID,
			nanos(from.Timestamp), from.Location.String(), nanos(to.Timestamp), to.Location.String()),
		Kind:      KindImpossibleTravel,
		UserID:    to.UserID,
		Timestamp: to.Timestamp,
		Severity:  core.SeverityHigh,
		Description: fmt.Sprintf("Sign-in from %s %.1f hours after %s (%.0f km, %.0f km/h)",
			to.Location, hours, from.Location, dist, speed),
		Evidence: map[string]any{
			"from_event":         eventEvidence(from),
			"to_event":           eventEvidence(to),
			"distance_km":        round1(dist),
			"hours":              round1(hours),
			"required_speed_kmh": round1(speed),
			"from_precision":     fromPrec.String(),
			"to_precision":       toPrec.String(),
		},
		Source:     from.Location,
		Dest:       to.Location,
		TimeDelta:  elapsed,
		DistanceKm: dist,
	}, true
}

func eventEvidence(e *core.SignInEvent) map[string]any {
	return map[string]any{
		"timestamp": e.Timestamp,
		"location":  e.Location.String(),
		"source_ip": e.SourceIP,
		"app":       e.App,
		"succeeded": e.Status.Succeeded,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
