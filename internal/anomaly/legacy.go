package anomaly

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/1sec-project/breachline/internal/core"
)

// LegacyAuthRule flags legacy-protocol authentication from outside the home
// country, plus bursts of such attempts that look like credential stuffing.
type LegacyAuthRule struct {
	HomeCountry       string
	StuffingThreshold int
	StuffingWindow    time.Duration
}

func NewLegacyAuthRule(home string, threshold int, window time.Duration) *LegacyAuthRule {
	return &LegacyAuthRule{
		HomeCountry:       strings.ToUpper(home),
		StuffingThreshold: threshold,
		StuffingWindow:    window,
	}
}

func (r *LegacyAuthRule) Name() string { return "legacy_auth" }

func (r *LegacyAuthRule) Detect(in Input) []Anomaly {
	events := append([]core.LegacyAuthEvent(nil), in.Legacy...)
	core.SortLegacy(events)

	var out []Anomaly
	byUser := make(map[string][]*core.LegacyAuthEvent)
	for i := range events {
		e := &events[i]
		country, ok := e.Country()
		if !ok || country == r.HomeCountry {
			continue
		}
		out = append(out, r.abuse(e, country))
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)
	for _, u := range users {
		out = append(out, r.stuffing(u, byUser[u])...)
	}
	return out
}

func (r *LegacyAuthRule) abuse(e *core.LegacyAuthEvent, country string) Anomaly {
	sev, outcome := core.SeverityMedium, "failed"
	if e.Status.Succeeded {
		sev, outcome = core.SeverityHigh, "succeeded"
	}
	return Anomaly{
		ID:          anomalyID(KindLegacyAuthAbuse, e.UserID, nanos(e.Timestamp), e.SourceIP, e.ClientProtocol),
		Kind:        KindLegacyAuthAbuse,
		UserID:      e.UserID,
		Timestamp:   e.Timestamp,
		Severity:    sev,
		Description: fmt.Sprintf("%s authentication from %s %s", e.ClientProtocol, e.Location, outcome),
		Evidence: map[string]any{
			"protocol":       e.ClientProtocol,
			"country":        country,
			"source_ip":      e.SourceIP,
			"succeeded":      e.Status.Succeeded,
			"failure_reason": e.FailureReason,
		},
		Source: e.Location,
	}
}

// stuffing scans one user's non-home attempts (time ordered). A window that
// starts at attempt i and holds at least StuffingThreshold attempts becomes
// one finding; the scan then resumes after the last attempt in the window.
func (r *LegacyAuthRule) stuffing(user string, attempts []*core.LegacyAuthEvent) []Anomaly {
	if r.StuffingThreshold <= 0 {
		return nil
	}
	var out []Anomaly
	for i := 0; i < len(attempts); {
		j := i
		for j+1 < len(attempts) && attempts[j+1].Timestamp.Sub(attempts[i].Timestamp) <= r.StuffingWindow {
			j++
		}
		count := j - i + 1
		if count < r.StuffingThreshold {
			i++
			continue
		}

		burst := attempts[i : j+1]
		first, last := burst[0], burst[len(burst)-1]
		countries := map[string]bool{}
		protocols := map[string]bool{}
		succeeded := 0
		for _, e := range burst {
			c, _ := e.Country()
			countries[c] = true
			protocols[e.ClientProtocol] = true
			if e.Status.Succeeded {
				succeeded++
			}
		}
		duration := last.Timestamp.Sub(first.Timestamp)

		out = append(out, Anomaly{
			ID:        anomalyID(KindCredentialStuffing, user, nanos(first.Timestamp), nanos(last.Timestamp)),
			Kind:      KindCredentialStuffing,
			UserID:    user,
			Timestamp: first.Timestamp,
			Severity:  core.SeverityHigh,
			Description: fmt.Sprintf("%d legacy authentication attempts in %s from %d countries",
				count, duration.Round(time.Second), len(countries)),
			Evidence: map[string]any{
				"count":              count,
				"succeeded":          succeeded,
				"duration_minutes":   round1(duration.Minutes()),
				"distinct_countries": sortedKeys(countries),
				"protocols":          sortedKeys(protocols),
				"first_attempt":      first.Timestamp,
				"last_attempt":       last.Timestamp,
			},
			Source:    first.Location,
			TimeDelta: duration,
		})
		i = j + 1
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
