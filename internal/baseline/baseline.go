// Package baseline infers each user's home geography from historical
// sign-ins.
package baseline

import (
	"sort"

	"github.com/1sec-project/breachline/internal/core"
)

// UnknownCountry is the primary country of a user with no usable geography.
const UnknownCountry = "UNKNOWN"

// UserBaseline is the statistical home-location profile of one user.
type UserBaseline struct {
	UserID              string         `json:"user_id"`
	PrimaryCountry      string         `json:"primary_country"`
	SecondaryCountries  []string       `json:"secondary_countries"`
	Confidence          float64        `json:"confidence"`
	TotalObservations   int            `json:"total_observations"`
	CountryDistribution map[string]int `json:"country_distribution"`
	IsSuspicious        bool           `json:"is_suspicious"`
}

// HasSecondary reports whether country is one of the user's secondary countries.
func (b *UserBaseline) HasSecondary(country string) bool {
	i := sort.SearchStrings(b.SecondaryCountries, country)
	return i < len(b.SecondaryCountries) && b.SecondaryCountries[i] == country
}

// Share returns the fraction of observations from country.
func (b *UserBaseline) Share(country string) float64 {
	if b.TotalObservations == 0 {
		return 0
	}
	return float64(b.CountryDistribution[country]) / float64(b.TotalObservations)
}

// Options holds the baseline thresholds.
type Options struct {
	PrimaryThreshold   float64
	SecondaryThreshold float64
}

// DefaultOptions returns the documented thresholds.
func DefaultOptions() Options {
	return Options{PrimaryThreshold: 0.5, SecondaryThreshold: 0.05}
}

// OptionsFromConfig extracts baseline thresholds from the analysis config.
func OptionsFromConfig(cfg core.AnalysisConfig) Options {
	return Options{
		PrimaryThreshold:   cfg.PrimaryThreshold,
		SecondaryThreshold: cfg.SecondaryThreshold,
	}
}

// Build computes the baseline of userID from its sign-ins. Sign-ins of other
// users are ignored. Sign-ins without a country are not counted.
func Build(userID string, signIns []core.SignInEvent, opts Options) UserBaseline {
	b := UserBaseline{
		UserID:              userID,
		SecondaryCountries:  []string{},
		CountryDistribution: map[string]int{},
	}
	for i := range signIns {
		if signIns[i].UserID != userID {
			continue
		}
		if c, ok := signIns[i].Country(); ok {
			b.CountryDistribution[c]++
			b.TotalObservations++
		}
	}

	if b.TotalObservations == 0 {
		b.PrimaryCountry = UnknownCountry
		b.IsSuspicious = true
		return b
	}

	countries := make([]string, 0, len(b.CountryDistribution))
	for c := range b.CountryDistribution {
		countries = append(countries, c)
	}
	// Highest count first; alphabetical among equals.
	sort.Slice(countries, func(i, j int) bool {
		ci, cj := b.CountryDistribution[countries[i]], b.CountryDistribution[countries[j]]
		if ci != cj {
			return ci > cj
		}
		return countries[i] < countries[j]
	})

	b.PrimaryCountry = countries[0]
	b.Confidence = b.Share(b.PrimaryCountry)
	for _, c := range countries[1:] {
		if b.Share(c) >= opts.SecondaryThreshold {
			b.SecondaryCountries = append(b.SecondaryCountries, c)
		}
	}
	sort.Strings(b.SecondaryCountries)
	b.IsSuspicious = b.Confidence <= opts.PrimaryThreshold
	return b
}

// CalculateAll builds a baseline for every user that appears in signIns.
func CalculateAll(signIns []core.SignInEvent, opts Options) map[string]UserBaseline {
	byUser := make(map[string][]core.SignInEvent)
	for _, e := range signIns {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}
	out := make(map[string]UserBaseline, len(byUser))
	for user, events := range byUser {
		out[user] = Build(user, events, opts)
	}
	return out
}

// Summary aggregates a set of baselines for reporting.
type Summary struct {
	TotalUsers       int            `json:"total_users"`
	SuspiciousUsers  int            `json:"suspicious_users"`
	UnknownUsers     int            `json:"unknown_users"`
	ByPrimaryCountry map[string]int `json:"by_primary_country"`
	MeanConfidence   float64        `json:"mean_confidence"`
	Suspicious       []string       `json:"suspicious"`
}

// Summarize aggregates baselines. Suspicious user IDs are sorted.
func Summarize(baselines map[string]UserBaseline) Summary {
	s := Summary{
		ByPrimaryCountry: map[string]int{},
		Suspicious:       []string{},
	}
	var total float64
	for _, b := range baselines {
		s.TotalUsers++
		total += b.Confidence
		s.ByPrimaryCountry[b.PrimaryCountry]++
		if b.PrimaryCountry == UnknownCountry {
			s.UnknownUsers++
		}
		if b.IsSuspicious {
			s.SuspiciousUsers++
			s.Suspicious = append(s.Suspicious, b.UserID)
		}
	}
	if s.TotalUsers > 0 {
		s.MeanConfidence = total / float64(s.TotalUsers)
	}
	sort.Strings(s.Suspicious)
	return s
}

// SortedUsers returns the user IDs of baselines in ascending order.
func SortedUsers(baselines map[string]UserBaseline) []string {
	users := make([]string, 0, len(baselines))
	for u := range baselines {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// HomeCountry returns the most common primary country among non-suspicious
// baselines, ties broken alphabetically. It returns "" when every baseline is
// suspicious.
func HomeCountry(baselines map[string]UserBaseline) string {
	counts := map[string]int{}
	for _, b := range baselines {
		if !b.IsSuspicious && b.PrimaryCountry != UnknownCountry {
			counts[b.PrimaryCountry]++
		}
	}
	best, bestN := "", 0
	for c, n := range counts {
		if n > bestN || (n == bestN && c < best) {
			best, bestN = c, n
		}
	}
	return best
}
