package baseline

import (
	"math"
	"testing"
	"time"

	"github.com/1sec-project/breachline/internal/core"
)

var t0 = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func signIns(user string, countries ...string) []core.SignInEvent {
	out := make([]core.SignInEvent, 0, len(countries))
	for i, c := range countries {
		out = append(out, core.SignInEvent{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			UserID:    user,
			Location:  core.NewLocation("", c),
		})
	}
	return out
}

func repeat(country string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = country
	}
	return out
}

// ─── Build ──────────────────────────────────────────────────────────────────

func TestBuild_MostlyHome(t *testing.T) {
	events := signIns("alice", append(repeat("AU", 9), "US")...)
	b := Build("alice", events, DefaultOptions())

	if b.PrimaryCountry != "AU" {
		t.Errorf("PrimaryCountry = %q, want AU", b.PrimaryCountry)
	}
	if math.Abs(b.Confidence-0.9) > 1e-9 {
		t.Errorf("Confidence = %v, want 0.9", b.Confidence)
	}
	if b.IsSuspicious {
		t.Error("90% home baseline should not be suspicious")
	}
	if !b.HasSecondary("US") || len(b.SecondaryCountries) != 1 {
		t.Errorf("SecondaryCountries = %v, want [US]", b.SecondaryCountries)
	}
}

func TestBuild_NoUsableCountries(t *testing.T) {
	events := []core.SignInEvent{{UserID: "bob", Timestamp: t0}, {UserID: "bob", Timestamp: t0}}
	b := Build("bob", events, DefaultOptions())
	if b.PrimaryCountry != UnknownCountry || b.Confidence != 0 || !b.IsSuspicious {
		t.Errorf("got %+v, want UNKNOWN/0/suspicious", b)
	}
	if b.TotalObservations != 0 {
		t.Errorf("TotalObservations = %d, want 0", b.TotalObservations)
	}
}

func TestBuild_NoEvents(t *testing.T) {
	b := Build("ghost", nil, DefaultOptions())
	if b.PrimaryCountry != UnknownCountry || !b.IsSuspicious {
		t.Errorf("got %+v, want UNKNOWN suspicious baseline", b)
	}
}

func TestBuild_MissingCountryNotCounted(t *testing.T) {
	events := signIns("carol", "GB", "GB")
	events = append(events, core.SignInEvent{UserID: "carol", Timestamp: t0})
	b := Build("carol", events, DefaultOptions())
	if b.TotalObservations != 2 || b.Confidence != 1 {
		t.Errorf("got total=%d conf=%v, want 2/1", b.TotalObservations, b.Confidence)
	}
}

func TestBuild_EvenSplitIsSuspicious(t *testing.T) {
	b := Build("dave", signIns("dave", "AU", "NZ"), DefaultOptions())
	if !b.IsSuspicious {
		t.Error("confidence 0.5 must be suspicious (threshold is inclusive)")
	}
	if b.PrimaryCountry != "AU" {
		t.Errorf("tie PrimaryCountry = %q, want alphabetical AU", b.PrimaryCountry)
	}
	if b.HasSecondary("AU") {
		t.Error("secondary set must exclude the primary")
	}
}

func TestBuild_SecondaryThreshold(t *testing.T) {
	countries := append(repeat("AU", 95), repeat("NZ", 4)...)
	countries = append(countries, "FJ")
	b := Build("erin", signIns("erin", countries...), DefaultOptions())
	if b.HasSecondary("NZ") || b.HasSecondary("FJ") {
		t.Errorf("shares below 5%% should not be secondary: %v", b.SecondaryCountries)
	}

	countries = append(repeat("AU", 95), repeat("NZ", 5)...)
	b = Build("erin", signIns("erin", countries...), DefaultOptions())
	if !b.HasSecondary("NZ") {
		t.Errorf("a share of exactly 5%% should be secondary: %v", b.SecondaryCountries)
	}
}

// ─── Properties ─────────────────────────────────────────────────────────────

func TestCalculateAll_DistributionInvariants(t *testing.T) {
	var events []core.SignInEvent
	events = append(events, signIns("a", "AU", "AU", "US", "GB")...)
	events = append(events, signIns("b", "RU")...)
	events = append(events, signIns("c", "DE", "FR", "IT", "ES")...)
	events = append(events, core.SignInEvent{UserID: "d", Timestamp: t0})

	baselines := CalculateAll(events, DefaultOptions())
	if len(baselines) != 4 {
		t.Fatalf("baselines = %d, want 4", len(baselines))
	}
	for user, b := range baselines {
		sum := 0
		for _, n := range b.CountryDistribution {
			sum += n
		}
		if sum != b.TotalObservations {
			t.Errorf("%s: sum(distribution) = %d, want %d", user, sum, b.TotalObservations)
		}
		if b.TotalObservations > 0 {
			share := float64(b.CountryDistribution[b.PrimaryCountry]) / float64(b.TotalObservations)
			if math.Abs(share-b.Confidence) > 1e-9 {
				t.Errorf("%s: primary share %v != confidence %v", user, share, b.Confidence)
			}
		}
	}
}

func TestBuild_SecondaryMonotonic(t *testing.T) {
	countries := append(repeat("AU", 60), repeat("NZ", 20)...)
	countries = append(countries, repeat("US", 10)...)
	countries = append(countries, repeat("GB", 6)...)
	countries = append(countries, repeat("FJ", 4)...)
	events := signIns("u", countries...)

	prev := math.MaxInt
	for _, th := range []float64{0, 0.01, 0.05, 0.06, 0.1, 0.2, 0.5, 1} {
		b := Build("u", events, Options{PrimaryThreshold: 0.5, SecondaryThreshold: th})
		if len(b.SecondaryCountries) > prev {
			t.Errorf("threshold %v grew secondary set to %d (was %d)", th, len(b.SecondaryCountries), prev)
		}
		prev = len(b.SecondaryCountries)
	}
}

// ─── Summary ────────────────────────────────────────────────────────────────

func TestSummarize(t *testing.T) {
	var events []core.SignInEvent
	events = append(events, signIns("a", repeat("AU", 5)...)...)
	events = append(events, signIns("b", repeat("AU", 3)...)...)
	events = append(events, signIns("c", "RU", "CN")...)
	baselines := CalculateAll(events, DefaultOptions())

	s := Summarize(baselines)
	if s.TotalUsers != 3 || s.SuspiciousUsers != 1 {
		t.Errorf("users = %d suspicious = %d, want 3/1", s.TotalUsers, s.SuspiciousUsers)
	}
	if s.ByPrimaryCountry["AU"] != 2 {
		t.Errorf("ByPrimaryCountry[AU] = %d, want 2", s.ByPrimaryCountry["AU"])
	}
	if len(s.Suspicious) != 1 || s.Suspicious[0] != "c" {
		t.Errorf("Suspicious = %v, want [c]", s.Suspicious)
	}
	if got := HomeCountry(baselines); got != "AU" {
		t.Errorf("HomeCountry = %q, want AU", got)
	}
}
