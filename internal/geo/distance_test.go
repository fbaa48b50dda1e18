package geo

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestHaversine_KnownDistances(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Coordinates
		min, max float64
	}{
		{"same point", Coordinates{10, 10}, Coordinates{10, 10}, 0, 0.001},
		{"quarter meridian", Coordinates{0, 0}, Coordinates{90, 0}, 10007, 10008},
		{"melbourne-sydney", defaultCities["Melbourne|AU"], defaultCities["Sydney|AU"], 700, 730},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Haversine(tt.a, tt.b)
			if d < tt.min || d > tt.max {
				t.Errorf("Haversine = %.1f, want within [%v, %v]", d, tt.min, tt.max)
			}
		})
	}
}

func TestResolver_ResolutionOrder(t *testing.T) {
	r := NewResolver()

	c, p := r.Resolve("melbourne", "au")
	if p != PrecisionCity || c.Lat != -37.8136 {
		t.Errorf("Resolve(melbourne, au) = %v/%v, want city precision", c, p)
	}

	_, p = r.Resolve("Nowhereville", "AU")
	if p != PrecisionCountry {
		t.Errorf("unknown city precision = %v, want country", p)
	}

	c, p = r.Resolve("Nowhere", "ZZ")
	if p != PrecisionNone || c != (Coordinates{}) {
		t.Errorf("unknown country = %v/%v, want (0,0)/none", c, p)
	}
}

func TestResolver_MelbourneMoscow(t *testing.T) {
	r := NewResolver()
	d := r.DistanceKm("Melbourne", "AU", "Moscow", "RU")
	if d < 10000 {
		t.Errorf("Melbourne-Moscow = %.0f km, want > 10000", d)
	}
}

func TestResolver_Symmetric(t *testing.T) {
	r := NewResolver(WithCacheSize(0))
	ab := r.DistanceKm("Melbourne", "AU", "Los Angeles", "US")
	ba := r.DistanceKm("Los Angeles", "US", "Melbourne", "AU")
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestResolver_CacheReturnsSameValue(t *testing.T) {
	r := NewResolver(WithCacheSize(8))
	first := r.DistanceKm("Perth", "AU", "London", "GB")
	second := r.DistanceKm("London", "GB", "Perth", "AU")
	if first != second {
		t.Errorf("cached distance %v differs from %v", second, first)
	}
	if r.cache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1 for an unordered pair", r.cache.Len())
	}
}

func TestResolver_InjectedTables(t *testing.T) {
	r := NewResolver(
		WithCities(map[string]Coordinates{"Alpha|XA": {0, 0}}),
		WithCountries(map[string]Coordinates{"xb": {0, 1}}),
	)
	if _, p := r.Resolve("Melbourne", "AU"); p != PrecisionNone {
		t.Errorf("replaced tables should not know Melbourne, got %v", p)
	}
	d := r.DistanceKm("alpha", "XA", "", "XB")
	if d < 111 || d > 112 {
		t.Errorf("one degree of longitude at the equator = %.2f, want ~111.2", d)
	}
}

func TestOpenIPLocator_MissingFile(t *testing.T) {
	if _, err := OpenIPLocator(filepath.Join(t.TempDir(), "missing.mmdb")); err == nil {
		t.Error("expected error for missing database")
	}
}

func TestIPLocator_InvalidIP(t *testing.T) {
	l := &IPLocator{}
	if _, err := l.Lookup("not-an-ip"); !errors.Is(err, ErrInvalidIP) {
		t.Errorf("Lookup(not-an-ip) error = %v, want ErrInvalidIP", err)
	}
}
