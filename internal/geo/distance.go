// Package geo resolves reported sign-in geography to coordinates and computes
// great-circle distances between locations.
package geo

import (
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Precision records which table a location was resolved from.
type Precision int

const (
	PrecisionNone Precision = iota // fell back to (0,0)
	PrecisionCountry
	PrecisionCity
)

func (p Precision) String() string {
	switch p {
	case PrecisionCity:
		return "city"
	case PrecisionCountry:
		return "country"
	default:
		return "none"
	}
}

// Resolver maps (city, country) to coordinates from static tables and
// memoises pairwise distances. A Resolver is safe for concurrent use once
// constructed.
type Resolver struct {
	cities    map[string]Coordinates
	countries map[string]Coordinates
	cacheSize int
	cache     *lru.Cache[string, float64]
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCities replaces the city table. Keys are "city|CC".
func WithCities(cities map[string]Coordinates) Option {
	return func(r *Resolver) {
		r.cities = make(map[string]Coordinates, len(cities))
		for k, v := range cities {
			city, country, _ := strings.Cut(k, "|")
			r.cities[cityKey(city, country)] = v
		}
	}
}

// WithCountries replaces the country centroid table.
func WithCountries(countries map[string]Coordinates) Option {
	return func(r *Resolver) {
		r.countries = make(map[string]Coordinates, len(countries))
		for k, v := range countries {
			r.countries[strings.ToUpper(strings.TrimSpace(k))] = v
		}
	}
}

// WithCacheSize bounds the distance cache. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(r *Resolver) { r.cacheSize = n }
}

// NewResolver returns a Resolver over the shipped tables unless overridden.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{cacheSize: 4096}
	WithCities(defaultCities)(r)
	WithCountries(defaultCountries)(r)
	for _, opt := range opts {
		opt(r)
	}
	if r.cacheSize > 0 {
		r.cache, _ = lru.New[string, float64](r.cacheSize)
	}
	return r
}

// Resolve returns the coordinates for a location: the exact city entry, then
// the country centroid, then (0,0) with PrecisionNone.
func (r *Resolver) Resolve(city, country string) (Coordinates, Precision) {
	if c, ok := r.cities[cityKey(city, country)]; ok {
		return c, PrecisionCity
	}
	if c, ok := r.countries[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return c, PrecisionCountry
	}
	return Coordinates{}, PrecisionNone
}

// DistanceKm returns the great-circle distance between two locations.
func (r *Resolver) DistanceKm(cityA, countryA, cityB, countryB string) float64 {
	a, b := cityKey(cityA, countryA), cityKey(cityB, countryB)
	if a > b {
		a, b = b, a
	}
	key := a + "\x00" + b
	if r.cache != nil {
		if d, ok := r.cache.Get(key); ok {
			return d
		}
	}

	ca, _ := r.Resolve(cityA, countryA)
	cb, _ := r.Resolve(cityB, countryB)
	d := Haversine(ca, cb)

	if r.cache != nil {
		r.cache.Add(key, d)
	}
	return d
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(a, b Coordinates) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

func cityKey(city, country string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToUpper(strings.TrimSpace(country))
}
