// Package geocode resolves place names to coordinates. The Mapbox client is
// the only network implementation; CachedGeocoder decorates any Geocoder with
// a TTL cache.
package geocode

import "context"

// Result is a forward-geocoding match. The zero value means "not found".
type Result struct {
	Lon              float64
	Lat              float64
	PlaceName        string
	FormattedAddress string
	Confidence       float64 // 0.0–1.0 provider relevance
}

// Found reports whether the result carries a match.
func (r Result) Found() bool {
	return r.FormattedAddress != "" || r.Lat != 0 || r.Lon != 0
}

// Geocoder converts a free-text place name into coordinates.
//
// A place that does not exist is not an error: implementations return a zero
// Result and a nil error. An error means the lookup itself failed.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, place string) (Result, error)
}
