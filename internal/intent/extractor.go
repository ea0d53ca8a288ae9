// Package intent derives what a question is asking about: which hazards,
// which places (with coordinates), which coarse region, and which climate
// scenario and horizons.
//
// Hazard, region and scenario detection are pure. Place resolution calls the
// geocoder, and a failed or empty lookup simply drops the place.
package intent

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nyashahama/hazard-query-backend/internal/geocode"
	"github.com/nyashahama/hazard-query-backend/internal/hazard"
)

// maxConcurrentLookups bounds geocoding fan-out for a single question.
const maxConcurrentLookups = 4

// Place is a mention resolved to coordinates.
type Place struct {
	Name     string  // the mention as written, qualifiers stripped
	Lon      float64 // WGS84
	Lat      float64
	Resolved string // provider's formatted address, for logging
}

// Intent is everything extracted from one question. It lives for one request.
type Intent struct {
	Question string

	// Hazards is never empty; all four when the question names none.
	Hazards []hazard.Category

	// Mentions are the candidate place names before geocoding.
	Mentions []string

	// Places are the mentions that resolved to coordinates, in mention order.
	Places []Place

	// Region is "" when no region keyword was found.
	Region Region

	// RegionMention is the keyword that selected Region, e.g. "India".
	RegionMention string

	Scenario hazard.Scenario
}

// HasPlaces reports whether any mention resolved to coordinates.
func (i Intent) HasPlaces() bool {
	return len(i.Places) > 0
}

// Extractor builds an Intent from a question.
type Extractor struct {
	recognizer EntityRecognizer
	geocoder   geocode.Geocoder // nil disables coordinate resolution
	logger     *slog.Logger
}

// NewExtractor returns an Extractor. geocoder may be nil, in which case no
// place ever resolves and queries go through region or free-form generation.
func NewExtractor(recognizer EntityRecognizer, geocoder geocode.Geocoder, logger *slog.Logger) *Extractor {
	return &Extractor{
		recognizer: recognizer,
		geocoder:   geocoder,
		logger:     logger,
	}
}

// Extract never fails. Recognizer and geocoder errors are logged and only
// reduce what the Intent contains.
func (e *Extractor) Extract(ctx context.Context, question string) Intent {
	in := Intent{
		Question: question,
		Hazards:  hazard.Detect(question),
		Scenario: hazard.ParseScenario(question),
	}
	in.Region, in.RegionMention = DetectRegionMention(question)

	entities, err := e.recognizer.Entities(question)
	if err != nil {
		e.logger.Warn("intent: entity recognition failed", "error", err)
	}
	in.Mentions = PlaceNames(entities)
	in.Places = e.resolve(ctx, in.Mentions)

	return in
}

// resolve geocodes every mention concurrently and returns the ones that
// produced coordinates, preserving mention order.
func (e *Extractor) resolve(ctx context.Context, mentions []string) []Place {
	if e.geocoder == nil || len(mentions) == 0 {
		return nil
	}

	results := make([]geocode.Result, len(mentions))

	var g errgroup.Group
	g.SetLimit(maxConcurrentLookups)
	for i, name := range mentions {
		g.Go(func() error {
			r, err := e.geocoder.ForwardGeocode(ctx, name)
			if err != nil {
				e.logger.Warn("intent: geocoding failed", "place", name, "error", err)
				return nil
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait() // workers never return an error

	var places []Place
	for i, r := range results {
		if !r.Found() {
			continue
		}
		places = append(places, Place{
			Name:     mentions[i],
			Lon:      r.Lon,
			Lat:      r.Lat,
			Resolved: r.FormattedAddress,
		})
	}
	return places
}
