package impact

import "strings"

// Estimated distances to the nearest recycling facility, in km.
const (
	UrbanDistanceKm    = 15.0
	SuburbanDistanceKm = 35.0
	RuralDistanceKm    = 80.0
	DefaultDistanceKm  = 30.0
)

type distanceCategory struct {
	keywords []string
	km       float64
}

// Checked in order; the first category with a matching keyword wins.
var distanceCategories = []distanceCategory{
	{keywords: []string{"city", "downtown", "urban", "central"}, km: UrbanDistanceKm},
	{keywords: []string{"suburb", "residential", "neighborhood"}, km: SuburbanDistanceKm},
	{keywords: []string{"rural", "countryside", "village", "remote"}, km: RuralDistanceKm},
}

// EstimateTransportDistance guesses the distance to a recycling facility from
// free-text location using keyword matching.
func EstimateTransportDistance(location string) float64 {
	lower := strings.ToLower(location)
	for _, c := range distanceCategories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.km
			}
		}
	}
	return DefaultDistanceKm
}
