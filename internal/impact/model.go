// Package impact derives environmental impact figures from device attributes.
// Every function here is pure: no I/O, no clock, no shared state.
package impact

import (
	"fmt"
	"math"

	"ewaste-tracker/backend/internal/device/domain"
)

// TransportFactor is the CO2 cost in kg per km per kg of cargo.
const TransportFactor = 0.0001

const (
	co2Ceiling         = 500.0
	co2MaxPoints       = 60.0
	toxicCeiling       = 5.0
	toxicMaxPoints     = 25.0
	distanceThreshold  = 50.0
	distancePenaltyRun = 200.0
	distanceMaxPoints  = 15.0
)

type typeFactors struct {
	baseCO2Kg       float64
	referenceWeight float64
	toxicFraction   float64
}

var factors = map[domain.DeviceType]typeFactors{
	domain.DeviceTypeLaptop: {baseCO2Kg: 280, referenceWeight: 2.5, toxicFraction: 0.15},
	domain.DeviceTypePhone:  {baseCO2Kg: 70, referenceWeight: 0.2, toxicFraction: 0.12},
	domain.DeviceTypeTV:     {baseCO2Kg: 400, referenceWeight: 15, toxicFraction: 0.20},
}

// Figures is the result of DeriveImpact.
type Figures struct {
	CO2SavedKg            float64
	ToxicWastePreventedKg float64
	SustainabilityScore   int
}

// DeriveImpact computes CO2 saved, toxic waste prevented and the sustainability
// score for a device. An unknown device type is a caller bug and returns
// domain.ErrInvalidDeviceType.
func DeriveImpact(deviceType domain.DeviceType, weightKg, transportDistanceKm float64) (Figures, error) {
	f, ok := factors[deviceType]
	if !ok {
		return Figures{}, fmt.Errorf("%w: %q", domain.ErrInvalidDeviceType, deviceType)
	}

	adjusted := f.baseCO2Kg * (weightKg / f.referenceWeight)
	transport := weightKg * transportDistanceKm * TransportFactor
	co2 := math.Max(0, adjusted-transport)
	toxic := weightKg * f.toxicFraction

	return Figures{
		CO2SavedKg:            Round2(co2),
		ToxicWastePreventedKg: Round2(toxic),
		SustainabilityScore:   score(co2, toxic, transportDistanceKm),
	}, nil
}

// score is computed from the unrounded figures.
func score(co2, toxic, distance float64) int {
	s := 0.0
	if co2 > 0 {
		s += math.Min(co2MaxPoints, co2/co2Ceiling*co2MaxPoints)
	}
	s += math.Min(toxicMaxPoints, toxic/toxicCeiling*toxicMaxPoints)
	if distance > distanceThreshold {
		s -= math.Min(distanceMaxPoints, (distance-distanceThreshold)/distancePenaltyRun*distanceMaxPoints)
	} else {
		s += math.Min(distanceMaxPoints, (distanceThreshold-distance)/distanceThreshold*distanceMaxPoints)
	}
	return int(math.Max(0, math.Min(100, math.Round(s))))
}

// Project returns the Projected snapshot for a device at registration time.
func Project(deviceID uint64, deviceType domain.DeviceType, weightKg, transportDistanceKm float64) (domain.ImpactSnapshot, error) {
	return snapshot(deviceID, deviceType, weightKg, transportDistanceKm, domain.ImpactProjected)
}

// Verify returns the Verified snapshot for a device that reached the terminal
// status. Same formula as Project, different tag.
func Verify(deviceID uint64, deviceType domain.DeviceType, weightKg, transportDistanceKm float64) (domain.ImpactSnapshot, error) {
	return snapshot(deviceID, deviceType, weightKg, transportDistanceKm, domain.ImpactVerified)
}

func snapshot(deviceID uint64, deviceType domain.DeviceType, weightKg, distanceKm float64, kind domain.ImpactKind) (domain.ImpactSnapshot, error) {
	fig, err := DeriveImpact(deviceType, weightKg, distanceKm)
	if err != nil {
		return domain.ImpactSnapshot{}, err
	}
	return domain.ImpactSnapshot{
		DeviceID:              deviceID,
		CO2SavedKg:            fig.CO2SavedKg,
		ToxicWastePreventedKg: fig.ToxicWastePreventedKg,
		SustainabilityScore:   fig.SustainabilityScore,
		Kind:                  kind,
	}, nil
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
