package impact

import (
	"errors"
	"testing"

	"ewaste-tracker/backend/internal/device/domain"
)

func TestDeriveImpact(t *testing.T) {
	tests := []struct {
		name       string
		deviceType domain.DeviceType
		weight     float64
		distance   float64
		want       Figures
	}{
		{
			name:       "phone at reference weight",
			deviceType: domain.DeviceTypePhone,
			weight:     0.2,
			distance:   30,
			want:       Figures{CO2SavedKg: 70, ToxicWastePreventedKg: 0.02, SustainabilityScore: 15},
		},
		{
			name:       "laptop downtown",
			deviceType: domain.DeviceTypeLaptop,
			weight:     2.5,
			distance:   15,
			want:       Figures{CO2SavedKg: 280, ToxicWastePreventedKg: 0.38, SustainabilityScore: 46},
		},
		{
			name:       "tv rural",
			deviceType: domain.DeviceTypeTV,
			weight:     15,
			distance:   80,
			want:       Figures{CO2SavedKg: 399.88, ToxicWastePreventedKg: 3, SustainabilityScore: 61},
		},
		{
			name:       "heavy tv next door caps at 100",
			deviceType: domain.DeviceTypeTV,
			weight:     100,
			distance:   0,
			want:       Figures{CO2SavedKg: 2666.67, ToxicWastePreventedKg: 20, SustainabilityScore: 100},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveImpact(tt.deviceType, tt.weight, tt.distance)
			if err != nil {
				t.Fatalf("DeriveImpact: %v", err)
			}
			if got != tt.want {
				t.Errorf("DeriveImpact = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDeriveImpact_UnknownType(t *testing.T) {
	_, err := DeriveImpact(domain.DeviceType("Tablet"), 1, 10)
	if !errors.Is(err, domain.ErrInvalidDeviceType) {
		t.Fatalf("err = %v, want ErrInvalidDeviceType", err)
	}
}

func TestDeriveImpact_CO2NeverNegative(t *testing.T) {
	// Transport cost exceeds the adjusted figure for a tiny phone shipped far away.
	got, err := DeriveImpact(domain.DeviceTypePhone, 0.001, 1e7)
	if err != nil {
		t.Fatalf("DeriveImpact: %v", err)
	}
	if got.CO2SavedKg != 0 {
		t.Errorf("CO2SavedKg = %v, want 0", got.CO2SavedKg)
	}
	if got.SustainabilityScore != 0 {
		t.Errorf("SustainabilityScore = %d, want 0", got.SustainabilityScore)
	}
}

func TestDeriveImpact_Bounds(t *testing.T) {
	weights := []float64{0.01, 0.2, 1, 2.5, 15, 80, 500}
	distances := []float64{0, 10, 50, 51, 250, 1000, 1e6}
	for _, dt := range domain.DeviceTypes {
		for _, w := range weights {
			for _, d := range distances {
				got, err := DeriveImpact(dt, w, d)
				if err != nil {
					t.Fatalf("DeriveImpact(%s, %v, %v): %v", dt, w, d, err)
				}
				if got.SustainabilityScore < 0 || got.SustainabilityScore > 100 {
					t.Errorf("DeriveImpact(%s, %v, %v) score = %d, out of range", dt, w, d, got.SustainabilityScore)
				}
				if got.CO2SavedKg < 0 || got.ToxicWastePreventedKg < 0 {
					t.Errorf("DeriveImpact(%s, %v, %v) = %+v, negative figure", dt, w, d, got)
				}
			}
		}
	}
}

func TestDeriveImpact_MonotonicInWeightAndDistance(t *testing.T) {
	for _, dt := range domain.DeviceTypes {
		prev, _ := DeriveImpact(dt, 0.1, 30)
		for _, w := range []float64{0.5, 1, 5, 20} {
			got, _ := DeriveImpact(dt, w, 30)
			if got.ToxicWastePreventedKg < prev.ToxicWastePreventedKg {
				t.Errorf("%s toxic decreased from %v to %v at weight %v", dt, prev.ToxicWastePreventedKg, got.ToxicWastePreventedKg, w)
			}
			prev = got
		}

		prev, _ = DeriveImpact(dt, 2, 0)
		for _, d := range []float64{10, 50, 100, 300, 1000} {
			got, _ := DeriveImpact(dt, 2, d)
			if got.SustainabilityScore > prev.SustainabilityScore {
				t.Errorf("%s score increased from %d to %d at distance %v", dt, prev.SustainabilityScore, got.SustainabilityScore, d)
			}
			prev = got
		}
	}
}

func TestDeriveImpact_Deterministic(t *testing.T) {
	a, _ := DeriveImpact(domain.DeviceTypeLaptop, 3.3, 42)
	b, _ := DeriveImpact(domain.DeviceTypeLaptop, 3.3, 42)
	if a != b {
		t.Errorf("DeriveImpact not deterministic: %+v vs %+v", a, b)
	}
}

func TestProjectAndVerify(t *testing.T) {
	p, err := Project(4, domain.DeviceTypePhone, 0.2, 30)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	v, err := Verify(4, domain.DeviceTypePhone, 0.2, 30)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Kind != domain.ImpactProjected || v.Kind != domain.ImpactVerified {
		t.Errorf("kinds = %q, %q", p.Kind, v.Kind)
	}
	if p.DeviceID != 4 || v.DeviceID != 4 {
		t.Errorf("device ids = %d, %d, want 4", p.DeviceID, v.DeviceID)
	}
	v.Kind = p.Kind
	if p != v {
		t.Errorf("Project and Verify figures differ: %+v vs %+v", p, v)
	}
}

func TestEstimateTransportDistance(t *testing.T) {
	tests := []struct {
		location string
		want     float64
	}{
		{"Downtown Seattle", UrbanDistanceKm},
		{"CENTRAL station", UrbanDistanceKm},
		{"quiet residential street", SuburbanDistanceKm},
		{"Rural village road", RuralDistanceKm},
		{"123 Main St", DefaultDistanceKm},
		{"", DefaultDistanceKm},
		// Urban keywords are checked before rural ones.
		{"city edge, remote lot", UrbanDistanceKm},
	}
	for _, tt := range tests {
		if got := EstimateTransportDistance(tt.location); got != tt.want {
			t.Errorf("EstimateTransportDistance(%q) = %v, want %v", tt.location, got, tt.want)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{69.9994, 70},
		{0.024, 0.02},
		{399.88, 399.88},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
