package models

import (
	"math"
	"testing"
)

func TestComplexity_Valid(t *testing.T) {
	tests := []struct {
		name       string
		complexity Complexity
		want       bool
	}{
		{"simple is valid", ComplexitySimple, true},
		{"medium is valid", ComplexityMedium, true},
		{"complex is valid", ComplexityComplex, true},
		{"empty string is invalid", Complexity(""), false},
		{"unknown is invalid", Complexity("heroic"), false},
		{"uppercase is invalid", Complexity("SIMPLE"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.complexity.Valid(); got != tt.want {
				t.Errorf("Complexity(%q).Valid() = %v, want %v", tt.complexity, got, tt.want)
			}
		})
	}
}

func TestComplexity_Rank(t *testing.T) {
	if ComplexitySimple.Rank() >= ComplexityMedium.Rank() ||
		ComplexityMedium.Rank() >= ComplexityComplex.Rank() {
		t.Error("complexity ranks must be strictly increasing")
	}
	if Complexity("unknown").Rank() != ComplexityMedium.Rank() {
		t.Error("unknown complexity should default to the medium rank")
	}
}

func TestTier_Cost(t *testing.T) {
	tier := ModelTier{InputPerMillion: 3.00, OutputPerMillion: 15.00}

	tests := []struct {
		name    string
		in, out int64
		want    float64
	}{
		{"one million in", 1_000_000, 0, 3.00},
		{"one million out", 0, 1_000_000, 15.00},
		{"mixed", 500_000, 100_000, 1.50 + 1.50},
		{"zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tier.Cost(tt.in, tt.out); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cost(%d, %d) = %v, want %v", tt.in, tt.out, got, tt.want)
			}
		})
	}
}

func TestDefaultTiers_Ordering(t *testing.T) {
	if len(DefaultTiers) < 2 {
		t.Fatal("tier table too small")
	}
	for i := 1; i < len(DefaultTiers); i++ {
		prev, cur := DefaultTiers[i-1], DefaultTiers[i]
		if cur.CapabilityRank <= prev.CapabilityRank {
			t.Errorf("capability ranks not increasing at %d", i)
		}
		if cur.InputPerMillion < prev.InputPerMillion {
			t.Errorf("tier table not ordered cheapest first at %d", i)
		}
	}
}

func TestTierByID(t *testing.T) {
	if _, ok := TierByID(ModelHaiku); !ok {
		t.Error("haiku tier missing")
	}
	if _, ok := TierByID("nope"); ok {
		t.Error("unknown id should not resolve")
	}
}
