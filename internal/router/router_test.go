package router

import (
	"errors"
	"testing"

	"github.com/avaluev/conductor/pkg/models"
)

func TestSelect_CheapestCoveringTier(t *testing.T) {
	r := New(models.DefaultTiers)

	tests := []struct {
		name       string
		complexity models.Complexity
		wantModel  string
	}{
		{"simple routes to haiku", models.ComplexitySimple, models.ModelHaiku},
		{"medium routes to sonnet", models.ComplexityMedium, models.ModelSonnet},
		{"complex routes to opus", models.ComplexityComplex, models.ModelOpus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, err := r.Select(tt.complexity, 100.0)
			if err != nil {
				t.Fatalf("Select failed: %v", err)
			}
			if tier.ID != tt.wantModel {
				t.Errorf("Select(%v) = %s, want %s", tt.complexity, tier.ID, tt.wantModel)
			}
		})
	}
}

// A table where a highly capable tier undercuts a weaker one must still
// route to the cheapest tier that covers the complexity.
func TestSelect_PriceNotRankOrdersTiers(t *testing.T) {
	inverted := []models.ModelTier{
		{ID: "pricy-basic", InputPerMillion: 3.00, OutputPerMillion: 15.00, CapabilityRank: 1, MaxOutputTokens: 4096},
		{ID: "cheap-flagship", InputPerMillion: 0.50, OutputPerMillion: 2.00, CapabilityRank: 3, MaxOutputTokens: 8192},
	}
	r := New(inverted)

	for _, c := range []models.Complexity{models.ComplexitySimple, models.ComplexityComplex} {
		tier, err := r.Select(c, 100.0)
		if err != nil {
			t.Fatalf("Select(%v) failed: %v", c, err)
		}
		if tier.ID != "cheap-flagship" {
			t.Errorf("Select(%v) = %s, want cheap-flagship", c, tier.ID)
		}
	}

	// The affordability floor is the cheapest tier by price, whose nominal
	// call cost here is $0.003 against the basic tier's $0.021.
	if _, err := r.Select(models.ComplexitySimple, 0.004); err != nil {
		t.Errorf("cheap tier should be affordable at $0.004: %v", err)
	}
}

func TestSelect_Deterministic(t *testing.T) {
	r := New(models.DefaultTiers)

	first, err := r.Select(models.ComplexityMedium, 25.0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		got, err := r.Select(models.ComplexityMedium, 25.0)
		if err != nil {
			t.Fatal(err)
		}
		if got.ID != first.ID {
			t.Fatalf("Select not deterministic: got %s then %s", first.ID, got.ID)
		}
	}
}

func TestSelect_BudgetExhausted(t *testing.T) {
	r := New(models.DefaultTiers)

	// Well below the cheapest tier's nominal call cost.
	_, err := r.Select(models.ComplexitySimple, 0.000001)
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Errorf("expected ErrBudgetExhausted, got %v", err)
	}
}

func TestDetectComplexity(t *testing.T) {
	tests := []struct {
		name string
		task string
		want models.Complexity
	}{
		{"extraction", "Extract the pricing table from this page", models.ComplexitySimple},
		{"classification", "Classify these leads by industry", models.ComplexitySimple},
		{"strategy", "Create a strategy for entering the EU market", models.ComplexityComplex},
		{"copywriting", "Write copy for the landing page", models.ComplexityComplex},
		{"default medium", "Review the churn numbers for Q3", models.ComplexityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectComplexity(tt.task, models.ComplexityMedium)
			if got != tt.want {
				t.Errorf("DetectComplexity(%q) = %v, want %v", tt.task, got, tt.want)
			}
		})
	}
}

func TestDetectComplexity_Fallback(t *testing.T) {
	got := DetectComplexity("Review the churn numbers", models.ComplexityComplex)
	if got != models.ComplexityComplex {
		t.Errorf("expected fallback complexity, got %v", got)
	}
}
