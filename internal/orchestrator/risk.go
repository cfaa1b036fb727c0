package orchestrator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/avaluev/conductor/pkg/models"
)

// dollarAmount captures USD figures like "$1,500" or "$12000.50".
var dollarAmount = regexp.MustCompile(`\$\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)

var legalTerms = []string{
	"contract", "legal", "liability", "lawsuit", "terms of service",
	"regulatory", "compliance filing", "nda", "intellectual property",
}

var brandTerms = []string{
	"press release", "public announcement", "publish", "social media post",
	"official statement", "brand statement",
}

// RiskClassifier screens synthesized results for content that requires
// human approval before it is finalized.
type RiskClassifier struct {
	// FinancialThresholdUSD flags results proposing commitments at or
	// above this amount.
	FinancialThresholdUSD float64
}

// Classify returns the matched risk category and a short rationale, or
// false when the text is unremarkable. Financial matches win over legal,
// legal over brand.
func (c *RiskClassifier) Classify(text string) (models.RiskCategory, string, bool) {
	if amount, ok := c.largestAmount(text); ok && amount >= c.FinancialThresholdUSD {
		return models.RiskFinancial,
			fmt.Sprintf("proposes a financial commitment of $%.2f (threshold $%.2f)", amount, c.FinancialThresholdUSD),
			true
	}
	lower := strings.ToLower(text)
	for _, term := range legalTerms {
		if strings.Contains(lower, term) {
			return models.RiskLegal, fmt.Sprintf("contains legal-sensitive term %q", term), true
		}
	}
	for _, term := range brandTerms {
		if strings.Contains(lower, term) {
			return models.RiskBrand, fmt.Sprintf("contains public brand communication (%q)", term), true
		}
	}
	return "", "", false
}

func (c *RiskClassifier) largestAmount(text string) (float64, bool) {
	matches := dollarAmount.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}
	var max float64
	for _, m := range matches {
		raw := strings.ReplaceAll(m[1], ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max, true
}
