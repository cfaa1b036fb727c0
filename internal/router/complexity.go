package router

import (
	"strings"

	"github.com/avaluev/conductor/pkg/models"
)

// simpleKeywords indicate classification/extraction style work that the
// cheapest tier handles well.
var simpleKeywords = []string{
	"classify",
	"extract",
	"summarize",
	"validate",
	"format",
	"parse",
	"check if",
	"is this",
	"yes or no",
	"list the",
	"count the",
}

// complexKeywords indicate creative or multi-step strategy work.
var complexKeywords = []string{
	"analyze and recommend",
	"create a strategy",
	"design a",
	"write copy",
	"generate content",
	"plan a",
	"come up with",
	"brainstorm",
	"multiple steps",
	"comprehensive",
}

// DetectComplexity derives a complexity hint from a task description.
// Callers pass the result to Router.Select; the router itself never infers.
// Precedence: simple keywords, then complex keywords, then the fallback.
func DetectComplexity(task string, fallback models.Complexity) models.Complexity {
	lower := strings.ToLower(task)

	for _, kw := range simpleKeywords {
		if strings.Contains(lower, kw) {
			return models.ComplexitySimple
		}
	}
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			return models.ComplexityComplex
		}
	}
	if fallback.Valid() {
		return fallback
	}
	return models.ComplexityMedium
}
