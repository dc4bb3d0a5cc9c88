// Package filter compiles backend-agnostic metadata constraints into the
// vector index's native predicate.
package filter

import (
	"fmt"

	"github.com/creastat/retrieval"
	"github.com/creastat/retrieval/vectorstore"
)

// Range is an inclusive numeric bound. Both ends are required.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Between returns a Range over [lo, hi].
func Between(lo, hi float64) *Range {
	return &Range{Min: &lo, Max: &hi}
}

// Spec is a structured description of metadata constraints for a retrieval query.
type Spec struct {
	// Categorical fields match any of the provided values.
	Category   []string `json:"category,omitempty"`
	Difficulty []string `json:"difficulty,omitempty"`
	AgeGroup   []string `json:"ageGroup,omitempty"`

	// Numeric range fields.
	EstimatedHours   *Range `json:"estimatedHours,omitempty"`
	Points           *Range `json:"points,omitempty"`
	EnrolledStudents *Range `json:"enrolledStudents,omitempty"`

	// Keyword multi-match fields match when any stored value is in the set.
	Keywords       []string `json:"keywords,omitempty"`
	InterestTags   []string `json:"interestTags,omitempty"`
	ComponentTypes []string `json:"componentTypes,omitempty"`
}

// Compile translates spec into a native filter. When idPrefix is non-empty the
// result always contains an id-prefix term ANDed with the user constraints.
// A nil spec compiles to the prefix-only filter, or to match-everything.
func Compile(spec *Spec, idPrefix string) (vectorstore.Filter, error) {
	var f vectorstore.Filter
	if idPrefix != "" {
		f = f.And(vectorstore.HasPrefix(vectorstore.IDField, idPrefix))
	}
	if spec == nil {
		return f, nil
	}

	for _, field := range []struct {
		name   string
		values []string
	}{
		{"category", spec.Category},
		{"difficulty", spec.Difficulty},
		{"targetAgeGroup", spec.AgeGroup},
		{"keywords", spec.Keywords},
		{"interestTags", spec.InterestTags},
		{"componentTypes", spec.ComponentTypes},
	} {
		if len(field.values) > 0 {
			f = f.And(vectorstore.In(field.name, field.values...))
		}
	}

	for _, field := range []struct {
		name string
		r    *Range
	}{
		{"estimatedHours", spec.EstimatedHours},
		{"points", spec.Points},
		{"enrolledStudents", spec.EnrolledStudents},
	} {
		if field.r == nil {
			continue
		}
		conds, err := compileRange(field.name, *field.r)
		if err != nil {
			return vectorstore.Filter{}, err
		}
		f = f.And(conds...)
	}

	return f, nil
}

func compileRange(field string, r Range) ([]vectorstore.Condition, error) {
	if r.Min == nil || r.Max == nil {
		return nil, retrieval.NewValidationError(field, "numeric range requires both min and max")
	}
	if *r.Min > *r.Max {
		return nil, retrieval.NewValidationError(field, fmt.Sprintf("min %v is greater than max %v", *r.Min, *r.Max))
	}
	return []vectorstore.Condition{
		vectorstore.Gte(field, *r.Min),
		vectorstore.Lte(field, *r.Max),
	}, nil
}
