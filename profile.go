package retrieval

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

const (
	defaultGradeLevel = 9
	// personalizedInterests is how many top interests feed the personalized query.
	personalizedInterests = 5
	// personalizedCategories is how many top categories feed the personalized query.
	personalizedCategories = 2
)

// Difficulty levels used by personalization filters.
const (
	DifficultyBeginner     = "Beginner"
	DifficultyIntermediate = "Intermediate"
	DifficultyAdvanced     = "Advanced"
)

// StudentProfile is the read-only personalization input for a student.
type StudentProfile struct {
	ID string `json:"id"`
	// Interests are ordered by descending strength.
	Interests []string `json:"interests"`
	// CategoryWeights maps a life category to its weight.
	CategoryWeights map[string]float64 `json:"category_weights"`
	// GradeLevel is free text such as "10" or "7th"; unparseable values mean grade 9.
	GradeLevel string `json:"grade_level"`
}

// TopInterests returns at most n interests in strength order.
func (p StudentProfile) TopInterests(n int) []string {
	if n > len(p.Interests) {
		n = len(p.Interests)
	}
	return append([]string(nil), p.Interests[:n]...)
}

// CategoriesByWeight returns every category ordered by descending weight.
// Equal weights are ordered by name.
func (p StudentProfile) CategoriesByWeight() []string {
	cats := make([]string, 0, len(p.CategoryWeights))
	for c := range p.CategoryWeights {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool {
		wi, wj := p.CategoryWeights[cats[i]], p.CategoryWeights[cats[j]]
		if wi != wj {
			return wi > wj
		}
		return cats[i] < cats[j]
	})
	return cats
}

// Grade returns the numeric grade level, parsed from the leading digits of
// GradeLevel. It defaults to 9.
func (p StudentProfile) Grade() int {
	s := strings.TrimSpace(p.GradeLevel)
	end := 0
	for end < len(s) && unicode.IsDigit(rune(s[end])) {
		end++
	}
	if end == 0 {
		return defaultGradeLevel
	}
	g, err := strconv.Atoi(s[:end])
	if err != nil {
		return defaultGradeLevel
	}
	return g
}

// Difficulties returns the difficulty set appropriate for the profile's grade.
func (p StudentProfile) Difficulties() []string {
	switch g := p.Grade(); {
	case g <= 8:
		return []string{DifficultyBeginner}
	case g <= 10:
		return []string{DifficultyBeginner, DifficultyIntermediate}
	default:
		return []string{DifficultyIntermediate, DifficultyAdvanced}
	}
}

// PersonalizedQuery builds the synthetic query text for recommendations.
func (p StudentProfile) PersonalizedQuery() string {
	cats := p.CategoriesByWeight()
	if len(cats) > personalizedCategories {
		cats = cats[:personalizedCategories]
	}
	return fmt.Sprintf("Educational content for students interested in %s, focusing on %s development",
		strings.Join(p.TopInterests(personalizedInterests), ", "), strings.Join(cats, " and "))
}
