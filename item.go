package retrieval

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies one of the item variants stored in the shared index namespace.
type Kind string

const (
	KindCourse  Kind = "course"
	KindPath    Kind = "path"
	KindConcept Kind = "concept"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindCourse, KindPath, KindConcept}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", NewValidationError("kind", fmt.Sprintf("unknown kind %q", s))
}

// Prefix returns the id prefix that scopes this kind inside a shared namespace.
func (k Kind) Prefix() string {
	return string(k) + "_"
}

// ID returns the namespaced id for a raw identifier. The prefix is always
// added, so distinct raw ids never share an index id.
func (k Kind) ID(raw string) string {
	return k.Prefix() + raw
}

// Resolve maps a caller-supplied id to an index id. Ids that already carry
// the prefix, such as ids taken from search results, are used as is.
func (k Kind) Resolve(id string) string {
	if strings.HasPrefix(id, k.Prefix()) {
		return id
	}
	return k.ID(id)
}

// KindOf returns the kind encoded in a namespaced id.
func KindOf(id string) (Kind, bool) {
	for _, k := range Kinds {
		if strings.HasPrefix(id, k.Prefix()) {
			return k, true
		}
	}
	return "", false
}

// Item is the tagged variant over Course, Path and Concept. Every variant has a
// required core field set and an explicit extras sub-record.
type Item interface {
	Kind() Kind
	// IndexID is the kind-prefixed id used in the vector index.
	IndexID() string
	// EmbeddingText is the text embedded for this item.
	EmbeddingText() string
	// KeywordText is the text keyword extraction runs over.
	KeywordText() string
	// Metadata returns the scalar and string-list attributes stored alongside the vector.
	Metadata() map[string]any
}

// Course is a catalog course.
type Course struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Difficulty       string    `json:"difficulty"`
	EstimatedHours   float64   `json:"estimated_hours"`
	Points           int       `json:"points"`
	TotalSections    int       `json:"total_sections"`
	TotalConcepts    int       `json:"total_concepts"`
	EnrolledStudents int       `json:"enrolled_students"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Extras CourseExtras `json:"extras"`
}

// CourseExtras holds course attributes that upstream schemas do not always populate.
type CourseExtras struct {
	AverageRating  *float64 `json:"average_rating,omitempty"`
	CompletionRate *float64 `json:"completion_rate,omitempty"`
}

func (c *Course) Kind() Kind      { return KindCourse }
func (c *Course) IndexID() string { return KindCourse.ID(c.ID) }

func (c *Course) EmbeddingText() string {
	return fmt.Sprintf("%s. %s. Category: %s. Difficulty: %s.", c.Title, c.Description, c.Category, c.Difficulty)
}

func (c *Course) KeywordText() string { return c.Title + " " + c.Description }

func (c *Course) Metadata() map[string]any {
	m := map[string]any{
		"kind":             string(KindCourse),
		"title":            c.Title,
		"description":      c.Description,
		"category":         c.Category,
		"difficulty":       c.Difficulty,
		"estimatedHours":   c.EstimatedHours,
		"points":           c.Points,
		"totalSections":    c.TotalSections,
		"totalConcepts":    c.TotalConcepts,
		"enrolledStudents": c.EnrolledStudents,
	}
	if c.Extras.AverageRating != nil {
		m["averageRating"] = *c.Extras.AverageRating
	}
	if c.Extras.CompletionRate != nil {
		m["completionRate"] = *c.Extras.CompletionRate
	}
	setTimestamps(m, c.CreatedAt, c.UpdatedAt)
	return m
}

// Path is a learning path made of courses, sections and concepts.
type Path struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	CourseIDs      []string  `json:"course_ids"`
	SectionIDs     []string  `json:"section_ids"`
	ConceptIDs     []string  `json:"concept_ids"`
	TotalConcepts  int       `json:"total_concepts"`
	EstimatedHours float64   `json:"estimated_hours"`
	Points         int       `json:"points"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Extras PathExtras `json:"extras"`
}

// PathExtras holds optional learning path attributes.
type PathExtras struct {
	PrerequisitePathIDs []string `json:"prerequisite_path_ids,omitempty"`
	RequiredSkillLevel  string   `json:"required_skill_level,omitempty"`
	TargetAgeGroup      string   `json:"target_age_group,omitempty"`
}

func (p *Path) Kind() Kind      { return KindPath }
func (p *Path) IndexID() string { return KindPath.ID(p.ID) }

func (p *Path) EmbeddingText() string {
	return fmt.Sprintf("%s. %s. Category: %s.", p.Title, p.Description, p.Category)
}

func (p *Path) KeywordText() string { return p.Title + " " + p.Description }

func (p *Path) Metadata() map[string]any {
	m := map[string]any{
		"kind":           string(KindPath),
		"title":          p.Title,
		"description":    p.Description,
		"category":       p.Category,
		"courseIds":      nonNil(p.CourseIDs),
		"sectionIds":     nonNil(p.SectionIDs),
		"conceptIds":     nonNil(p.ConceptIDs),
		"totalConcepts":  p.TotalConcepts,
		"estimatedHours": p.EstimatedHours,
		"points":         p.Points,
	}
	if len(p.Extras.PrerequisitePathIDs) > 0 {
		m["prerequisitePathIds"] = p.Extras.PrerequisitePathIDs
	}
	if p.Extras.RequiredSkillLevel != "" {
		m["requiredSkillLevel"] = p.Extras.RequiredSkillLevel
	}
	if p.Extras.TargetAgeGroup != "" {
		m["targetAgeGroup"] = p.Extras.TargetAgeGroup
	}
	setTimestamps(m, p.CreatedAt, p.UpdatedAt)
	return m
}

// Concept is a single teachable concept inside a course section.
type Concept struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	SectionID          string    `json:"section_id"`
	Difficulty         string    `json:"difficulty"`
	EstimatedMinutes   int       `json:"estimated_minutes"`
	KeyVocabulary      []string  `json:"key_vocabulary"`
	LearningObjectives []string  `json:"learning_objectives"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	Extras ConceptExtras `json:"extras"`
}

// ConceptExtras holds optional concept attributes.
type ConceptExtras struct {
	CourseID               string   `json:"course_id,omitempty"`
	PathID                 string   `json:"path_id,omitempty"`
	ComponentTypes         []string `json:"component_types,omitempty"`
	ExerciseTypes          []string `json:"exercise_types,omitempty"`
	PrerequisiteConceptIDs []string `json:"prerequisite_concept_ids,omitempty"`
	InterestTags           []string `json:"interest_tags,omitempty"`
}

func (c *Concept) Kind() Kind      { return KindConcept }
func (c *Concept) IndexID() string { return KindConcept.ID(c.ID) }

func (c *Concept) EmbeddingText() string {
	return fmt.Sprintf("%s. %s. Learning objectives: %s. Key concepts: %s.",
		c.Name, c.Description, strings.Join(c.LearningObjectives, ". "), strings.Join(c.KeyVocabulary, ", "))
}

func (c *Concept) KeywordText() string { return c.Name + " " + c.Description }

func (c *Concept) Metadata() map[string]any {
	m := map[string]any{
		"kind":                   string(KindConcept),
		"title":                  c.Name,
		"description":            c.Description,
		"sectionId":              c.SectionID,
		"courseId":               c.Extras.CourseID,
		"pathId":                 c.Extras.PathID,
		"componentTypes":         nonNil(c.Extras.ComponentTypes),
		"exerciseTypes":          nonNil(c.Extras.ExerciseTypes),
		"contentDuration":        c.EstimatedMinutes,
		"difficulty":             c.Difficulty,
		"keyVocabulary":          nonNil(c.KeyVocabulary),
		"learningObjectives":     nonNil(c.LearningObjectives),
		"prerequisiteConceptIds": nonNil(c.Extras.PrerequisiteConceptIDs),
		"interestTags":           nonNil(c.Extras.InterestTags),
	}
	setTimestamps(m, c.CreatedAt, c.UpdatedAt)
	return m
}

// setTimestamps records created and updated as unix milliseconds. Zero times
// are omitted so re-upserting an unchanged row writes identical metadata.
func setTimestamps(m map[string]any, created, updated time.Time) {
	if !created.IsZero() {
		m["createdAt"] = created.UnixMilli()
	}
	if !updated.IsZero() {
		m["updatedAt"] = updated.UnixMilli()
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var (
	_ Item = (*Course)(nil)
	_ Item = (*Path)(nil)
	_ Item = (*Concept)(nil)
)
