package catalog

import (
	"context"
	"time"

	"github.com/creastat/retrieval"
)

// Store provides read-only access to the relational course catalog
type Store interface {
	// ListCourses retrieves every published course
	ListCourses(ctx context.Context) ([]retrieval.Course, error)

	// ListPaths retrieves every learning path
	ListPaths(ctx context.Context) ([]retrieval.Path, error)

	// ListConcepts retrieves every concept
	ListConcepts(ctx context.Context) ([]retrieval.Concept, error)

	// GetStudentProfile retrieves a student profile by ID.
	// Returns nil if the profile does not exist (not an error).
	GetStudentProfile(ctx context.Context, studentID string) (*retrieval.StudentProfile, error)

	// Close closes the catalog client and releases resources
	Close() error
}

// CourseRow represents a course from the database
type CourseRow struct {
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
	AverageRating    *float64  `json:"average_rating,omitempty"`
	CompletionRate   *float64  `json:"completion_rate,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// PathRow represents a learning path from the database
type PathRow struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	Category            string    `json:"category"`
	CourseIDs           []string  `json:"course_ids"`
	SectionIDs          []string  `json:"section_ids"`
	ConceptIDs          []string  `json:"concept_ids"`
	TotalConcepts       int       `json:"total_concepts"`
	EstimatedHours      float64   `json:"estimated_hours"`
	Points              int       `json:"points"`
	PrerequisitePathIDs []string  `json:"prerequisite_path_ids"`
	RequiredSkillLevel  string    `json:"required_skill_level"`
	TargetAgeGroup      string    `json:"target_age_group"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ConceptRow represents a concept from the database
type ConceptRow struct {
	ID                     string    `json:"id"`
	Name                   string    `json:"name"`
	Description            string    `json:"description"`
	SectionID              string    `json:"section_id"`
	CourseID               string    `json:"course_id"`
	PathID                 string    `json:"path_id"`
	Difficulty             string    `json:"difficulty"`
	EstimatedMinutes       int       `json:"estimated_minutes"`
	KeyVocabulary          []string  `json:"key_vocabulary"`
	LearningObjectives     []string  `json:"learning_objectives"`
	ComponentTypes         []string  `json:"component_types"`
	ExerciseTypes          []string  `json:"exercise_types"`
	PrerequisiteConceptIDs []string  `json:"prerequisite_concept_ids"`
	InterestTags           []string  `json:"interest_tags"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// StudentProfileRow represents a student profile from the database
type StudentProfileRow struct {
	ID                  string             `json:"id"`
	Interests           []string           `json:"interests"`
	LifeCategoryWeights map[string]float64 `json:"life_category_weights"`
	GradeLevel          string             `json:"grade_level"`
}

// Course converts the row into the domain variant.
func (r CourseRow) Course() retrieval.Course {
	return retrieval.Course{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		Category:         r.Category,
		Difficulty:       r.Difficulty,
		EstimatedHours:   r.EstimatedHours,
		Points:           r.Points,
		TotalSections:    r.TotalSections,
		TotalConcepts:    r.TotalConcepts,
		EnrolledStudents: r.EnrolledStudents,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		Extras: retrieval.CourseExtras{
			AverageRating:  r.AverageRating,
			CompletionRate: r.CompletionRate,
		},
	}
}

// Path converts the row into the domain variant.
func (r PathRow) Path() retrieval.Path {
	return retrieval.Path{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Category:       r.Category,
		CourseIDs:      r.CourseIDs,
		SectionIDs:     r.SectionIDs,
		ConceptIDs:     r.ConceptIDs,
		TotalConcepts:  r.TotalConcepts,
		EstimatedHours: r.EstimatedHours,
		Points:         r.Points,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Extras: retrieval.PathExtras{
			PrerequisitePathIDs: r.PrerequisitePathIDs,
			RequiredSkillLevel:  r.RequiredSkillLevel,
			TargetAgeGroup:      r.TargetAgeGroup,
		},
	}
}

// Concept converts the row into the domain variant.
func (r ConceptRow) Concept() retrieval.Concept {
	return retrieval.Concept{
		ID:                 r.ID,
		Name:               r.Name,
		Description:        r.Description,
		SectionID:          r.SectionID,
		Difficulty:         r.Difficulty,
		EstimatedMinutes:   r.EstimatedMinutes,
		KeyVocabulary:      r.KeyVocabulary,
		LearningObjectives: r.LearningObjectives,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Extras: retrieval.ConceptExtras{
			CourseID:               r.CourseID,
			PathID:                 r.PathID,
			ComponentTypes:         r.ComponentTypes,
			ExerciseTypes:          r.ExerciseTypes,
			PrerequisiteConceptIDs: r.PrerequisiteConceptIDs,
			InterestTags:           r.InterestTags,
		},
	}
}

// Profile converts the row into a read-only StudentProfile.
func (r StudentProfileRow) Profile() *retrieval.StudentProfile {
	return &retrieval.StudentProfile{
		ID:              r.ID,
		Interests:       r.Interests,
		CategoryWeights: r.LifeCategoryWeights,
		GradeLevel:      r.GradeLevel,
	}
}
