// Package thread assembles an ordered, prerequisite-aware curriculum of
// concepts for a single learning goal.
package thread

import (
	"fmt"

	"github.com/creastat/retrieval"
	"github.com/go-playground/validator/v10"
)

// CoreThreshold is the relevance at or above which a concept is core.
const CoreThreshold = 0.90

// ConceptCandidate is a relevance-scored concept produced by an upstream
// goal-to-concept mapping step.
type ConceptCandidate struct {
	ID                  string   `json:"id" validate:"required"`
	Name                string   `json:"name" validate:"required"`
	Subject             string   `json:"subject"`
	Description         string   `json:"description"`
	RelevanceHypothesis string   `json:"relevance_hypothesis,omitempty"`
	RelevanceScore      float64  `json:"relevance_score" validate:"gte=0,lte=1"`
	PrerequisiteIDs     []string `json:"prerequisite_ids"`
}

// Status is the learner-facing availability of a thread concept.
type Status string

const (
	StatusAvailable Status = "available"
	StatusPending   Status = "pending"
)

// Chunk is a content chunk retrieved for a concept.
type Chunk struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ThreadConcept is a candidate placed in a thread.
type ThreadConcept struct {
	ConceptCandidate
	SequenceOrder int     `json:"sequence_order"`
	IsCore        bool    `json:"is_core"`
	Status        Status  `json:"status"`
	HasContent    bool    `json:"has_content"`
	Chunks        []Chunk `json:"chunks"`
}

// Node is a visualization node for one thread concept.
type Node struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Subject    string  `json:"subject"`
	Relevance  float64 `json:"relevance"`
	Sequence   int     `json:"sequence"`
	HasContent bool    `json:"hasContent"`
}

// Edge points from a prerequisite to the concept that depends on it.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Visualization is the graph view of a thread.
type Visualization struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// ContentSummary counts retrieved content across the thread.
type ContentSummary struct {
	TotalChunks            int `json:"total_chunks"`
	ConceptsWithContent    int `json:"concepts_with_content"`
	ConceptsWithoutContent int `json:"concepts_without_content"`
}

// Thread is an immutable, ordered curriculum for one learning goal.
type Thread struct {
	Goal           string          `json:"goal"`
	Concepts       []ThreadConcept `json:"concepts"`
	EstimatedHours int             `json:"estimated_hours"`
	Visualization  Visualization   `json:"visualization_data"`
	ContentSummary ContentSummary  `json:"content_summary"`
}

// IDs returns the concept ids in sequence order.
func (t *Thread) IDs() []string {
	ids := make([]string, len(t.Concepts))
	for i, c := range t.Concepts {
		ids[i] = c.ID
	}
	return ids
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateCandidates checks every candidate and rejects duplicate ids.
func validateCandidates(candidates []ConceptCandidate) error {
	if len(candidates) == 0 {
		return retrieval.NewValidationError("candidates", "at least one concept is required")
	}

	seen := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		if err := validate.Struct(c); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
				fe := verrs[0]
				return retrieval.NewValidationError(
					fmt.Sprintf("candidates[%d].%s", i, fe.Field()),
					fmt.Sprintf("failed %q constraint", fe.Tag()))
			}
			return retrieval.NewValidationError(fmt.Sprintf("candidates[%d]", i), err.Error())
		}
		if _, dup := seen[c.ID]; dup {
			return retrieval.NewValidationError(fmt.Sprintf("candidates[%d].ID", i),
				fmt.Sprintf("duplicate concept id %q", c.ID))
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
