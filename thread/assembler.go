package thread

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// hoursPerConcept is the study time estimate for one thread concept.
const hoursPerConcept = 2.5

// ErrInvalidTransition is returned when an assembly step runs out of order.
var ErrInvalidTransition = errors.New("invalid thread state transition")

// State is the lifecycle position of a goal's assembly.
type State int

const (
	StateMapped State = iota + 1
	StateSequenced
	StateAssembled
)

func (s State) String() string {
	switch s {
	case StateMapped:
		return "mapped"
	case StateSequenced:
		return "sequenced"
	case StateAssembled:
		return "assembled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Assembly tracks one goal through Mapped, Sequenced and Assembled.
type Assembly struct {
	goal       string
	state      State
	candidates []ConceptCandidate
	chunks     map[string][]Chunk
	ordered    []ConceptCandidate
}

// Map validates candidates and starts an assembly in the Mapped state.
func Map(goal string, candidates []ConceptCandidate) (*Assembly, error) {
	if err := validateCandidates(candidates); err != nil {
		return nil, err
	}
	cloned := make([]ConceptCandidate, len(candidates))
	for i, c := range candidates {
		c.PrerequisiteIDs = slices.Clone(c.PrerequisiteIDs)
		cloned[i] = c
	}
	return &Assembly{
		goal:       goal,
		state:      StateMapped,
		candidates: cloned,
		chunks:     make(map[string][]Chunk),
	}, nil
}

// State returns the current lifecycle state.
func (a *Assembly) State() State { return a.state }

// Candidates returns a copy of the mapped candidates in input order.
func (a *Assembly) Candidates() []ConceptCandidate { return slices.Clone(a.candidates) }

// AttachContent records retrieved chunks for a concept. Only valid while Mapped.
func (a *Assembly) AttachContent(conceptID string, chunks []Chunk) error {
	if a.state != StateMapped {
		return fmt.Errorf("%w: attach content in state %s", ErrInvalidTransition, a.state)
	}
	a.chunks[conceptID] = slices.Clone(chunks)
	return nil
}

// Sequence orders the candidates with strategy and moves to Sequenced.
func (a *Assembly) Sequence(strategy Strategy) error {
	if a.state != StateMapped {
		return fmt.Errorf("%w: sequence in state %s", ErrInvalidTransition, a.state)
	}
	if strategy == nil {
		strategy = PrerequisiteCount{}
	}
	ordered, err := strategy.Order(a.candidates)
	if err != nil {
		return err
	}
	a.ordered = ordered
	a.state = StateSequenced
	return nil
}

// Assemble derives sequence order, core flags, statuses and the thread
// extras, and moves to the terminal Assembled state.
func (a *Assembly) Assemble() (*Thread, error) {
	if a.state != StateSequenced {
		return nil, fmt.Errorf("%w: assemble in state %s", ErrInvalidTransition, a.state)
	}

	t := &Thread{
		Goal:           a.goal,
		Concepts:       make([]ThreadConcept, len(a.ordered)),
		EstimatedHours: int(math.Floor(float64(len(a.ordered)) * hoursPerConcept)),
		Visualization: Visualization{
			Nodes: make([]Node, len(a.ordered)),
			Edges: []Edge{},
		},
	}

	present := make(map[string]struct{}, len(a.ordered))
	for _, c := range a.ordered {
		present[c.ID] = struct{}{}
	}

	for i, c := range a.ordered {
		chunks := a.chunks[c.ID]
		if chunks == nil {
			chunks = []Chunk{}
		}
		status := StatusPending
		if i == 0 {
			status = StatusAvailable
		}

		tc := ThreadConcept{
			ConceptCandidate: c,
			SequenceOrder:    i + 1,
			IsCore:           c.RelevanceScore >= CoreThreshold,
			Status:           status,
			HasContent:       len(chunks) > 0,
			Chunks:           chunks,
		}
		t.Concepts[i] = tc

		t.Visualization.Nodes[i] = Node{
			ID:         c.ID,
			Name:       c.Name,
			Subject:    c.Subject,
			Relevance:  c.RelevanceScore,
			Sequence:   tc.SequenceOrder,
			HasContent: tc.HasContent,
		}
		for _, p := range c.PrerequisiteIDs {
			if _, ok := present[p]; ok {
				t.Visualization.Edges = append(t.Visualization.Edges, Edge{From: p, To: c.ID})
			}
		}

		t.ContentSummary.TotalChunks += len(chunks)
		if tc.HasContent {
			t.ContentSummary.ConceptsWithContent++
		} else {
			t.ContentSummary.ConceptsWithoutContent++
		}
	}

	a.state = StateAssembled
	return t, nil
}

// Assembler turns a candidate list into a thread in one step.
type Assembler struct {
	strategy Strategy
}

// NewAssembler creates an Assembler. A nil strategy selects PrerequisiteCount.
func NewAssembler(strategy Strategy) *Assembler {
	if strategy == nil {
		strategy = PrerequisiteCount{}
	}
	return &Assembler{strategy: strategy}
}

// Assemble maps, sequences and assembles candidates for goal. The result is
// deterministic for a given input order.
func (as *Assembler) Assemble(goal string, candidates []ConceptCandidate) (*Thread, error) {
	a, err := Map(goal, candidates)
	if err != nil {
		return nil, err
	}
	if err := a.Sequence(as.strategy); err != nil {
		return nil, err
	}
	return a.Assemble()
}
