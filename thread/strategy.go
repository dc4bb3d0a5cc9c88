package thread

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/creastat/retrieval"
)

// Strategy orders concept candidates into a learning sequence.
type Strategy interface {
	Order(candidates []ConceptCandidate) ([]ConceptCandidate, error)
}

const (
	StrategyPrerequisiteCount = "prerequisite-count"
	StrategyTopological       = "topological"
)

// ParseStrategy returns the named strategy. An empty name selects PrerequisiteCount.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyPrerequisiteCount:
		return PrerequisiteCount{}, nil
	case StrategyTopological:
		return Topological{}, nil
	default:
		return nil, retrieval.NewValidationError("strategy", fmt.Sprintf("unknown sequencing strategy %q", name))
	}
}

// PrerequisiteCount stable-sorts by ascending prerequisite count, then by
// descending relevance. It does not guarantee that prerequisites precede
// their dependents.
type PrerequisiteCount struct{}

// Order implements Strategy.
func (PrerequisiteCount) Order(candidates []ConceptCandidate) ([]ConceptCandidate, error) {
	ordered := slices.Clone(candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return before(ordered[i], ordered[j])
	})
	return ordered, nil
}

// Topological orders candidates so every prerequisite present in the set
// precedes its dependents. Among ready candidates the PrerequisiteCount keys
// decide, then input order. Prerequisites outside the set are ignored.
type Topological struct{}

// Order implements Strategy. A prerequisite cycle yields a SequencingError.
func (Topological) Order(candidates []ConceptCandidate) ([]ConceptCandidate, error) {
	index := make(map[string]int, len(candidates))
	for i, c := range candidates {
		index[c.ID] = i
	}

	indegree := make([]int, len(candidates))
	dependents := make([][]int, len(candidates))
	for i, c := range candidates {
		for _, p := range uniqueKnown(c.PrerequisiteIDs, index) {
			indegree[i]++
			dependents[index[p]] = append(dependents[index[p]], i)
		}
	}

	done := make([]bool, len(candidates))
	ordered := make([]ConceptCandidate, 0, len(candidates))
	for len(ordered) < len(candidates) {
		next := -1
		for i := range candidates {
			if done[i] || indegree[i] > 0 {
				continue
			}
			if next < 0 || before(candidates[i], candidates[next]) {
				next = i
			}
		}
		if next < 0 {
			return nil, &retrieval.SequencingError{Cycle: findCycle(candidates, index, done)}
		}

		done[next] = true
		ordered = append(ordered, candidates[next])
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}
	return ordered, nil
}

// before reports whether a sorts ahead of b under the prerequisite-count keys.
func before(a, b ConceptCandidate) bool {
	if len(a.PrerequisiteIDs) != len(b.PrerequisiteIDs) {
		return len(a.PrerequisiteIDs) < len(b.PrerequisiteIDs)
	}
	return a.RelevanceScore > b.RelevanceScore
}

// uniqueKnown returns the distinct prerequisites present in index. A self
// reference is kept and surfaces as a cycle.
func uniqueKnown(prereqs []string, index map[string]int) []string {
	var out []string
	seen := make(map[string]struct{}, len(prereqs))
	for _, p := range prereqs {
		if _, ok := index[p]; !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// findCycle walks prerequisite edges among the unplaced candidates until a
// node repeats and returns that loop in walk order.
func findCycle(candidates []ConceptCandidate, index map[string]int, done []bool) []string {
	start := -1
	for i := range candidates {
		if !done[i] {
			start = i
			break
		}
	}

	pos := make(map[int]int)
	var path []int
	for cur := start; cur >= 0; {
		if at, seen := pos[cur]; seen {
			cycle := make([]string, 0, len(path)-at)
			for _, i := range path[at:] {
				cycle = append(cycle, candidates[i].ID)
			}
			return cycle
		}
		pos[cur] = len(path)
		path = append(path, cur)

		next := -1
		for _, p := range candidates[cur].PrerequisiteIDs {
			if j, ok := index[p]; ok && !done[j] {
				next = j
				break
			}
		}
		cur = next
	}

	remaining := make([]string, 0, len(path))
	for _, i := range path {
		remaining = append(remaining, candidates[i].ID)
	}
	return remaining
}
