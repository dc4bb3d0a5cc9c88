package vectorstore_test

import (
	"testing"

	"github.com/creastat/retrieval/vectorstore"
	"github.com/stretchr/testify/assert"
)

func TestCondition_Matches(t *testing.T) {
	meta := map[string]any{
		"category":       "science",
		"keywords":       []string{"atoms", "energy"},
		"estimatedHours": 7.5,
		"points":         int64(100),
	}

	tests := []struct {
		name string
		cond vectorstore.Condition
		want bool
	}{
		{"in scalar hit", vectorstore.In("category", "art", "science"), true},
		{"in scalar miss", vectorstore.In("category", "art"), false},
		{"in list hit", vectorstore.In("keywords", "energy"), true},
		{"in missing field", vectorstore.In("difficulty", "Beginner"), false},
		{"gte hit", vectorstore.Gte("estimatedHours", 7.5), true},
		{"gte miss", vectorstore.Gte("estimatedHours", 8), false},
		{"lte int", vectorstore.Lte("points", 100), true},
		{"gte non numeric", vectorstore.Gte("category", 1), false},
		{"ne id", vectorstore.Ne(vectorstore.IDField, "course_1"), false},
		{"ne other id", vectorstore.Ne(vectorstore.IDField, "course_2"), true},
		{"ne missing field", vectorstore.Ne("difficulty", "x"), true},
		{"prefix id", vectorstore.HasPrefix(vectorstore.IDField, "course_"), true},
		{"prefix miss", vectorstore.HasPrefix(vectorstore.IDField, "path_"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Matches("course_1", meta))
		})
	}
}

func TestFilter_EmptyMatchesEverything(t *testing.T) {
	var f vectorstore.Filter
	assert.True(t, f.IsEmpty())
	assert.True(t, f.Matches("anything", nil))
}

func TestFilter_Native(t *testing.T) {
	f := vectorstore.Filter{}.And(
		vectorstore.HasPrefix(vectorstore.IDField, "path_"),
		vectorstore.In("category", "A", "B"),
		vectorstore.Gte("estimatedHours", 5),
		vectorstore.Lte("estimatedHours", 10),
	)

	assert.Equal(t, map[string]any{
		"id":             map[string]any{"$regex": "^path_"},
		"category":       map[string]any{"$in": []string{"A", "B"}},
		"estimatedHours": map[string]any{"$gte": 5.0, "$lte": 10.0},
	}, f.Native())
}

func TestFilter_AndDoesNotAlias(t *testing.T) {
	base := vectorstore.Filter{}.And(vectorstore.In("a", "1"))
	left := base.And(vectorstore.In("b", "2"))
	right := base.And(vectorstore.In("c", "3"))

	assert.Len(t, base.Must, 1)
	assert.Equal(t, "b", left.Must[1].Field)
	assert.Equal(t, "c", right.Must[1].Field)
}
