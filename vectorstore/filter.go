package vectorstore

import (
	"fmt"
	"strings"
)

// IDField is the pseudo metadata field addressing the record id.
const IDField = "id"

// Op is a filter predicate operator.
type Op string

const (
	OpIn     Op = "$in"
	OpGte    Op = "$gte"
	OpLte    Op = "$lte"
	OpNe     Op = "$ne"
	OpPrefix Op = "$prefix"
)

// Condition is a single predicate over one field.
type Condition struct {
	Field string
	Op    Op
	// Values holds the set for $in and the single operand for $ne and $prefix.
	Values []string
	// Number is the bound for $gte and $lte.
	Number float64
}

// Filter is the native predicate language of the index: a conjunction of conditions.
// The zero Filter matches everything.
type Filter struct {
	Must []Condition
}

// In returns a set-membership condition.
func In(field string, values ...string) Condition {
	return Condition{Field: field, Op: OpIn, Values: values}
}

// Gte returns an inclusive lower bound condition.
func Gte(field string, n float64) Condition {
	return Condition{Field: field, Op: OpGte, Number: n}
}

// Lte returns an inclusive upper bound condition.
func Lte(field string, n float64) Condition {
	return Condition{Field: field, Op: OpLte, Number: n}
}

// Ne returns a not-equal condition.
func Ne(field, value string) Condition {
	return Condition{Field: field, Op: OpNe, Values: []string{value}}
}

// HasPrefix returns a prefix-match condition.
func HasPrefix(field, prefix string) Condition {
	return Condition{Field: field, Op: OpPrefix, Values: []string{prefix}}
}

// And returns a filter with all the conditions of f and the given ones.
func (f Filter) And(conds ...Condition) Filter {
	must := make([]Condition, 0, len(f.Must)+len(conds))
	must = append(must, f.Must...)
	must = append(must, conds...)
	return Filter{Must: must}
}

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return len(f.Must) == 0
}

// Matches evaluates the filter against a record.
func (f Filter) Matches(id string, metadata map[string]any) bool {
	for _, c := range f.Must {
		if !c.Matches(id, metadata) {
			return false
		}
	}
	return true
}

// Matches evaluates one condition. A missing field fails every operator except $ne.
func (c Condition) Matches(id string, metadata map[string]any) bool {
	var value any
	var ok bool
	if c.Field == IDField {
		value, ok = id, true
	} else {
		value, ok = metadata[c.Field]
	}

	switch c.Op {
	case OpIn:
		if !ok {
			return false
		}
		for _, v := range stringValues(value) {
			for _, want := range c.Values {
				if v == want {
					return true
				}
			}
		}
		return false
	case OpNe:
		if !ok {
			return true
		}
		for _, v := range stringValues(value) {
			if len(c.Values) > 0 && v == c.Values[0] {
				return false
			}
		}
		return true
	case OpPrefix:
		s, isStr := value.(string)
		return ok && isStr && len(c.Values) > 0 && strings.HasPrefix(s, c.Values[0])
	case OpGte, OpLte:
		n, isNum := toFloat(value)
		if !ok || !isNum {
			return false
		}
		if c.Op == OpGte {
			return n >= c.Number
		}
		return n <= c.Number
	default:
		return false
	}
}

// Native renders the filter in the Pinecone-style map form, with prefix
// conditions expressed as anchored $regex terms and bounds of one field merged.
func (f Filter) Native() map[string]any {
	out := make(map[string]any, len(f.Must))
	for _, c := range f.Must {
		term, _ := out[c.Field].(map[string]any)
		if term == nil {
			term = map[string]any{}
			out[c.Field] = term
		}
		switch c.Op {
		case OpIn:
			term[string(OpIn)] = c.Values
		case OpNe:
			term[string(OpNe)] = c.Values[0]
		case OpPrefix:
			term["$regex"] = "^" + c.Values[0]
		case OpGte, OpLte:
			term[string(c.Op)] = c.Number
		}
	}
	return out
}

func (c Condition) String() string {
	switch c.Op {
	case OpGte, OpLte:
		return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Number)
	default:
		return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Values)
	}
}

func stringValues(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(val)}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
