package matrix

import (
	"strings"

	"github.com/gantryci/gantry/internal/provider"
)

// Pair is one axis assignment within an expanded combination.
type Pair struct {
	Axis  string `json:"axis"`
	Value string `json:"value"`
}

// Assignment is one concrete matrix combination, ordered by axis
// declaration.
type Assignment []Pair

// Value returns the assigned value for an axis.
func (a Assignment) Value(axis string) (string, bool) {
	for _, pair := range a {
		if pair.Axis == axis {
			return pair.Value, true
		}
	}
	return "", false
}

// Suffix renders the assignment as a stable name suffix, e.g.
// "-ubuntu-latest-3.12". Empty assignments render as "".
func (a Assignment) Suffix() string {
	if len(a) == 0 {
		return ""
	}
	var b strings.Builder
	for _, pair := range a {
		b.WriteByte('-')
		b.WriteString(pair.Value)
	}
	return b.String()
}

// Map returns the assignment as an axis-to-value map.
func (a Assignment) Map() map[string]string {
	if len(a) == 0 {
		return nil
	}
	out := make(map[string]string, len(a))
	for _, pair := range a {
		out[pair.Axis] = pair.Value
	}
	return out
}

// Expand produces the full cross-product of the matrix axes. The result is
// deterministic: axes vary in declaration order with the last axis fastest,
// so derived context and artifact names are reproducible across runs. A
// matrix with no axes yields a single empty assignment.
func Expand(m provider.Matrix) []Assignment {
	if m.Empty() {
		return []Assignment{nil}
	}

	total := 1
	for _, axis := range m.Axes {
		if len(axis.Values) == 0 {
			return nil
		}
		total *= len(axis.Values)
	}

	result := make([]Assignment, 0, total)
	indices := make([]int, len(m.Axes))
	for {
		combo := make(Assignment, len(m.Axes))
		for i, axis := range m.Axes {
			combo[i] = Pair{Axis: axis.Name, Value: axis.Values[indices[i]]}
		}
		result = append(result, combo)

		// Advance the odometer, last axis fastest.
		i := len(indices) - 1
		for i >= 0 {
			indices[i]++
			if indices[i] < len(m.Axes[i].Values) {
				break
			}
			indices[i] = 0
			i--
		}
		if i < 0 {
			return result
		}
	}
}
