// Package expr evaluates the small condition language used by job and step
// `if:` guards. Conditions are predicates over the execution context (event
// fields and the matrix assignment), not a scripting surface: the grammar
// covers equality comparisons, startsWith/contains, negation, and &&/||
// chaining, which is what workflow files of this shape actually use.
package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Scope supplies the values a condition can reference.
type Scope struct {
	EventName string
	Ref       string
	RefName   string
	RunNumber int
	Matrix    map[string]string
	RunnerOS  string
}

// Resolve maps a dotted reference to its value. Unknown references resolve
// to the empty string so conditions comparing against them fail closed.
func (s Scope) Resolve(key string) string {
	switch key {
	case "github.event_name":
		return s.EventName
	case "github.ref":
		return s.Ref
	case "github.ref_name":
		return s.RefName
	case "github.run_number":
		return strconv.Itoa(s.RunNumber)
	case "runner.os":
		return s.RunnerOS
	}
	if axis, ok := strings.CutPrefix(key, "matrix."); ok {
		return s.Matrix[axis]
	}
	return ""
}

var interpolation = regexp.MustCompile(`\$\{\{[^}]*\}\}`)

// Interpolate replaces ${{ ref }} occurrences with their scope value.
// Unknown references become empty strings, mirroring how conditions treat
// them.
func Interpolate(s string, scope Scope) string {
	if !strings.Contains(s, "${{") {
		return s
	}
	return interpolation.ReplaceAllStringFunc(s, func(m string) string {
		inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(m, "${{"), "}}"))
		return scope.Resolve(inner)
	})
}

// Eval evaluates a condition against the scope. An empty condition is true.
// Precedence is the conventional one: && binds tighter than ||. Parentheses
// are not supported.
func Eval(condition string, scope Scope) (bool, error) {
	condition = strings.TrimSpace(condition)
	condition = strings.TrimPrefix(condition, "${{")
	condition = strings.TrimSuffix(condition, "}}")
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true, nil
	}

	for _, disjunct := range strings.Split(condition, "||") {
		matched := true
		for _, conjunct := range strings.Split(disjunct, "&&") {
			ok, err := evalTerm(strings.TrimSpace(conjunct), scope)
			if err != nil {
				return false, err
			}
			if !ok {
				matched = false
				break
			}
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

func evalTerm(term string, scope Scope) (bool, error) {
	if term == "" {
		return false, fmt.Errorf("empty condition term")
	}

	if rest, ok := strings.CutPrefix(term, "!"); ok {
		inner, err := evalTerm(strings.TrimSpace(rest), scope)
		if err != nil {
			return false, err
		}
		return !inner, nil
	}

	if idx := strings.Index(term, "!="); idx != -1 {
		left, err := operand(term[:idx], scope)
		if err != nil {
			return false, err
		}
		right, err := operand(term[idx+2:], scope)
		if err != nil {
			return false, err
		}
		return left != right, nil
	}

	if idx := strings.Index(term, "=="); idx != -1 {
		left, err := operand(term[:idx], scope)
		if err != nil {
			return false, err
		}
		right, err := operand(term[idx+2:], scope)
		if err != nil {
			return false, err
		}
		return left == right, nil
	}

	if args, ok := functionArgs(term, "startsWith", scope); ok {
		return strings.HasPrefix(args[0], args[1]), nil
	}
	if args, ok := functionArgs(term, "endsWith", scope); ok {
		return strings.HasSuffix(args[0], args[1]), nil
	}
	if args, ok := functionArgs(term, "contains", scope); ok {
		return strings.Contains(args[0], args[1]), nil
	}
	if strings.Contains(term, "(") {
		return false, fmt.Errorf("unsupported function in condition %q", term)
	}

	switch term {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	// Bare reference: truthy when non-empty and not "false".
	value := scope.Resolve(term)
	return value != "" && value != "false", nil
}

func functionArgs(term, name string, scope Scope) ([2]string, bool) {
	rest, ok := strings.CutPrefix(term, name+"(")
	if !ok || !strings.HasSuffix(rest, ")") {
		return [2]string{}, false
	}
	inner := strings.TrimSuffix(rest, ")")
	parts := strings.SplitN(inner, ",", 2)
	if len(parts) != 2 {
		return [2]string{}, false
	}
	var args [2]string
	for i, part := range parts {
		value, err := operand(part, scope)
		if err != nil {
			return [2]string{}, false
		}
		args[i] = value
	}
	return args, true
}

func operand(raw string, scope Scope) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty operand")
	}
	if strings.HasPrefix(raw, "'") {
		if !strings.HasSuffix(raw, "'") || len(raw) < 2 {
			return "", fmt.Errorf("unterminated string literal %s", raw)
		}
		return raw[1 : len(raw)-1], nil
	}
	return scope.Resolve(raw), nil
}
