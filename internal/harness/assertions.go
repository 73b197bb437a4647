package harness

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/tmorrow/vigil/internal/eventlog"
)

// AssertionError is returned when an expectation does not hold.
// It includes expected and actual renderings for diagnostics.
type AssertionError struct {
	Subject  string
	Kind     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: (%s, %s)\n", e.Subject, e.Kind)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// evaluateExpect checks one expectation against the log's observed state.
func evaluateExpect(l *eventlog.Log, e *ExpectClause) error {
	if e.MinGeneration > 0 {
		gen := l.Generation(e.Subject, e.Kind)
		if gen < e.MinGeneration {
			return &AssertionError{
				Subject:  e.Subject,
				Kind:     e.Kind,
				Expected: fmt.Sprintf("generation >= %d", e.MinGeneration),
				Actual:   fmt.Sprintf("generation %d", gen),
			}
		}
	}

	if e.Equals == nil && e.Near == nil {
		return nil
	}

	actual, ok := l.Latest(e.Subject, e.Kind)
	if !ok {
		return &AssertionError{
			Subject:  e.Subject,
			Kind:     e.Kind,
			Expected: expectedString(e),
			Actual:   "no value recorded",
		}
	}

	if e.Near != nil {
		actualF, ok := toFloat(actual)
		if !ok {
			return &AssertionError{
				Subject:  e.Subject,
				Kind:     e.Kind,
				Expected: expectedString(e),
				Actual:   fmt.Sprintf("non-numeric value %v (%T)", actual, actual),
			}
		}
		if !NearlyEqual(*e.Near, actualF, e.Epsilon, e.Relative) {
			return &AssertionError{
				Subject:  e.Subject,
				Kind:     e.Kind,
				Expected: expectedString(e),
				Actual:   fmt.Sprintf("%v (delta %g)", actualF, math.Abs(actualF-*e.Near)),
			}
		}
		return nil
	}

	if !looselyEqual(e.Equals, actual) {
		return &AssertionError{
			Subject:  e.Subject,
			Kind:     e.Kind,
			Expected: expectedString(e),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

func expectedString(e *ExpectClause) string {
	switch {
	case e.Near != nil && e.Relative:
		return fmt.Sprintf("within relative epsilon %g of %v", e.Epsilon, *e.Near)
	case e.Near != nil:
		return fmt.Sprintf("within epsilon %g of %v", e.Epsilon, *e.Near)
	case e.Equals != nil:
		return fmt.Sprintf("%v", e.Equals)
	default:
		return fmt.Sprintf("generation >= %d", e.MinGeneration)
	}
}

// NearlyEqual reports whether actual is within epsilon of expected.
// With relative set, epsilon scales by the larger magnitude of the two
// values; otherwise the bound is absolute.
func NearlyEqual(expected, actual, epsilon float64, relative bool) bool {
	diff := math.Abs(expected - actual)
	if relative {
		scale := math.Max(math.Abs(expected), math.Abs(actual))
		if scale == 0 {
			return diff == 0
		}
		return diff <= epsilon*scale
	}
	return diff <= epsilon
}

// looselyEqual compares an expected value from YAML against an observed
// value. Numbers compare by value regardless of Go type (YAML yields
// int where a callback may deliver int64 or float64); everything else
// compares with reflect.DeepEqual.
func looselyEqual(expected, actual any) bool {
	ef, eok := toFloat(expected)
	af, aok := toFloat(actual)
	if eok && aok {
		return ef == af
	}
	return reflect.DeepEqual(expected, actual)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
