package dsl

import (
	"strconv"
	"strings"

	"github.com/synaptica-ai/ehrextract/pkg/temporal"
)

// Matches compares the clause against values[c.Field]. Dates compare as
// dates, numbers as numbers, booleans by equality and other strings
// case-insensitively. A null or missing value never matches.
func (c Clause) Matches(values map[string]interface{}) bool {
	v, ok := values[c.Field]
	if !ok || v == nil {
		return false
	}
	switch actual := v.(type) {
	case bool:
		want, err := strconv.ParseBool(c.Value)
		if err != nil {
			return false
		}
		return equality(c.Operator, actual == want)
	case string:
		if d, ok := parseDate(actual); ok {
			if want, ok := parseDate(c.Value); ok {
				return order(c.Operator, compareDates(d, want))
			}
		}
		if c.Operator == "=" || c.Operator == "!=" {
			return equality(c.Operator, strings.EqualFold(actual, c.Value))
		}
		return order(c.Operator, strings.Compare(actual, c.Value))
	default:
		actualNum, ok := number(v)
		if !ok {
			return false
		}
		want, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return false
		}
		switch {
		case actualNum < want:
			return order(c.Operator, -1)
		case actualNum > want:
			return order(c.Operator, 1)
		default:
			return order(c.Operator, 0)
		}
	}
}

func equality(op string, equal bool) bool {
	switch op {
	case "=":
		return equal
	case "!=":
		return !equal
	default:
		return false
	}
}

func order(op string, cmp int) bool {
	switch op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	case ">=":
		return cmp >= 0
	case "<=":
		return cmp <= 0
	default:
		return false
	}
}

func parseDate(s string) (temporal.Date, bool) {
	if len(s) != len(temporal.Layout) {
		return temporal.Null, false
	}
	d, err := temporal.Parse(s)
	if err != nil || d.IsNull() {
		return temporal.Null, false
	}
	return d, true
}

func compareDates(a, b temporal.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
