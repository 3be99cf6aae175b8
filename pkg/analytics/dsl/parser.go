package dsl

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrSyntax = errors.New("invalid query")

type Clause struct {
	Field    string
	Operator string
	Value    string
}

type Query struct {
	SelectFields []string
	Filters      []Clause
	Limit        int
}

var (
	selectRegex    = regexp.MustCompile(`(?i)^select\s+(.+?)(?:\s+where\s|\s+limit\s|$)`)
	whereRegex     = regexp.MustCompile(`(?i)\swhere\s+(.+?)(?:\s+limit\s|$)`)
	limitRegex     = regexp.MustCompile(`(?i)\slimit\s+(\d+)\s*$`)
	separatorRegex = regexp.MustCompile(`(?i)\s*,\s*|\s+and\s+`)
	filterRegex    = regexp.MustCompile(`^([a-zA-Z0-9_]+)\s*(!=|>=|<=|=|>|<)\s*(.+)$`)
	fieldRegex     = regexp.MustCompile(`^(\*|[a-zA-Z0-9_]+)$`)
)

// Parse reads `select f1, f2 where field op value, ... limit n`. Keywords
// are case-insensitive; field names are lowercased and values kept as
// written, minus surrounding quotes.
func Parse(input string) (Query, error) {
	input = strings.TrimSpace(input)
	selectMatch := selectRegex.FindStringSubmatch(input)
	if selectMatch == nil {
		return Query{}, fmt.Errorf("query must start with select: %w", ErrSyntax)
	}

	var query Query
	for _, field := range strings.Split(selectMatch[1], ",") {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		if !fieldRegex.MatchString(field) {
			return Query{}, fmt.Errorf("bad field %q: %w", field, ErrSyntax)
		}
		query.SelectFields = append(query.SelectFields, field)
	}
	if len(query.SelectFields) == 0 {
		return Query{}, fmt.Errorf("at least one field must be selected: %w", ErrSyntax)
	}

	if whereMatch := whereRegex.FindStringSubmatch(input); len(whereMatch) >= 2 {
		for _, part := range separatorRegex.Split(strings.TrimSpace(whereMatch[1]), -1) {
			match := filterRegex.FindStringSubmatch(strings.TrimSpace(part))
			if match == nil {
				return Query{}, fmt.Errorf("bad filter %q: %w", part, ErrSyntax)
			}
			query.Filters = append(query.Filters, Clause{
				Field:    strings.ToLower(match[1]),
				Operator: match[2],
				Value:    unquote(strings.TrimSpace(match[3])),
			})
		}
	}

	if limitMatch := limitRegex.FindStringSubmatch(input); len(limitMatch) >= 2 {
		limit, err := strconv.Atoi(limitMatch[1])
		if err != nil {
			return Query{}, fmt.Errorf("bad limit: %w", ErrSyntax)
		}
		query.Limit = limit
	}

	return query, nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '\'' || first == '"') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// SelectsAll reports a `select *` query.
func (q Query) SelectsAll() bool {
	for _, f := range q.SelectFields {
		if f == "*" {
			return true
		}
	}
	return false
}

// Matches reports whether values satisfy every clause.
func (q Query) Matches(values map[string]interface{}) bool {
	for _, c := range q.Filters {
		if !c.Matches(values) {
			return false
		}
	}
	return true
}

// Project keeps the selected fields; patient_id is always kept.
func (q Query) Project(values map[string]interface{}) map[string]interface{} {
	if q.SelectsAll() {
		return values
	}
	out := make(map[string]interface{}, len(q.SelectFields)+1)
	if pid, ok := values["patient_id"]; ok {
		out["patient_id"] = pid
	}
	for _, f := range q.SelectFields {
		out[f] = values[f]
	}
	return out
}
