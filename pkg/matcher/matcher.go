// Package matcher selects one event from a source by code membership and
// date window.
package matcher

import (
	"errors"
	"fmt"

	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
	"github.com/synaptica-ai/ehrextract/pkg/terminology"
)

var ErrEmptyCodeSet = errors.New("matcher requires a non-empty code set")

type Selection int

const (
	First Selection = iota
	Last
)

func (s Selection) String() string {
	if s == Last {
		return "last"
	}
	return "first"
}

// Result describes the selected event. Index is -1 when nothing matched.
type Result struct {
	Found bool
	Index int
	Date  temporal.Date
	Code  string
}

var none = Result{Index: -1}

// Filter is an extra per-event predicate evaluated after code and date.
type Filter func(src events.Source, i int) bool

type Option func(*Matcher)

func WithScope(scope events.Scope) Option {
	return func(m *Matcher) {
		m.scope = scope
	}
}

func Where(filter Filter) Option {
	return func(m *Matcher) {
		m.filter = filter
	}
}

// Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	codes  *terminology.CodeSet
	scope  events.Scope
	filter Filter
}

func New(codes *terminology.CodeSet, opts ...Option) (*Matcher, error) {
	if codes.Len() == 0 {
		name := "<nil>"
		if codes != nil {
			name = codes.Name()
		}
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyCodeSet)
	}
	m := &Matcher{codes: codes}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Unfiltered matches every event of a source regardless of codes.
func Unfiltered(opts ...Option) *Matcher {
	m := &Matcher{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Matcher) accepts(src events.Source, i int, window temporal.Window) (string, bool) {
	if !window.Contains(src.Date(i)) {
		return "", false
	}
	code := ""
	if m.codes != nil {
		var ok bool
		code, ok = m.codes.ContainsAny(src.Codes(i, m.scope))
		if !ok {
			return "", false
		}
	}
	if m.filter != nil && !m.filter(src, i) {
		return "", false
	}
	return code, true
}

// Match returns the earliest (First) or latest (Last) matching event. Ties
// resolve as a stable sort by date would: First keeps the lowest index,
// Last the highest.
func (m *Matcher) Match(src events.Source, window temporal.Window, sel Selection) Result {
	if src == nil {
		return none
	}
	best := none
	for i := 0; i < src.Len(); i++ {
		code, ok := m.accepts(src, i, window)
		if !ok {
			continue
		}
		date := src.Date(i)
		switch {
		case !best.Found,
			sel == First && date.Before(best.Date),
			sel == Last && date.OnOrAfter(best.Date):
			best = Result{Found: true, Index: i, Date: date, Code: code}
		}
	}
	return best
}

func (m *Matcher) First(src events.Source, window temporal.Window) Result {
	return m.Match(src, window, First)
}

func (m *Matcher) Last(src events.Source, window temporal.Window) Result {
	return m.Match(src, window, Last)
}

func (m *Matcher) Exists(src events.Source, window temporal.Window) bool {
	if src == nil {
		return false
	}
	for i := 0; i < src.Len(); i++ {
		if _, ok := m.accepts(src, i, window); ok {
			return true
		}
	}
	return false
}

func (m *Matcher) Count(src events.Source, window temporal.Window) int {
	if src == nil {
		return 0
	}
	n := 0
	for i := 0; i < src.Len(); i++ {
		if _, ok := m.accepts(src, i, window); ok {
			n++
		}
	}
	return n
}

// Codes returns the code set the matcher was built with, nil for Unfiltered.
func (m *Matcher) Codes() *terminology.CodeSet { return m.codes }
