// Package riskgroup combines independently evaluated sub-group flags into a
// compound flag.
package riskgroup

import (
	"errors"
	"fmt"
	"sort"
)

type Mode int

const (
	AnyOf Mode = iota
	AllOf
)

var (
	ErrNilEvaluator  = errors.New("evaluator has no function")
	ErrDuplicateName = errors.New("duplicate evaluator name")
	ErrNoEvaluators  = errors.New("aggregator has no evaluators")
)

type Evaluator[In any] struct {
	Name string
	Eval func(in In) bool
}

type Aggregator[In any] struct {
	mode       Mode
	evaluators []Evaluator[In]
}

func New[In any](mode Mode, evaluators ...Evaluator[In]) (*Aggregator[In], error) {
	if len(evaluators) == 0 {
		return nil, ErrNoEvaluators
	}
	seen := make(map[string]struct{}, len(evaluators))
	for _, e := range evaluators {
		if e.Eval == nil {
			return nil, fmt.Errorf("%s: %w", e.Name, ErrNilEvaluator)
		}
		if _, ok := seen[e.Name]; ok {
			return nil, fmt.Errorf("%s: %w", e.Name, ErrDuplicateName)
		}
		seen[e.Name] = struct{}{}
	}
	copied := make([]Evaluator[In], len(evaluators))
	copy(copied, evaluators)
	return &Aggregator[In]{mode: mode, evaluators: copied}, nil
}

type Result struct {
	Compound bool
	Flags    map[string]bool
}

// Names lists the evaluator names in sorted order.
func (r Result) Names() []string {
	names := make([]string, 0, len(r.Flags))
	for name := range r.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aggregate runs every evaluator, then combines. Individual flags are
// always reported even when the compound is decided early.
func (a *Aggregator[In]) Aggregate(in In) Result {
	res := Result{Flags: make(map[string]bool, len(a.evaluators))}
	res.Compound = a.mode == AllOf
	for _, e := range a.evaluators {
		v := e.Eval(in)
		res.Flags[e.Name] = v
		if a.mode == AllOf {
			res.Compound = res.Compound && v
		} else {
			res.Compound = res.Compound || v
		}
	}
	return res
}
