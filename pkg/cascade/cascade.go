// Package cascade evaluates ordered when/then rule lists into one label.
package cascade

import (
	"errors"
	"fmt"
)

var (
	ErrNoRules       = errors.New("cascade has no rules")
	ErrNoDefault     = errors.New("cascade has no otherwise label")
	ErrNilPredicate  = errors.New("rule has no predicate")
	ErrDuplicateRule = errors.New("duplicate rule name")
)

// OtherwiseRule is the rule name Explain reports when no predicate fired.
const OtherwiseRule = "otherwise"

type Predicate[In any] func(in In) bool

type rule[In, Out any] struct {
	name  string
	pred  Predicate[In]
	label Out
}

// Builder collects rules in declaration order.
type Builder[In, Out any] struct {
	name       string
	rules      []rule[In, Out]
	fallback   Out
	hasDefault bool
}

func Define[In, Out any](name string) *Builder[In, Out] {
	return &Builder[In, Out]{name: name}
}

func (b *Builder[In, Out]) When(name string, pred Predicate[In], label Out) *Builder[In, Out] {
	b.rules = append(b.rules, rule[In, Out]{name: name, pred: pred, label: label})
	return b
}

func (b *Builder[In, Out]) Otherwise(label Out) *Builder[In, Out] {
	b.fallback = label
	b.hasDefault = true
	return b
}

func (b *Builder[In, Out]) Build() (*Cascade[In, Out], error) {
	if len(b.rules) == 0 {
		return nil, fmt.Errorf("cascade %s: %w", b.name, ErrNoRules)
	}
	if !b.hasDefault {
		return nil, fmt.Errorf("cascade %s: %w", b.name, ErrNoDefault)
	}
	seen := make(map[string]struct{}, len(b.rules))
	for i, r := range b.rules {
		if r.name == "" {
			return nil, fmt.Errorf("cascade %s: rule %d has no name", b.name, i)
		}
		if r.pred == nil {
			return nil, fmt.Errorf("cascade %s: rule %s: %w", b.name, r.name, ErrNilPredicate)
		}
		if _, ok := seen[r.name]; ok {
			return nil, fmt.Errorf("cascade %s: rule %s: %w", b.name, r.name, ErrDuplicateRule)
		}
		seen[r.name] = struct{}{}
	}
	rules := make([]rule[In, Out], len(b.rules))
	copy(rules, b.rules)
	return &Cascade[In, Out]{name: b.name, rules: rules, fallback: b.fallback}, nil
}

// MustBuild panics on a configuration error. Use it for package-level
// cascades whose rules are fixed at compile time.
func (b *Builder[In, Out]) MustBuild() *Cascade[In, Out] {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

// Cascade is immutable and safe for concurrent use.
type Cascade[In, Out any] struct {
	name     string
	rules    []rule[In, Out]
	fallback Out
}

func (c *Cascade[In, Out]) Name() string { return c.name }

// Classify returns the label of the first rule whose predicate holds.
// Later rules are not evaluated once one fires.
func (c *Cascade[In, Out]) Classify(in In) Out {
	out, _ := c.Explain(in)
	return out
}

// Explain is Classify plus the name of the rule that fired.
func (c *Cascade[In, Out]) Explain(in In) (Out, string) {
	for _, r := range c.rules {
		if r.pred(in) {
			return r.label, r.name
		}
	}
	return c.fallback, OtherwiseRule
}

// Rules lists rule names in evaluation order.
func (c *Cascade[In, Out]) Rules() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.name
	}
	return names
}
