package terminology

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyCodeSet  = errors.New("code set has no codes")
	ErrDuplicateCode = errors.New("duplicate code in code set")
	ErrUnknownSet    = errors.New("unknown code set")
)

// CodeSet is an immutable set of clinical codes, optionally mapped to
// categories. Codes without a category map to "".
type CodeSet struct {
	name       string
	codes      map[string]string
	order      []string
	categories bool
}

func NewCodeSet(name string, codes []string) (*CodeSet, error) {
	entries := make([]entry, 0, len(codes))
	for _, code := range codes {
		entries = append(entries, entry{code: code})
	}
	return build(name, entries, false)
}

// NewCategorisedCodeSet keeps the input order of codes so Codes() is stable.
func NewCategorisedCodeSet(name string, codes []string, categories map[string]string) (*CodeSet, error) {
	entries := make([]entry, 0, len(codes))
	for _, code := range codes {
		entries = append(entries, entry{code: code, category: categories[strings.TrimSpace(code)]})
	}
	return build(name, entries, true)
}

type entry struct {
	code     string
	category string
}

func build(name string, entries []entry, categorised bool) (*CodeSet, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("code set %q: %w", name, ErrEmptyCodeSet)
	}
	set := &CodeSet{
		name:       name,
		codes:      make(map[string]string, len(entries)),
		order:      make([]string, 0, len(entries)),
		categories: categorised,
	}
	for _, e := range entries {
		code := strings.TrimSpace(e.code)
		if code == "" {
			return nil, fmt.Errorf("code set %q: blank code", name)
		}
		if _, ok := set.codes[code]; ok {
			return nil, fmt.Errorf("code set %q: %q: %w", name, code, ErrDuplicateCode)
		}
		set.codes[code] = e.category
		set.order = append(set.order, code)
	}
	return set, nil
}

func (c *CodeSet) Name() string { return c.name }

func (c *CodeSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.codes)
}

func (c *CodeSet) Contains(code string) bool {
	if c == nil || code == "" {
		return false
	}
	_, ok := c.codes[code]
	return ok
}

// ContainsAny reports whether any of the codes is a member.
func (c *CodeSet) ContainsAny(codes []string) (string, bool) {
	for _, code := range codes {
		if c.Contains(code) {
			return code, true
		}
	}
	return "", false
}

// Category returns the category of code; ok is false for non-members and
// for members without a category.
func (c *CodeSet) Category(code string) (string, bool) {
	if c == nil {
		return "", false
	}
	category, ok := c.codes[code]
	if !ok || category == "" {
		return "", false
	}
	return category, true
}

func (c *CodeSet) HasCategories() bool { return c != nil && c.categories }

func (c *CodeSet) Codes() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// FilterByCategory keeps the codes whose category is one of include.
func (c *CodeSet) FilterByCategory(name string, include ...string) (*CodeSet, error) {
	allowed := make(map[string]struct{}, len(include))
	for _, cat := range include {
		allowed[cat] = struct{}{}
	}
	var codes []string
	categories := make(map[string]string)
	for _, code := range c.order {
		if _, ok := allowed[c.codes[code]]; ok {
			codes = append(codes, code)
			categories[code] = c.codes[code]
		}
	}
	return NewCategorisedCodeSet(name, codes, categories)
}

// Union merges sets, dropping repeated codes. The first set to mention a
// code decides its category.
func Union(name string, sets ...*CodeSet) (*CodeSet, error) {
	seen := make(map[string]struct{})
	var entries []entry
	categorised := false
	for _, set := range sets {
		if set == nil {
			continue
		}
		categorised = categorised || set.categories
		for _, code := range set.order {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			entries = append(entries, entry{code: code, category: set.codes[code]})
		}
	}
	return build(name, entries, categorised)
}

// Categories lists the distinct categories in sorted order.
func (c *CodeSet) Categories() []string {
	seen := make(map[string]struct{})
	for _, cat := range c.codes {
		if cat != "" {
			seen[cat] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}
