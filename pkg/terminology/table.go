package terminology

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// SetDefinition is the on-disk form of one code set.
type SetDefinition struct {
	Description string            `yaml:"description" json:"description"`
	System      string            `yaml:"system" json:"system"`
	Codes       []string          `yaml:"codes" json:"codes"`
	Categories  map[string]string `yaml:"categories" json:"categories"`
}

type tableFile struct {
	CodeSets map[string]SetDefinition `yaml:"codesets" json:"codesets"`
}

// Table maps set names to code sets. It is built once and read-only after.
type Table struct {
	sets map[string]*CodeSet
}

func NewTable(sets ...*CodeSet) (*Table, error) {
	t := &Table{sets: make(map[string]*CodeSet, len(sets))}
	for _, set := range sets {
		if set == nil {
			return nil, errors.New("nil code set")
		}
		if _, ok := t.sets[set.Name()]; ok {
			return nil, fmt.Errorf("code set %q declared twice", set.Name())
		}
		t.sets[set.Name()] = set
	}
	return t, nil
}

func LoadTable(path string) (*Table, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	return ParseTable(content)
}

func ParseTable(content []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("decode code sets: %w", err)
	}
	if len(file.CodeSets) == 0 {
		return nil, errors.New("code set table empty")
	}
	names := make([]string, 0, len(file.CodeSets))
	for name := range file.CodeSets {
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]*CodeSet, 0, len(names))
	for _, name := range names {
		def := file.CodeSets[name]
		var (
			set *CodeSet
			err error
		)
		if len(def.Categories) > 0 {
			set, err = NewCategorisedCodeSet(name, def.Codes, def.Categories)
		} else {
			set, err = NewCodeSet(name, def.Codes)
		}
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return NewTable(sets...)
}

func (t *Table) Get(name string) (*CodeSet, error) {
	set, ok := t.sets[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownSet)
	}
	return set, nil
}

// Require reports every missing name at once.
func (t *Table) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := t.sets[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%v: %w", missing, ErrUnknownSet)
	}
	return nil
}

// Union resolves names and merges them into one set.
func (t *Table) Union(name string, members ...string) (*CodeSet, error) {
	sets := make([]*CodeSet, 0, len(members))
	for _, member := range members {
		set, err := t.Get(member)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return Union(name, sets...)
}

func (t *Table) Names() []string {
	names := make([]string, 0, len(t.sets))
	for name := range t.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
