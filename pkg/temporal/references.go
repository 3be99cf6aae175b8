package temporal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

var ErrUnknownReference = errors.New("unknown reference date")

// References is the immutable set of study-level calendar dates (pandemic
// start, variant boundaries, data cut-off, rollout milestones).
type References struct {
	dates map[string]Date
}

func NewReferences(dates map[string]Date) (References, error) {
	copied := make(map[string]Date, len(dates))
	for name, d := range dates {
		if d.IsNull() {
			return References{}, fmt.Errorf("reference date %q is null", name)
		}
		copied[name] = d
	}
	return References{dates: copied}, nil
}

// LoadReferences reads a flat name -> "YYYY-MM-DD" mapping. JSON files are
// accepted as they are valid YAML.
func LoadReferences(path string) (References, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return References{}, err
	}
	var raw map[string]Date
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return References{}, fmt.Errorf("decode reference dates: %w", err)
	}
	if len(raw) == 0 {
		return References{}, errors.New("reference dates empty")
	}
	return NewReferences(raw)
}

func (r References) Get(name string) (Date, error) {
	d, ok := r.dates[name]
	if !ok {
		return Null, fmt.Errorf("%q: %w", name, ErrUnknownReference)
	}
	return d, nil
}

// Date returns the named date or null; call Require at setup first.
func (r References) Date(name string) Date {
	return r.dates[name]
}

// Require checks every name is present.
func (r References) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := r.dates[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%v: %w", missing, ErrUnknownReference)
	}
	return nil
}

func (r References) Names() []string {
	names := make([]string, 0, len(r.dates))
	for name := range r.dates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
