// Package attributes holds the typed per-patient output row.
package attributes

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindDate Kind = iota + 1
	KindBool
	KindInt
	KindFloat
	KindCategory
)

func (k Kind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindCategory:
		return "category"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrUndeclared    = errors.New("attribute not declared in schema")
	ErrKindMismatch  = errors.New("attribute kind mismatch")
	ErrFrozen        = errors.New("row is frozen")
	ErrDuplicateName = errors.New("duplicate attribute name")
)

type Field struct {
	Name string
	Kind Kind
}

func Date(name string) Field     { return Field{Name: name, Kind: KindDate} }
func Bool(name string) Field     { return Field{Name: name, Kind: KindBool} }
func Int(name string) Field      { return Field{Name: name, Kind: KindInt} }
func Float(name string) Field    { return Field{Name: name, Kind: KindFloat} }
func Category(name string) Field { return Field{Name: name, Kind: KindCategory} }

// Schema is the ordered list of attributes a row may carry.
type Schema struct {
	fields []Field
	index  map[string]int
}

func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if err := s.add(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Schema) add(f Field) error {
	if f.Name == "" {
		return errors.New("attribute name is empty")
	}
	if f.Kind < KindDate || f.Kind > KindCategory {
		return fmt.Errorf("attribute %s: unknown kind %s", f.Name, f.Kind)
	}
	if _, ok := s.index[f.Name]; ok {
		return fmt.Errorf("%s: %w", f.Name, ErrDuplicateName)
	}
	s.index[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
	return nil
}

// Extend returns a new schema with extra fields appended.
func (s *Schema) Extend(fields ...Field) (*Schema, error) {
	all := make([]Field, 0, len(s.fields)+len(fields))
	all = append(all, s.fields...)
	all = append(all, fields...)
	return NewSchema(all...)
}

func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

func (s *Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

func (s *Schema) Len() int { return len(s.fields) }
