package attributes

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/synaptica-ai/ehrextract/pkg/temporal"
)

// Row is one patient's attributes. Setters never fail loudly: the first
// problem is kept and reported by Err and Freeze.
type Row struct {
	schema    *Schema
	patientID string
	values    []any
	frozen    bool
	err       error
}

func (s *Schema) NewRow(patientID string) *Row {
	return &Row{schema: s, patientID: patientID, values: make([]any, len(s.fields))}
}

func (r *Row) PatientID() string { return r.patientID }
func (r *Row) Schema() *Schema   { return r.schema }
func (r *Row) Err() error        { return r.err }
func (r *Row) Frozen() bool      { return r.frozen }

// Freeze stops further writes and returns the first recorded error.
func (r *Row) Freeze() error {
	r.frozen = true
	return r.err
}

func (r *Row) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Row) set(name string, kind Kind, value any) {
	if r.frozen {
		r.fail(fmt.Errorf("set %s: %w", name, ErrFrozen))
		return
	}
	i, ok := r.schema.index[name]
	if !ok {
		r.fail(fmt.Errorf("%s: %w", name, ErrUndeclared))
		return
	}
	if declared := r.schema.fields[i].Kind; declared != kind {
		r.fail(fmt.Errorf("%s is %s, got %s: %w", name, declared, kind, ErrKindMismatch))
		return
	}
	r.values[i] = value
}

func (r *Row) SetDate(name string, d temporal.Date) {
	if d.IsNull() {
		r.set(name, KindDate, nil)
		return
	}
	r.set(name, KindDate, d)
}

func (r *Row) SetBool(name string, v bool) { r.set(name, KindBool, v) }

func (r *Row) SetInt(name string, v int) { r.set(name, KindInt, v) }

func (r *Row) SetNullableInt(name string, v int, ok bool) {
	if !ok {
		r.set(name, KindInt, nil)
		return
	}
	r.set(name, KindInt, v)
}

func (r *Row) SetFloat(name string, v float64) { r.set(name, KindFloat, v) }

// SetCategory stores label; the empty label is null.
func (r *Row) SetCategory(name, label string) {
	if label == "" {
		r.set(name, KindCategory, nil)
		return
	}
	r.set(name, KindCategory, label)
}

func (r *Row) SetNull(name string) {
	f, ok := r.schema.Lookup(name)
	if !ok {
		r.fail(fmt.Errorf("%s: %w", name, ErrUndeclared))
		return
	}
	r.set(name, f.Kind, nil)
}

// Get returns the stored value; nil means null or undeclared.
func (r *Row) Get(name string) any {
	i, ok := r.schema.index[name]
	if !ok {
		return nil
	}
	return r.values[i]
}

func (r *Row) Date(name string) temporal.Date {
	d, _ := r.Get(name).(temporal.Date)
	return d
}

// Bool treats null as false.
func (r *Row) Bool(name string) bool {
	v, _ := r.Get(name).(bool)
	return v
}

func (r *Row) Int(name string) (int, bool) {
	v, ok := r.Get(name).(int)
	return v, ok
}

func (r *Row) Category(name string) string {
	v, _ := r.Get(name).(string)
	return v
}

func renderValue(v any) any {
	if d, ok := v.(temporal.Date); ok {
		return d.String()
	}
	return v
}

// Values returns every attribute keyed by name with dates rendered as
// "2006-01-02" and nulls as nil. Map order is unspecified; use MarshalJSON
// when field order matters.
func (r *Row) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for i, f := range r.schema.fields {
		out[f.Name] = renderValue(r.values[i])
	}
	return out
}

// MarshalJSON writes patient_id followed by the attributes in schema order.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeMember(&buf, "patient_id", r.patientID); err != nil {
		return nil, err
	}
	for i, f := range r.schema.fields {
		buf.WriteByte(',')
		if err := writeMember(&buf, f.Name, renderValue(r.values[i])); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, name string, value any) error {
	key, err := json.Marshal(name)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(encoded)
	return nil
}
