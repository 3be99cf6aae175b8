package temporal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const Layout = "2006-01-02"

// Date is a calendar date. The zero value is the null date: it compares
// false against everything, including another null date.
type Date struct {
	t time.Time
}

// Null is the null date.
var Null Date

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func FromTime(t time.Time) Date {
	if t.IsZero() {
		return Null
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func Parse(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Null, nil
	}
	t, err := time.Parse(Layout, value)
	if err != nil {
		return Null, fmt.Errorf("parse date %q: %w", value, err)
	}
	return FromTime(t), nil
}

func MustParse(value string) Date {
	d, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) IsNull() bool    { return d.t.IsZero() }
func (d Date) IsNotNull() bool { return !d.t.IsZero() }

// Time returns the date at midnight UTC, or the zero time for null.
func (d Date) Time() time.Time { return d.t }

func (d Date) Year() (int, bool) {
	if d.IsNull() {
		return 0, false
	}
	return d.t.Year(), true
}

// AddDays shifts the date; null stays null.
func (d Date) AddDays(n int) Date {
	if d.IsNull() {
		return Null
	}
	return Date{t: d.t.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool {
	return d.IsNotNull() && o.IsNotNull() && d.t.Before(o.t)
}

func (d Date) After(o Date) bool {
	return d.IsNotNull() && o.IsNotNull() && d.t.After(o.t)
}

func (d Date) OnOrBefore(o Date) bool {
	return d.IsNotNull() && o.IsNotNull() && !d.t.After(o.t)
}

func (d Date) OnOrAfter(o Date) bool {
	return d.IsNotNull() && o.IsNotNull() && !d.t.Before(o.t)
}

func (d Date) Equal(o Date) bool {
	return d.IsNotNull() && o.IsNotNull() && d.t.Equal(o.t)
}

// DaysUntil returns the signed number of days from d to o.
func (d Date) DaysUntil(o Date) (int, bool) {
	if d.IsNull() || o.IsNull() {
		return 0, false
	}
	return int(o.t.Sub(d.t).Hours() / 24), true
}

func (d Date) String() string {
	if d.IsNull() {
		return ""
	}
	return d.t.Format(Layout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsNull() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Null
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalYAML accepts the same "2006-01-02" strings as JSON.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*d = Null
		return nil
	}
	parsed, err := Parse(node.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AgeOn returns completed years between birth and on.
func AgeOn(birth, on Date) (int, bool) {
	if birth.IsNull() || on.IsNull() {
		return 0, false
	}
	by, bm, bd := birth.t.Date()
	oy, om, od := on.t.Date()
	age := oy - by
	if om < bm || (om == bm && od < bd) {
		age--
	}
	return age, true
}
