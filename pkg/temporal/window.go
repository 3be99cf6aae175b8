package temporal

import (
	"errors"
	"fmt"
)

var ErrInvertedWindow = errors.New("window start is after window end")

// Bound is one end of a Window.
type Bound struct {
	Date      Date
	Unbounded bool
	Exclusive bool
}

// Window selects event dates. A bounded end whose date is null matches
// nothing, so windows built from missing patient dates are empty rather
// than open.
type Window struct {
	Start Bound
	End   Bound
}

func Always() Window {
	return Window{Start: Bound{Unbounded: true}, End: Bound{Unbounded: true}}
}

// Between is inclusive on both ends.
func Between(start, end Date) Window {
	return Window{Start: Bound{Date: start}, End: Bound{Date: end}}
}

// Before is strictly earlier than end.
func Before(end Date) Window {
	return Window{Start: Bound{Unbounded: true}, End: Bound{Date: end, Exclusive: true}}
}

func OnOrBefore(end Date) Window {
	return Window{Start: Bound{Unbounded: true}, End: Bound{Date: end}}
}

// After is strictly later than start.
func After(start Date) Window {
	return Window{Start: Bound{Date: start, Exclusive: true}, End: Bound{Unbounded: true}}
}

func OnOrAfter(start Date) Window {
	return Window{Start: Bound{Date: start}, End: Bound{Unbounded: true}}
}

func (w Window) Contains(d Date) bool {
	if d.IsNull() {
		return false
	}
	if !w.Start.Unbounded {
		if w.Start.Exclusive {
			if !d.After(w.Start.Date) {
				return false
			}
		} else if !d.OnOrAfter(w.Start.Date) {
			return false
		}
	}
	if !w.End.Unbounded {
		if w.End.Exclusive {
			if !d.Before(w.End.Date) {
				return false
			}
		} else if !d.OnOrBefore(w.End.Date) {
			return false
		}
	}
	return true
}

// Validate reports windows declared from fixed dates that can never match.
// Per-patient windows are not validated; they simply match nothing.
func (w Window) Validate() error {
	if !w.Start.Unbounded && w.Start.Date.IsNull() {
		return errors.New("window start date is null")
	}
	if !w.End.Unbounded && w.End.Date.IsNull() {
		return errors.New("window end date is null")
	}
	if w.Start.Unbounded || w.End.Unbounded {
		return nil
	}
	if w.Start.Date.After(w.End.Date) {
		return fmt.Errorf("%s > %s: %w", w.Start.Date, w.End.Date, ErrInvertedWindow)
	}
	if (w.Start.Exclusive || w.End.Exclusive) && w.Start.Date.Equal(w.End.Date) {
		return fmt.Errorf("%s: %w", w.Start.Date, ErrInvertedWindow)
	}
	return nil
}

func (w Window) String() string {
	open, close := "[", "]"
	start, end := "-inf", "+inf"
	if !w.Start.Unbounded {
		start = w.Start.Date.String()
		if w.Start.Exclusive {
			open = "("
		}
	} else {
		open = "("
	}
	if !w.End.Unbounded {
		end = w.End.Date.String()
		if w.End.Exclusive {
			close = ")"
		}
	} else {
		close = ")"
	}
	return open + start + ", " + end + close
}
