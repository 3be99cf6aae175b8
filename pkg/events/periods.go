package events

import "github.com/synaptica-ai/ehrextract/pkg/temporal"

// active reports whether a [start, end) period covers on. An open end
// means the period is ongoing.
func active(start, end, on temporal.Date) bool {
	if !start.OnOrBefore(on) {
		return false
	}
	return end.IsNull() || end.After(on)
}

// RegistrationOn returns the registration in force on the given date. When
// several overlap the latest start wins, and among equal starts the later
// entry.
func RegistrationOn(regs []Registration, on temporal.Date) (Registration, bool) {
	best := -1
	for i, r := range regs {
		if !active(r.StartDate, r.EndDate, on) {
			continue
		}
		if best < 0 || r.StartDate.OnOrAfter(regs[best].StartDate) {
			best = i
		}
	}
	if best < 0 {
		return Registration{}, false
	}
	return regs[best], true
}

// AddressOn follows the same rules as RegistrationOn.
func AddressOn(addrs []Address, on temporal.Date) (Address, bool) {
	best := -1
	for i, a := range addrs {
		if !active(a.StartDate, a.EndDate, on) {
			continue
		}
		if best < 0 || a.StartDate.OnOrAfter(addrs[best].StartDate) {
			best = i
		}
	}
	if best < 0 {
		return Address{}, false
	}
	return addrs[best], true
}

// RegisteredAcross reports whether a single registration covers the whole
// of [start, end].
func RegisteredAcross(regs []Registration, start, end temporal.Date) bool {
	if start.IsNull() || end.IsNull() {
		return false
	}
	for _, r := range regs {
		if r.StartDate.OnOrBefore(start) && (r.EndDate.IsNull() || r.EndDate.After(end)) {
			return true
		}
	}
	return false
}

// CareHome reports any of the care-home address flags.
func (a Address) CareHome() bool {
	return a.CareHomePotentialMatch || a.CareHomeRequiresNursing || a.CareHomeNoNursing
}

// FirstDeath returns the earliest death record, which is the registered
// death when the feed carries duplicates.
func (r PatientRecord) FirstDeath() (DeathRecord, bool) {
	best := -1
	for i, d := range r.Deaths {
		if d.Date.IsNull() {
			continue
		}
		if best < 0 || d.Date.Before(r.Deaths[best].Date) {
			best = i
		}
	}
	if best < 0 {
		return DeathRecord{}, false
	}
	return r.Deaths[best], true
}
