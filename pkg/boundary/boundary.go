// Package boundary computes per-cohort index and censoring dates.
package boundary

import (
	"errors"
	"fmt"
	"sort"

	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/matcher"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
)

var (
	ErrUnknownCohort   = errors.New("unknown cohort")
	ErrDuplicateCohort = errors.New("duplicate cohort")
	ErrEmptyIndex      = errors.New("cohort has no index terms")
	ErrBadTerm         = errors.New("term must name exactly one of reference or patient date")
)

// Term is one candidate date: a study reference date or a patient-derived
// date, shifted by OffsetDays.
type Term struct {
	Reference  string
	Patient    string
	OffsetDays int
}

func Reference(name string) Term { return Term{Reference: name} }

func Patient(name string) Term { return Term{Patient: name} }

func (t Term) Plus(days int) Term {
	t.OffsetDays += days
	return t
}

func (t Term) String() string {
	name := t.Reference
	if t.Patient != "" {
		name = t.Patient
	}
	if t.OffsetDays != 0 {
		return fmt.Sprintf("%s%+dd", name, t.OffsetDays)
	}
	return name
}

// Definition describes one cohort. Index is the latest of its terms;
// ExposureEnd lists the truncations that apply to the exposure horizon on
// top of death, deregistration and the data cut-off.
type Definition struct {
	ID          string
	Index       []Term
	ExposureEnd []Term
}

// PatientDates are the patient-derived dates terms may refer to. Missing
// names read as null.
type PatientDates map[string]temporal.Date

// Config names the dates every cohort shares.
type Config struct {
	// Death is the patient date key of the censoring death date.
	Death string
	// Cutoff is the reference name of the administrative data cut-off.
	Cutoff string
}

// Window is the resolved cohort window for one patient.
type Window struct {
	Cohort         string
	Index          temporal.Date
	EndExposure    temporal.Date
	EndOutcome     temporal.Date
	Deregistration temporal.Date
}

// Resolved is false when no index candidate was available; such patients
// fall out at population selection.
func (w Window) Resolved() bool { return w.Index.IsNotNull() }

type Calculator struct {
	refs   temporal.References
	cfg    Config
	cutoff temporal.Date
	defs   map[string]Definition
	order  []string
	dereg  *matcher.Matcher
}

func NewCalculator(refs temporal.References, cfg Config, defs ...Definition) (*Calculator, error) {
	if cfg.Death == "" {
		return nil, errors.New("boundary config: death date name is empty")
	}
	cutoff, err := refs.Get(cfg.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("boundary config: cutoff: %w", err)
	}
	c := &Calculator{
		refs:   refs,
		cfg:    cfg,
		cutoff: cutoff,
		defs:   make(map[string]Definition, len(defs)),
		dereg:  matcher.Unfiltered(),
	}
	for _, def := range defs {
		if def.ID == "" {
			return nil, errors.New("cohort id is empty")
		}
		if _, ok := c.defs[def.ID]; ok {
			return nil, fmt.Errorf("%s: %w", def.ID, ErrDuplicateCohort)
		}
		if len(def.Index) == 0 {
			return nil, fmt.Errorf("%s: %w", def.ID, ErrEmptyIndex)
		}
		for _, term := range append(append([]Term(nil), def.Index...), def.ExposureEnd...) {
			if err := c.checkTerm(term); err != nil {
				return nil, fmt.Errorf("cohort %s: %w", def.ID, err)
			}
		}
		c.defs[def.ID] = def
		c.order = append(c.order, def.ID)
	}
	return c, nil
}

func (c *Calculator) checkTerm(t Term) error {
	if (t.Reference == "") == (t.Patient == "") {
		return fmt.Errorf("%+v: %w", t, ErrBadTerm)
	}
	if t.Reference != "" {
		if _, err := c.refs.Get(t.Reference); err != nil {
			return err
		}
	}
	return nil
}

func (c *Calculator) resolve(t Term, patient PatientDates) temporal.Date {
	var d temporal.Date
	if t.Reference != "" {
		d = c.refs.Date(t.Reference)
	} else {
		d = patient[t.Patient]
	}
	return d.AddDays(t.OffsetDays)
}

func (c *Calculator) resolveAll(terms []Term, patient PatientDates) []temporal.Date {
	out := make([]temporal.Date, len(terms))
	for i, t := range terms {
		out[i] = c.resolve(t, patient)
	}
	return out
}

// Compute resolves one cohort window. It only fails for an unknown cohort
// id; missing patient dates yield null boundaries.
func (c *Calculator) Compute(cohortID string, patient PatientDates, registrations events.Source) (Window, error) {
	def, ok := c.defs[cohortID]
	if !ok {
		return Window{}, fmt.Errorf("%s: %w", cohortID, ErrUnknownCohort)
	}
	index := temporal.MaximumOf(c.resolveAll(def.Index, patient)...)
	dereg := c.Deregistration(registrations, index)
	death := patient[c.cfg.Death]

	exposure := []temporal.Date{death, dereg, c.cutoff}
	exposure = append(exposure, c.resolveAll(def.ExposureEnd, patient)...)

	return Window{
		Cohort:         cohortID,
		Index:          index,
		EndExposure:    temporal.MinimumOf(exposure...),
		EndOutcome:     temporal.MinimumOf(death, dereg, c.cutoff),
		Deregistration: dereg,
	}, nil
}

// Deregistration is the first registration end date on or after index.
func (c *Calculator) Deregistration(registrations events.Source, index temporal.Date) temporal.Date {
	return c.dereg.First(registrations, temporal.OnOrAfter(index)).Date
}

// Cohorts lists cohort ids in declaration order.
func (c *Calculator) Cohorts() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// PatientInputs lists the patient date names the definitions refer to,
// including the death date.
func (c *Calculator) PatientInputs() []string {
	seen := map[string]struct{}{c.cfg.Death: {}}
	for _, def := range c.defs {
		for _, t := range append(append([]Term(nil), def.Index...), def.ExposureEnd...) {
			if t.Patient != "" {
				seen[t.Patient] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
