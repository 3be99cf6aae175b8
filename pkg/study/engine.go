// Package study wires the matchers, cascades and cohort boundaries of the
// post-COVID neurological outcomes study into per-patient attribute rows.
package study

import (
	"errors"
	"fmt"

	"github.com/synaptica-ai/ehrextract/pkg/attributes"
	"github.com/synaptica-ai/ehrextract/pkg/boundary"
	"github.com/synaptica-ai/ehrextract/pkg/cascade"
	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/riskgroup"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
	"github.com/synaptica-ai/ehrextract/pkg/terminology"
)

// ErrNotInPopulation is returned for records without a date of birth.
var ErrNotInPopulation = errors.New("patient outside study population")

// Engine is built once per run and is safe for concurrent use.
type Engine struct {
	refs   temporal.References
	lib    *library
	jw     jcviWindows
	chains []vaxChain

	atRisk      *riskgroup.Aggregator[*patient]
	jcviGroup   *cascade.Cascade[jcviInput, string]
	eligibility *cascade.Cascade[eligibilityInput, temporal.Date]
	ethnicity   *cascade.Cascade[ethnicityInput, string]
	imd         *cascade.Cascade[imdInput, string]
	smoking     *cascade.Cascade[smokingInput, string]
	severity    *cascade.Cascade[severityInput, string]

	boundaries   *boundary.Calculator
	datesSchema  *attributes.Schema
	cohortSchema *attributes.Schema
}

// NewEngine validates every reference date, code set, window and cascade
// before any patient is seen.
func NewEngine(refs temporal.References, table *terminology.Table) (*Engine, error) {
	if err := refs.Require(RequiredReferences...); err != nil {
		return nil, fmt.Errorf("study dates: %w", err)
	}
	if table == nil {
		return nil, errors.New("code set table is nil")
	}
	e := &Engine{refs: refs}

	var err error
	if e.lib, err = newLibrary(table); err != nil {
		return nil, fmt.Errorf("code sets: %w", err)
	}
	if e.jw, err = newJCVIWindows(refs); err != nil {
		return nil, err
	}
	e.chains = e.vaxChains()
	if e.atRisk, err = e.newAtRiskAggregator(); err != nil {
		return nil, fmt.Errorf("atrisk_group: %w", err)
	}
	if e.jcviGroup, err = newJCVIGroupCascade(); err != nil {
		return nil, err
	}
	if e.eligibility, err = newEligibilityCascade(); err != nil {
		return nil, err
	}
	if e.ethnicity, err = newEthnicityCascade(); err != nil {
		return nil, err
	}
	if e.imd, err = newIMDCascade(); err != nil {
		return nil, err
	}
	if e.smoking, err = newSmokingCascade(); err != nil {
		return nil, err
	}
	if e.severity, err = newSeverityCascade(); err != nil {
		return nil, err
	}
	if e.boundaries, err = newBoundaries(refs); err != nil {
		return nil, err
	}
	if e.datesSchema, err = newDatesSchema(e.boundaries.Cohorts()); err != nil {
		return nil, err
	}
	if e.cohortSchema, err = newCohortSchema(); err != nil {
		return nil, err
	}
	return e, nil
}

// Load reads the code list table and study dates from disk and builds an
// engine from them.
func Load(codelistsPath, datesPath string) (*Engine, error) {
	refs, err := temporal.LoadReferences(datesPath)
	if err != nil {
		return nil, fmt.Errorf("load study dates: %w", err)
	}
	table, err := terminology.LoadTable(codelistsPath)
	if err != nil {
		return nil, fmt.Errorf("load code lists: %w", err)
	}
	return NewEngine(refs, table)
}

func (e *Engine) Cohorts() []string                { return e.boundaries.Cohorts() }
func (e *Engine) DatesSchema() *attributes.Schema  { return e.datesSchema }
func (e *Engine) CohortSchema() *attributes.Schema { return e.cohortSchema }
func (e *Engine) References() temporal.References  { return e.refs }

func inPopulation(rec *events.PatientRecord) error {
	if rec == nil || rec.Patient.DateOfBirth.IsNull() {
		return ErrNotInPopulation
	}
	return nil
}

// Dates derives the death, vaccination, JCVI and cohort boundary dates.
func (e *Engine) Dates(rec *events.PatientRecord) (*attributes.Row, error) {
	if err := inPopulation(rec); err != nil {
		return nil, err
	}
	p := newPatient(rec)
	pr := e.prelim(p)
	jr := e.jcvi(p)

	row := e.datesSchema.NewRow(rec.Patient.ID)
	row.SetDate("cens_date_death", pr.death)
	for _, label := range vaxLabels {
		for n := 1; n <= vaxDoses; n++ {
			row.SetDate(fmt.Sprintf("vax_date_%s_%d", label, n), pr.dose(label, n))
		}
		row.SetInt("vax_num_"+label, pr.counts[label])
	}
	row.SetNullableInt("vax_jcvi_age_1", jr.input.age1, jr.input.hasAge1)
	row.SetNullableInt("vax_jcvi_age_2", jr.input.age2, jr.input.hasAge2)
	row.SetBool("preg_group", jr.input.preg)
	row.SetBool("cev_group", jr.input.cev)
	for name, v := range jr.risk.Flags {
		row.SetBool(name, v)
	}
	row.SetBool("atrisk_group", jr.risk.Compound)
	row.SetBool("longres_group", jr.input.longres)
	row.SetCategory("vax_cat_jcvi_group", jr.group)
	row.SetDate("vax_date_eligible", jr.eligible)

	inputs := boundaryInputs(pr, jr)
	for _, c := range e.boundaries.Cohorts() {
		w, err := e.boundaries.Compute(c, inputs, p.regEnds)
		if err != nil {
			return nil, err
		}
		row.SetDate("index_"+c, w.Index)
		row.SetDate("end_"+c+"_exposure", w.EndExposure)
		row.SetDate("end_"+c+"_outcome", w.EndOutcome)
	}
	if err := row.Freeze(); err != nil {
		return nil, fmt.Errorf("patient %s: %w", rec.Patient.ID, err)
	}
	return row, nil
}

// Window resolves one cohort window for a patient.
func (e *Engine) Window(rec *events.PatientRecord, cohortID string) (boundary.Window, error) {
	if err := inPopulation(rec); err != nil {
		return boundary.Window{}, err
	}
	p := newPatient(rec)
	return e.window(p, cohortID)
}

func (e *Engine) window(p *patient, cohortID string) (boundary.Window, error) {
	return e.boundaries.Compute(cohortID, boundaryInputs(e.prelim(p), e.jcvi(p)), p.regEnds)
}

// Extract builds the per-cohort row. A window whose index date cannot be
// resolved still yields a row; population selection drops it downstream.
func (e *Engine) Extract(rec *events.PatientRecord, cohortID string) (*attributes.Row, error) {
	if err := inPopulation(rec); err != nil {
		return nil, err
	}
	p := newPatient(rec)
	w, err := e.window(p, cohortID)
	if err != nil {
		return nil, err
	}
	row := e.cohortSchema.NewRow(rec.Patient.ID)
	e.fillCohort(row, p, w)
	if err := row.Freeze(); err != nil {
		return nil, fmt.Errorf("patient %s cohort %s: %w", rec.Patient.ID, cohortID, err)
	}
	return row, nil
}
