package study

import (
	"github.com/synaptica-ai/ehrextract/pkg/boundary"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
)

// Patient dates the cohort boundaries depend on.
const (
	dateDeath    = "cens_date_death"
	dateVax1     = "vax_date_covid_1"
	dateVax2     = "vax_date_covid_2"
	dateEligible = "vax_date_eligible"
)

// CohortDefinitions are the pre-vaccination, vaccinated and unvaccinated
// cohorts. Death, deregistration and lcd_date censor every cohort.
var CohortDefinitions = []boundary.Definition{
	{
		ID:    CohortPrevax,
		Index: []boundary.Term{boundary.Reference(PandemicStart)},
		ExposureEnd: []boundary.Term{
			boundary.Patient(dateVax1),
			boundary.Patient(dateEligible),
			boundary.Reference(AllEligible),
		},
	},
	{
		ID:          CohortVax,
		Index:       []boundary.Term{boundary.Patient(dateVax2).Plus(14), boundary.Reference(DeltaDate)},
		ExposureEnd: []boundary.Term{boundary.Reference(OmicronDate)},
	},
	{
		ID:    CohortUnvax,
		Index: []boundary.Term{boundary.Patient(dateEligible).Plus(84), boundary.Reference(DeltaDate)},
		ExposureEnd: []boundary.Term{
			boundary.Reference(OmicronDate),
			boundary.Patient(dateVax1),
		},
	},
}

func newBoundaries(refs temporal.References) (*boundary.Calculator, error) {
	return boundary.NewCalculator(refs, boundary.Config{Death: dateDeath, Cutoff: LastCollectDate}, CohortDefinitions...)
}

func boundaryInputs(pr prelim, jr jcviResult) boundary.PatientDates {
	return boundary.PatientDates{
		dateDeath:    pr.death,
		dateVax1:     pr.dose("covid", 1),
		dateVax2:     pr.dose("covid", 2),
		dateEligible: jr.eligible,
	}
}
