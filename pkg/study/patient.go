package study

import (
	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
)

// patient bundles the source views over one record. ONS deaths hold a
// single registered death per patient.
type patient struct {
	rec         *events.PatientRecord
	ctv3        events.ClinicalSource
	snomed      events.ClinicalSource
	apc         events.AdmissionSource
	meds        events.MedicationSource
	ons         events.DeathSource
	tests       events.TestResultSource
	vaxTargets  events.VaccinationSource
	vaxProducts events.VaccinationSource
	regEnds     events.RegistrationEndSource
	appts       events.AppointmentSource
}

func newPatient(rec *events.PatientRecord) *patient {
	p := &patient{
		rec:         rec,
		ctv3:        events.Clinical(rec.Clinical, events.CTV3),
		snomed:      events.Clinical(rec.Clinical, events.SNOMED),
		apc:         events.Admissions(rec.Admissions),
		meds:        events.Medications(rec.Medications),
		tests:       events.TestResults(rec.Tests),
		vaxTargets:  events.VaccinationTargets(rec.Vaccinations),
		vaxProducts: events.VaccinationProducts(rec.Vaccinations),
		regEnds:     events.RegistrationEnds(rec.Registrations),
		appts:       events.Appointments(rec.Appointments),
	}
	if death, ok := rec.FirstDeath(); ok {
		p.ons = events.Deaths([]events.DeathRecord{death})
	}
	return p
}

func (p *patient) dob() temporal.Date { return p.rec.Patient.DateOfBirth }

func (p *patient) onsDeathDate() temporal.Date {
	if len(p.ons) == 0 {
		return temporal.Null
	}
	return p.ons[0].Date
}

func (p *patient) ageOn(d temporal.Date) (int, bool) {
	return temporal.AgeOn(p.dob(), d)
}

// numericValue returns the value recorded on a clinical event, if any.
func (p *patient) numericValue(i int) (float64, bool) {
	if i < 0 || i >= len(p.rec.Clinical) || p.rec.Clinical[i].NumericValue == nil {
		return 0, false
	}
	return *p.rec.Clinical[i].NumericValue, true
}

func isPositive(src events.Source, i int) bool {
	tests, ok := src.(events.TestResultSource)
	return ok && tests.Positive(i)
}
