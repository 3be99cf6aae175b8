package events

import "github.com/synaptica-ai/ehrextract/pkg/temporal"

type Kind string

const (
	KindClinical     Kind = "clinical"
	KindAdmission    Kind = "admission"
	KindDeath        Kind = "death"
	KindMedication   Kind = "medication"
	KindTestResult   Kind = "test_result"
	KindEmergency    Kind = "emergency"
	KindVaccination  Kind = "vaccination"
	KindRegistration Kind = "registration"
	KindAppointment  Kind = "appointment"
)

// Scope restricts which code slots of an event take part in matching.
// ScopeAny checks every slot.
type Scope uint8

const (
	ScopeAny     Scope = 0
	ScopePrimary Scope = 1 << iota
	ScopeSecondary
)

func (s Scope) has(flag Scope) bool { return s&flag != 0 }

// Source is one stream of coded events for a single patient. Sources are
// read-only views over already materialized slices.
type Source interface {
	Kind() Kind
	Len() int
	Date(i int) temporal.Date
	// Codes returns the code slots of event i selected by scope. Kinds
	// without a primary/secondary distinction ignore scope.
	Codes(i int, scope Scope) []string
}

type CodeSystem string

const (
	CTV3   CodeSystem = "ctv3"
	SNOMED CodeSystem = "snomedct"
)

// ClinicalSource reads one code system of the primary-care record.
type ClinicalSource struct {
	Events []ClinicalEvent
	System CodeSystem
}

func Clinical(events []ClinicalEvent, system CodeSystem) ClinicalSource {
	return ClinicalSource{Events: events, System: system}
}

func (s ClinicalSource) Kind() Kind               { return KindClinical }
func (s ClinicalSource) Len() int                 { return len(s.Events) }
func (s ClinicalSource) Date(i int) temporal.Date { return s.Events[i].Date }

func (s ClinicalSource) Codes(i int, _ Scope) []string {
	if s.System == CTV3 {
		return []string{s.Events[i].CTV3Code}
	}
	return []string{s.Events[i].SNOMEDCode}
}

type AdmissionSource []Admission

func Admissions(a []Admission) AdmissionSource { return AdmissionSource(a) }

func (s AdmissionSource) Kind() Kind               { return KindAdmission }
func (s AdmissionSource) Len() int                 { return len(s) }
func (s AdmissionSource) Date(i int) temporal.Date { return s[i].AdmissionDate }

func (s AdmissionSource) Codes(i int, scope Scope) []string {
	a := s[i]
	if scope == ScopeAny {
		codes := make([]string, 0, len(a.AllDiagnoses)+2)
		codes = append(codes, a.PrimaryDiagnosis, a.SecondaryDiagnosis)
		return append(codes, a.AllDiagnoses...)
	}
	var codes []string
	if scope.has(ScopePrimary) {
		codes = append(codes, a.PrimaryDiagnosis)
	}
	if scope.has(ScopeSecondary) {
		codes = append(codes, a.SecondaryDiagnosis)
	}
	return codes
}

type DeathSource []DeathRecord

func Deaths(d []DeathRecord) DeathSource { return DeathSource(d) }

func (s DeathSource) Kind() Kind               { return KindDeath }
func (s DeathSource) Len() int                 { return len(s) }
func (s DeathSource) Date(i int) temporal.Date { return s[i].Date }

// Codes treats the underlying cause as the primary slot and every
// contributing cause as secondary.
func (s DeathSource) Codes(i int, scope Scope) []string {
	d := s[i]
	if scope == ScopePrimary {
		return []string{d.UnderlyingCause}
	}
	if scope == ScopeSecondary {
		return d.Causes
	}
	codes := make([]string, 0, len(d.Causes)+1)
	codes = append(codes, d.UnderlyingCause)
	return append(codes, d.Causes...)
}

type MedicationSource []Medication

func Medications(m []Medication) MedicationSource { return MedicationSource(m) }

func (s MedicationSource) Kind() Kind                    { return KindMedication }
func (s MedicationSource) Len() int                      { return len(s) }
func (s MedicationSource) Date(i int) temporal.Date      { return s[i].Date }
func (s MedicationSource) Codes(i int, _ Scope) []string { return []string{s[i].DMDCode} }

// TestResultSource has no codes; match it with an unfiltered matcher and a
// Where filter on IsPositive.
type TestResultSource []TestResult

func TestResults(t []TestResult) TestResultSource { return TestResultSource(t) }

func (s TestResultSource) Kind() Kind                { return KindTestResult }
func (s TestResultSource) Len() int                  { return len(s) }
func (s TestResultSource) Date(i int) temporal.Date  { return s[i].SpecimenTakenDate }
func (s TestResultSource) Codes(int, Scope) []string { return nil }
func (s TestResultSource) Positive(i int) bool       { return s[i].IsPositive }

type EmergencySource []EmergencyAttendance

func Emergency(e []EmergencyAttendance) EmergencySource { return EmergencySource(e) }

func (s EmergencySource) Kind() Kind                    { return KindEmergency }
func (s EmergencySource) Len() int                      { return len(s) }
func (s EmergencySource) Date(i int) temporal.Date      { return s[i].ArrivalDate }
func (s EmergencySource) Codes(i int, _ Scope) []string { return s[i].Diagnoses }

// VaccinationSource matches either target diseases or the product name.
type VaccinationSource struct {
	Events    []Vaccination
	ByProduct bool
}

func VaccinationTargets(v []Vaccination) VaccinationSource {
	return VaccinationSource{Events: v}
}

func VaccinationProducts(v []Vaccination) VaccinationSource {
	return VaccinationSource{Events: v, ByProduct: true}
}

func (s VaccinationSource) Kind() Kind               { return KindVaccination }
func (s VaccinationSource) Len() int                 { return len(s.Events) }
func (s VaccinationSource) Date(i int) temporal.Date { return s.Events[i].Date }

func (s VaccinationSource) Codes(i int, _ Scope) []string {
	if s.ByProduct {
		return []string{s.Events[i].ProductName}
	}
	return s.Events[i].TargetDiseases
}

// RegistrationEndSource dates each registration by its end date; open
// registrations have a null date and never match.
type RegistrationEndSource []Registration

func RegistrationEnds(r []Registration) RegistrationEndSource { return RegistrationEndSource(r) }

func (s RegistrationEndSource) Kind() Kind                { return KindRegistration }
func (s RegistrationEndSource) Len() int                  { return len(s) }
func (s RegistrationEndSource) Date(i int) temporal.Date  { return s[i].EndDate }
func (s RegistrationEndSource) Codes(int, Scope) []string { return nil }

// AppointmentSource exposes the appointment status as its only code.
type AppointmentSource []Appointment

func Appointments(a []Appointment) AppointmentSource { return AppointmentSource(a) }

func (s AppointmentSource) Kind() Kind                    { return KindAppointment }
func (s AppointmentSource) Len() int                      { return len(s) }
func (s AppointmentSource) Date(i int) temporal.Date      { return s[i].StartDate }
func (s AppointmentSource) Codes(i int, _ Scope) []string { return []string{s[i].Status} }
