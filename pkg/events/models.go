package events

import "github.com/synaptica-ai/ehrextract/pkg/temporal"

// Patient carries the demographics that are not event streams.
type Patient struct {
	ID               string        `json:"patient_id"`
	DateOfBirth      temporal.Date `json:"date_of_birth"`
	Sex              string        `json:"sex"`
	DateOfDeath      temporal.Date `json:"date_of_death"`
	EthnicityFromSUS string        `json:"ethnicity_sus,omitempty"`
	HealthcareWorker bool          `json:"healthcare_worker,omitempty"`
}

// ClinicalEvent is a primary-care record coded in CTV3 and/or SNOMED CT.
type ClinicalEvent struct {
	Date         temporal.Date `json:"date"`
	CTV3Code     string        `json:"ctv3_code,omitempty"`
	SNOMEDCode   string        `json:"snomedct_code,omitempty"`
	NumericValue *float64      `json:"numeric_value,omitempty"`
}

// Admission is a hospital spell with ICD-10 diagnoses.
type Admission struct {
	AdmissionDate      temporal.Date `json:"admission_date"`
	PrimaryDiagnosis   string        `json:"primary_diagnosis,omitempty"`
	SecondaryDiagnosis string        `json:"secondary_diagnosis,omitempty"`
	AllDiagnoses       []string      `json:"all_diagnoses,omitempty"`
}

// DeathRecord is a registered death with the underlying cause and up to
// fifteen contributing causes.
type DeathRecord struct {
	Date            temporal.Date `json:"date"`
	UnderlyingCause string        `json:"underlying_cause_of_death,omitempty"`
	Causes          []string      `json:"causes,omitempty"`
}

type Medication struct {
	Date    temporal.Date `json:"date"`
	DMDCode string        `json:"dmd_code"`
}

type TestResult struct {
	SpecimenTakenDate temporal.Date `json:"specimen_taken_date"`
	IsPositive        bool          `json:"is_positive"`
}

type EmergencyAttendance struct {
	ArrivalDate temporal.Date `json:"arrival_date"`
	Diagnoses   []string      `json:"diagnoses,omitempty"`
}

type Vaccination struct {
	Date           temporal.Date `json:"date"`
	TargetDiseases []string      `json:"target_diseases,omitempty"`
	ProductName    string        `json:"product_name,omitempty"`
}

type Registration struct {
	StartDate  temporal.Date `json:"start_date"`
	EndDate    temporal.Date `json:"end_date"`
	RegionName string        `json:"practice_nuts1_region_name,omitempty"`
}

type Address struct {
	StartDate               temporal.Date `json:"start_date"`
	EndDate                 temporal.Date `json:"end_date"`
	IMDRounded              *int          `json:"imd_rounded,omitempty"`
	CareHomePotentialMatch  bool          `json:"care_home_is_potential_match,omitempty"`
	CareHomeRequiresNursing bool          `json:"care_home_requires_nursing,omitempty"`
	CareHomeNoNursing       bool          `json:"care_home_does_not_require_nursing,omitempty"`
}

type Appointment struct {
	StartDate temporal.Date `json:"start_date"`
	Status    string        `json:"status"`
}

// PatientRecord is the fully materialized history of one patient, supplied
// by the storage layer.
type PatientRecord struct {
	Patient       Patient               `json:"patient"`
	Clinical      []ClinicalEvent       `json:"clinical_events,omitempty"`
	Admissions    []Admission           `json:"apcs,omitempty"`
	Deaths        []DeathRecord         `json:"ons_deaths,omitempty"`
	Medications   []Medication          `json:"medications,omitempty"`
	Tests         []TestResult          `json:"sgss_covid_all_tests,omitempty"`
	Emergency     []EmergencyAttendance `json:"emergency_care_attendances,omitempty"`
	Vaccinations  []Vaccination         `json:"vaccinations,omitempty"`
	Registrations []Registration        `json:"practice_registrations,omitempty"`
	Addresses     []Address             `json:"addresses,omitempty"`
	Appointments  []Appointment         `json:"appointments,omitempty"`
}
