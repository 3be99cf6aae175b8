package study

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
	"github.com/synaptica-ai/ehrextract/pkg/terminology"
)

func d(s string) temporal.Date { return temporal.MustParse(s) }

var testDates = map[string]string{
	RefAge1:         "2021-03-31",
	RefAge2:         "2021-07-01",
	RefCEV:          "2021-01-18",
	RefAtRisk:       "2021-02-15",
	PandemicStart:   "2020-01-01",
	Vax1Earliest:    "2020-12-08",
	DeltaDate:       "2021-06-01",
	OmicronDate:     "2021-12-14",
	AllEligible:     "2021-06-18",
	LastCollectDate: "2024-04-30",
}

func testReferences(t *testing.T) temporal.References {
	t.Helper()
	dates := make(map[string]temporal.Date, len(testDates))
	for name, value := range testDates {
		dates[name] = d(value)
	}
	refs, err := temporal.NewReferences(dates)
	require.NoError(t, err)
	return refs
}

// code is the single code the fixture table assigns to a set.
func code(set string) string { return strings.ToUpper(set) }

var categorised = map[string]map[string]string{
	SmokingClear: {
		"SMK_S": "S", "SMK_E": "E", "SMK_N": "N",
	},
	EthnicitySNOMED: {
		"ETH_1": "1", "ETH_2": "2", "ETH_3": "3", "ETH_4": "4", "ETH_5": "5",
	},
}

func testTable(t *testing.T, skip ...string) *terminology.Table {
	t.Helper()
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	var sets []*terminology.CodeSet
	for _, name := range RequiredCodeSets {
		if skipped[name] {
			continue
		}
		var (
			set *terminology.CodeSet
			err error
		)
		if cats, ok := categorised[name]; ok {
			codes := make([]string, 0, len(cats))
			for c := range cats {
				codes = append(codes, c)
			}
			set, err = terminology.NewCategorisedCodeSet(name, codes, cats)
		} else {
			set, err = terminology.NewCodeSet(name, []string{code(name)})
		}
		require.NoError(t, err)
		sets = append(sets, set)
	}
	table, err := terminology.NewTable(sets...)
	require.NoError(t, err)
	return table
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(testReferences(t), testTable(t))
	require.NoError(t, err)
	return e
}

func snomed(set, date string) events.ClinicalEvent {
	return events.ClinicalEvent{Date: d(date), SNOMEDCode: code(set)}
}

func snomedCode(c, date string) events.ClinicalEvent {
	return events.ClinicalEvent{Date: d(date), SNOMEDCode: c}
}

func ctv3Code(c, date string) events.ClinicalEvent {
	return events.ClinicalEvent{Date: d(date), CTV3Code: c}
}

func primaryAdmission(set, date string) events.Admission {
	return events.Admission{AdmissionDate: d(date), PrimaryDiagnosis: code(set), AllDiagnoses: []string{code(set)}}
}

func dispense(set, date string) events.Medication {
	return events.Medication{Date: d(date), DMDCode: code(set)}
}

func covidDose(date string) events.Vaccination {
	return events.Vaccination{Date: d(date), TargetDiseases: []string{CovidTargetDisease}}
}

func person(id, dob, sex string) *events.PatientRecord {
	return &events.PatientRecord{Patient: events.Patient{ID: id, DateOfBirth: d(dob), Sex: sex}}
}
