package study

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/ehrextract/pkg/boundary"
	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
	"github.com/synaptica-ai/ehrextract/pkg/terminology"
)

func TestNewEngineConfigurationErrors(t *testing.T) {
	_, err := NewEngine(testReferences(t), testTable(t, DemAlzICD10))
	require.ErrorIs(t, err, terminology.ErrUnknownSet)

	partial, err := temporal.NewReferences(map[string]temporal.Date{PandemicStart: d("2020-01-01")})
	require.NoError(t, err)
	_, err = NewEngine(partial, testTable(t))
	require.ErrorIs(t, err, temporal.ErrUnknownReference)

	_, err = NewEngine(testReferences(t), nil)
	require.Error(t, err)
}

func TestLoadBundledConfiguration(t *testing.T) {
	e, err := Load("../../configs/codelists.yaml", "../../configs/study_dates.yaml")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{CohortPrevax, CohortVax, CohortUnvax}, e.Cohorts())
	assert.Equal(t, d("2024-04-30"), e.References().Date(LastCollectDate))

	_, err = Load("../../configs/missing.yaml", "../../configs/study_dates.yaml")
	require.Error(t, err)
}

func TestOutcomeFusedAcrossSources(t *testing.T) {
	e := testEngine(t)
	rec := person("p1", "1950-05-01", "male")
	rec.Clinical = []events.ClinicalEvent{snomed(DemAlzSNOMED, "2021-03-10")}
	rec.Admissions = []events.Admission{primaryAdmission(DemAlzICD10, "2021-03-05")}

	row, err := e.Extract(rec, CohortPrevax)
	require.NoError(t, err)
	assert.Equal(t, d("2021-03-05"), row.Date("out_date_dem_alz"))
	assert.Equal(t, d("2021-03-05"), row.Date("out_date_dem_any"))
	assert.True(t, row.Date("out_date_dem_vasc").IsNull())
}

func TestNoEventsLeavesNulls(t *testing.T) {
	e := testEngine(t)
	row, err := e.Extract(person("p2", "1980-01-01", "female"), CohortPrevax)
	require.NoError(t, err)

	for _, name := range OutcomeNames() {
		assert.Nil(t, row.Get("out_date_"+name), name)
	}
	assert.Nil(t, row.Get("exp_date_covid19_confirmed"))
	assert.Equal(t, "no_infection", row.Category("sub_cat_covid19_hospital"))
	assert.Equal(t, "Missing", row.Category("cov_cat_ethnicity"))
	assert.Equal(t, "unknown", row.Category("cov_cat_imd"))
	assert.Equal(t, "M", row.Category("cov_cat_smoking_status"))
	assert.True(t, row.Bool("inex_bin_alive"))
	assert.False(t, row.Bool("inex_bin_6m_reg"))
}

func TestLongStayResidentOutranksAgeBand(t *testing.T) {
	e := testEngine(t)
	rec := person("p3", "1938-06-01", "female")
	rec.Clinical = []events.ClinicalEvent{snomed(LongResPRIMIS, "2020-06-01")}

	row, err := e.Dates(rec)
	require.NoError(t, err)
	age, _ := row.Int("vax_jcvi_age_1")
	assert.Equal(t, 82, age)
	assert.True(t, row.Bool("longres_group"))
	assert.Equal(t, "01", row.Category("vax_cat_jcvi_group"))
	assert.Equal(t, d("2020-12-08"), row.Date("vax_date_eligible"))

	rec.Clinical = nil
	row, err = e.Dates(rec)
	require.NoError(t, err)
	assert.Equal(t, "02", row.Category("vax_cat_jcvi_group"))
}

func TestOutcomeEndCensoredByDeath(t *testing.T) {
	e := testEngine(t)
	rec := person("p4", "1940-01-01", "male")
	rec.Patient.DateOfDeath = d("2022-05-01")

	row, err := e.Dates(rec)
	require.NoError(t, err)
	assert.Equal(t, d("2022-05-01"), row.Date("cens_date_death"))
	assert.Equal(t, d("2022-05-01"), row.Date("end_prevax_outcome"))
	assert.Equal(t, d("2021-12-14"), row.Date("end_vax_exposure"))
	assert.Equal(t, d("2022-05-01"), row.Date("end_vax_outcome"))
}

func TestSevereObesityAgainstBMIStage(t *testing.T) {
	e := testEngine(t)

	rec := person("p5", "1970-01-01", "male")
	rec.Clinical = []events.ClinicalEvent{
		snomed(BMIStagePRIMIS, "2020-01-01"),
		snomed(SevObesityPRIMIS, "2020-06-01"),
	}
	assert.True(t, e.sevObeseGroup(newPatient(rec)))

	rec.Clinical[1] = snomed(SevObesityPRIMIS, "2019-01-01")
	assert.False(t, e.sevObeseGroup(newPatient(rec)))

	bmi := 41.2
	rec.Clinical = append(rec.Clinical, events.ClinicalEvent{Date: d("2020-09-01"), SNOMEDCode: code(BMIPRIMIS), NumericValue: &bmi})
	assert.True(t, e.sevObeseGroup(newPatient(rec)))
}

func TestResolutionComparisons(t *testing.T) {
	e := testEngine(t)
	diab := e.unresolved(DiabPRIMIS, DMResPRIMIS)

	rec := person("p6", "1960-01-01", "female")
	rec.Clinical = []events.ClinicalEvent{snomed(DiabPRIMIS, "2019-01-01")}
	assert.True(t, diab(newPatient(rec)))

	rec.Clinical = append(rec.Clinical, snomed(DMResPRIMIS, "2019-01-01"))
	assert.False(t, diab(newPatient(rec)), "resolution on the same day overrides")

	rec.Clinical = []events.ClinicalEvent{snomed(DMResPRIMIS, "2018-01-01"), snomed(DiabPRIMIS, "2019-01-01")}
	assert.True(t, diab(newPatient(rec)))

	rec.Clinical = []events.ClinicalEvent{snomed(CKD15PRIMIS, "2019-01-01"), snomed(CKD35PRIMIS, "2019-01-01")}
	assert.True(t, e.ckdGroup(newPatient(rec)), "stage 3-5 on the same day counts")

	rec.Clinical = []events.ClinicalEvent{snomed(CKD15PRIMIS, "2019-02-01"), snomed(CKD35PRIMIS, "2019-01-01")}
	assert.False(t, e.ckdGroup(newPatient(rec)))
}

func TestAsthmaNeedsThreeMonthsOfSteroids(t *testing.T) {
	e := testEngine(t)
	rec := person("p7", "1990-01-01", "male")
	rec.Clinical = []events.ClinicalEvent{snomed(AstPRIMIS, "2015-01-01")}
	rec.Medications = []events.Medication{
		dispense(AstRxPRIMIS, "2021-02-01"),
		dispense(AstRxPRIMIS, "2020-12-20"),
		dispense(AstRxPRIMIS, "2020-11-20"),
	}
	assert.True(t, e.asthmaGroup(newPatient(rec)))

	rec.Medications = rec.Medications[:2]
	assert.False(t, e.asthmaGroup(newPatient(rec)))

	rec.Clinical = append(rec.Clinical, snomed(AstAdmPRIMIS, "2020-03-01"))
	assert.True(t, e.asthmaGroup(newPatient(rec)))
}

func TestEligibilityBands(t *testing.T) {
	e := testEngine(t)
	cases := []struct {
		name  string
		dob   string
		group string
		date  string
	}{
		{"age 64 in group 07", "1956-06-01", "07", "2021-02-22"},
		{"age 55 in group 08", "1965-06-01", "08", "2021-03-09"},
		{"age_2 45 with age_1 44", "1976-06-15", "10", "2021-04-13"},
		{"age_2 33", "1988-01-01", "11", "2021-05-25"},
		{"age_2 18", "2003-01-01", "12", "2021-06-18"},
		{"child", "2010-01-01", "99", "2100-12-31"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row, err := e.Dates(person("x", tc.dob, "male"))
			require.NoError(t, err)
			assert.Equal(t, tc.group, row.Category("vax_cat_jcvi_group"))
			assert.Equal(t, d(tc.date), row.Date("vax_date_eligible"))
		})
	}
}

func TestCEVAndPregnancy(t *testing.T) {
	e := testEngine(t)
	rec := person("p8", "1985-01-01", "female")
	rec.Clinical = []events.ClinicalEvent{
		snomed(ShieldPRIMIS, "2020-04-01"),
		snomed(PregPRIMIS, "2020-11-01"),
	}
	row, err := e.Dates(rec)
	require.NoError(t, err)
	assert.True(t, row.Bool("cev_group"))
	assert.True(t, row.Bool("preg_group"))
	assert.NotEqual(t, "04", row.Category("vax_cat_jcvi_group"), "pregnant CEV patients are not prioritised")

	rec.Clinical = append(rec.Clinical, snomed(PregDelPRIMIS, "2020-12-01"))
	row, err = e.Dates(rec)
	require.NoError(t, err)
	assert.False(t, row.Bool("preg_group"))
	assert.Equal(t, "04", row.Category("vax_cat_jcvi_group"))

	rec.Clinical = append(rec.Clinical, snomed(NonShieldPRIMIS, "2020-06-01"))
	row, err = e.Dates(rec)
	require.NoError(t, err)
	assert.False(t, row.Bool("cev_group"))
}

func TestVaccinationChain(t *testing.T) {
	e := testEngine(t)
	rec := person("p9", "1950-01-01", "male")
	rec.Vaccinations = []events.Vaccination{
		covidDose("2021-03-20"),
		covidDose("2021-01-05"),
		covidDose("2021-01-05"),
		covidDose("2020-11-01"),
		{Date: d("2021-01-05"), ProductName: PfizerProductName},
	}
	row, err := e.Dates(rec)
	require.NoError(t, err)

	assert.Equal(t, d("2021-01-05"), row.Date("vax_date_covid_1"))
	assert.Equal(t, d("2021-03-20"), row.Date("vax_date_covid_2"))
	assert.Nil(t, row.Get("vax_date_covid_3"))
	n, _ := row.Int("vax_num_covid")
	assert.Equal(t, 4, n)
	assert.Equal(t, d("2021-01-05"), row.Date("vax_date_Pfizer_1"))

	// 2021-03-20 + 14 is before delta, so delta wins.
	assert.Equal(t, d("2021-06-01"), row.Date("index_vax"))
	assert.Equal(t, d("2021-01-05"), row.Date("end_prevax_exposure"))
}

func TestCovidExposureAndSeverity(t *testing.T) {
	e := testEngine(t)
	rec := person("p10", "1960-01-01", "male")
	rec.Tests = []events.TestResult{
		{SpecimenTakenDate: d("2020-03-01")},
		{SpecimenTakenDate: d("2020-04-01"), IsPositive: true},
	}
	rec.Clinical = []events.ClinicalEvent{ctv3Code(code(CovidPrimaryCareCode), "2020-04-03")}
	rec.Admissions = []events.Admission{{
		AdmissionDate:    d("2020-04-10"),
		PrimaryDiagnosis: code(CovidICD10),
	}}

	row, err := e.Extract(rec, CohortPrevax)
	require.NoError(t, err)
	assert.Equal(t, d("2020-04-01"), row.Date("tmp_exp_date_covid19_confirmed_sgss"))
	assert.Equal(t, d("2020-04-03"), row.Date("tmp_exp_date_covid19_confirmed_gp"))
	assert.Equal(t, d("2020-04-01"), row.Date("exp_date_covid19_confirmed"))
	assert.Equal(t, d("2020-04-10"), row.Date("sub_date_covid19_hospital"))
	assert.Equal(t, "hospitalised", row.Category("sub_cat_covid19_hospital"))
	assert.False(t, row.Bool("sub_bin_covid19_confirmed_history"))

	rec.Admissions[0].AdmissionDate = d("2020-05-01")
	row, err = e.Extract(rec, CohortPrevax)
	require.NoError(t, err)
	assert.Equal(t, "non_hospitalised", row.Category("sub_cat_covid19_hospital"))
}

func TestCovariatesAtIndex(t *testing.T) {
	e := testEngine(t)
	imd := 100
	rec := person("p11", "1955-03-01", "female")
	rec.Patient.EthnicityFromSUS = "M"
	rec.Registrations = []events.Registration{{StartDate: d("2010-01-01"), RegionName: "North East"}}
	rec.Addresses = []events.Address{{StartDate: d("2015-01-01"), IMDRounded: &imd, CareHomeRequiresNursing: true}}
	rec.Clinical = []events.ClinicalEvent{
		ctv3Code("SMK_N", "2019-01-01"),
		ctv3Code("SMK_E", "2010-01-01"),
		snomed(HypertensionSNOMED, "2018-01-01"),
	}
	rec.Appointments = []events.Appointment{
		{StartDate: d("2019-06-01"), Status: "Finished"},
		{StartDate: d("2019-07-01"), Status: "Cancelled by Patient"},
		{StartDate: d("2018-01-01"), Status: "Finished"},
	}

	row, err := e.Extract(rec, CohortPrevax)
	require.NoError(t, err)
	age, _ := row.Int("cov_num_age")
	assert.Equal(t, 64, age)
	assert.Equal(t, "Black", row.Category("cov_cat_ethnicity"))
	assert.Equal(t, "1 (most deprived)", row.Category("cov_cat_imd"))
	assert.Equal(t, "North East", row.Category("cov_cat_region"))
	assert.Equal(t, "E", row.Category("cov_cat_smoking_status"))
	assert.True(t, row.Bool("cov_bin_carehome_status"))
	assert.True(t, row.Bool("cov_bin_hypertension"))
	assert.True(t, row.Bool("cov_bin_high_vask_risk"))
	assert.True(t, row.Bool("inex_bin_6m_reg"))
	rate, _ := row.Int("cov_num_consultation_rate")
	assert.Equal(t, 1, rate)
	year, _ := row.Int("qa_num_birth_year")
	assert.Equal(t, 1955, year)

	rec.Clinical = append(rec.Clinical, snomedCode("ETH_3", "2019-05-01"))
	row, err = e.Extract(rec, CohortPrevax)
	require.NoError(t, err)
	assert.Equal(t, "Asian", row.Category("cov_cat_ethnicity"))
}

func TestExtractErrors(t *testing.T) {
	e := testEngine(t)
	_, err := e.Extract(&events.PatientRecord{Patient: events.Patient{ID: "nodob"}}, CohortPrevax)
	require.ErrorIs(t, err, ErrNotInPopulation)

	_, err = e.Extract(person("p", "1950-01-01", "male"), "booster")
	require.ErrorIs(t, err, boundary.ErrUnknownCohort)

	assert.Equal(t, []string{CohortPrevax, CohortVax, CohortUnvax}, e.Cohorts())
}

func TestIMDCascade(t *testing.T) {
	c, err := newIMDCascade()
	require.NoError(t, err)
	assert.Equal(t, "1 (most deprived)", c.Classify(imdInput{rank: 6567, ok: true}))
	assert.Equal(t, "2", c.Classify(imdInput{rank: 6568, ok: true}))
	assert.Equal(t, "2", c.Classify(imdInput{rank: -5, ok: true}))
	assert.Equal(t, "5 (least deprived)", c.Classify(imdInput{rank: 32843, ok: true}))
	assert.Equal(t, "unknown", c.Classify(imdInput{rank: 32844, ok: true}))
	assert.Equal(t, "unknown", c.Classify(imdInput{}))
}
