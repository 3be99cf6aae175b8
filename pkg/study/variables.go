package study

import (
	"github.com/synaptica-ai/ehrextract/pkg/attributes"
	"github.com/synaptica-ai/ehrextract/pkg/boundary"
	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
)

type stream int

const (
	primaryCareSNOMED stream = iota
	primaryCareCTV3
	hospital
	dispensed
)

func (p *patient) stream(s stream) events.Source {
	switch s {
	case primaryCareCTV3:
		return p.ctv3
	case hospital:
		return p.apc
	case dispensed:
		return p.meds
	default:
		return p.snomed
	}
}

// lookup is one code set looked up in one stream.
type lookup struct {
	set string
	in  stream
}

func gp(set string) lookup   { return lookup{set: set, in: primaryCareSNOMED} }
func ctv3(set string) lookup { return lookup{set: set, in: primaryCareCTV3} }
func apc(set string) lookup  { return lookup{set: set, in: hospital} }
func meds(set string) lookup { return lookup{set: set, in: dispensed} }

// anyIn reports a match for any lookup inside window.
func (e *Engine) anyIn(p *patient, window temporal.Window, lookups ...lookup) bool {
	for _, pr := range lookups {
		if e.lib.get(pr.set).Exists(p.stream(pr.in), window) {
			return true
		}
	}
	return false
}

// outcome is first recorded in primary care, hospital or on the death
// certificate. An empty icd10 set means primary care only.
type outcome struct {
	name   string
	snomed string
	icd10  string
}

var outcomes = []outcome{
	{"dem_alz", DemAlzSNOMED, DemAlzICD10},
	{"dem_vasc", DemVascSNOMED, DemVascICD10},
	{"dem_lb", DemLBSNOMED, ""},
	{"dem_other", DemOtherSNOMED, DemOtherICD10},
	{"dem_unspec", DemUnspecSNOMED, DemUnspecICD10},
	{"dem_any", demAnySNOMED, demAnyICD10},
	{"cis", CISSNOMED, ""},
	{"park", ParkSNOMED, ParkICD10},
	{"rls", RLSSNOMED, ""},
	{"rsd", RSDSNOMED, RSDICD10},
	{"mnd", MNDSNOMED, MNDICD10},
	{"ms", MSSNOMED, MSICD10},
	{"migraine", MigraineSNOMED, MigraineICD10},
}

// combinedOutcomes are the earliest of two other outcomes.
var combinedOutcomes = []struct {
	name  string
	parts [2]string
}{
	{"park_risk", [2]string{"rls", "rsd"}},
	{"neuro_other", [2]string{"mnd", "ms"}},
}

// OutcomeNames lists every out_date_* suffix in output order.
func OutcomeNames() []string {
	return []string{
		"dem_alz", "dem_vasc", "dem_lb", "dem_other", "dem_unspec", "dem_any", "cis",
		"park", "rls", "rsd", "park_risk", "mnd", "ms", "neuro_other", "migraine",
	}
}

func (e *Engine) outcomeDate(p *patient, o outcome, window temporal.Window) temporal.Date {
	dates := []temporal.Date{e.lib.get(o.snomed).First(p.snomed, window).Date}
	if o.icd10 != "" {
		m := e.lib.get(o.icd10)
		dates = append(dates, m.First(p.apc, window).Date, m.First(p.ons, window).Date)
	}
	return temporal.MinimumOf(dates...)
}

func (e *Engine) outcomes(p *patient, window temporal.Window) map[string]temporal.Date {
	out := make(map[string]temporal.Date, len(outcomes)+len(combinedOutcomes))
	for _, o := range outcomes {
		out[o.name] = e.outcomeDate(p, o, window)
	}
	for _, c := range combinedOutcomes {
		out[c.name] = temporal.MinimumOf(out[c.parts[0]], out[c.parts[1]])
	}
	return out
}

type exposure struct {
	sgss, gp, apc temporal.Date
	death         temporal.Date
	covidOnDeath  bool
	confirmed     temporal.Date
}

func (e *Engine) exposure(p *patient, window temporal.Window) exposure {
	var x exposure
	x.sgss = e.lib.positiveTest.First(p.tests, window).Date
	x.gp = e.lib.get(covidPrimaryCare).First(p.ctv3, window).Date
	x.apc = e.lib.covidAPC.First(p.apc, window).Date
	x.death = p.onsDeathDate()
	x.covidOnDeath = e.lib.get(CovidICD10).Exists(p.ons, window)
	x.confirmed = temporal.MinimumOf(x.sgss, x.gp, x.apc, temporal.Case(x.covidOnDeath, x.death))
	return x
}

// history flags are "ever recorded before index".
func (e *Engine) history(p *patient, before temporal.Window) map[string]bool {
	hypertension := e.anyIn(p, before, gp(HypertensionSNOMED), meds(HypertensionDrugs), apc(HypertensionICD10))
	diabetes := e.anyIn(p, before, gp(DiabetesSNOMED), meds(DiabetesDrugs), apc(DiabetesICD10))
	return map[string]bool{
		"cov_bin_cis":            e.anyIn(p, before, gp(CISSNOMED)),
		"cov_bin_park":           e.anyIn(p, before, gp(ParkSNOMED), apc(ParkICD10)),
		"cov_bin_park_risk":      e.anyIn(p, before, gp(RLSSNOMED), gp(RSDSNOMED), apc(RSDICD10)),
		"cov_bin_dem_any":        e.anyIn(p, before, gp(demAnySNOMED), apc(demAnyICD10)),
		"cov_bin_mnd":            e.anyIn(p, before, gp(MNDSNOMED), apc(MNDICD10)),
		"cov_bin_ms":             e.anyIn(p, before, gp(MSSNOMED), apc(MSICD10)),
		"cov_bin_migraine":       e.anyIn(p, before, gp(MigraineSNOMED), apc(MigraineICD10)),
		"cov_bin_high_vask_risk": hypertension || diabetes,

		"cov_bin_cocp":          e.anyIn(p, before, meds(COCPDrugs)),
		"cov_bin_hrt":           e.anyIn(p, before, meds(HRTDrugs)),
		"cov_bin_obesity":       e.anyIn(p, before, gp(BMIObesitySNOMED), apc(BMIObesityICD10)),
		"cov_bin_carer":         e.anyIn(p, before, gp(CarerPRIMIS)),
		"cov_bin_ami":           e.anyIn(p, before, gp(AMISNOMED), apc(amiAnyICD10)),
		"cov_bin_liver_disease": e.anyIn(p, before, gp(LiverDiseaseSNOMED), apc(LiverDiseaseICD10)),
		"cov_bin_ckd":           e.anyIn(p, before, gp(CKDSNOMED), apc(CKDICD10)),
		"cov_bin_cancer":        e.anyIn(p, before, gp(CancerSNOMED), apc(CancerICD10)),
		"cov_bin_copd":          e.anyIn(p, before, ctv3(COPDCTV3), apc(COPDICD10)),
		"cov_bin_depression":    e.anyIn(p, before, gp(DepressionSNOMED), apc(DepressionICD10)),
		"cov_bin_diabetes":      diabetes,
		"cov_bin_hypertension":  hypertension,
		"cov_bin_stroke_isch":   e.anyIn(p, before, gp(StrokeIschSNOMED), apc(StrokeIschICD10)),

		"tmp_sub_bin_priorcovid19_confirmed_sgss": e.lib.positiveTest.Exists(p.tests, before),
		"tmp_sub_bin_priorcovid19_confirmed_gp":   e.lib.get(covidPrimaryCare).Exists(p.ctv3, before),
		"tmp_sub_bin_priorcovid19_confirmed_apc":  e.lib.covidAPC.Exists(p.apc, before),

		"qa_bin_prostate_cancer": e.anyIn(p, before, gp(ProstateCancerSNOMED), apc(ProstateCancerICD10)),
		"qa_bin_pregnancy":       e.anyIn(p, before, gp(PregnancySNOMED)),
		"qa_bin_hrtcocp":         e.anyIn(p, before, meds(hrtCOCPDrugs)),
	}
}

func (e *Engine) ethnicityOn(p *patient, index temporal.Date) string {
	in := ethnicityInput{sus: p.rec.Patient.EthnicityFromSUS}
	latest := e.lib.get(EthnicitySNOMED).Last(p.snomed, temporal.OnOrBefore(index))
	if latest.Found {
		in.category, _ = e.lib.get(EthnicitySNOMED).Codes().Category(latest.Code)
	}
	return e.ethnicity.Classify(in)
}

func (e *Engine) smokingOn(p *patient, before temporal.Window) string {
	in := smokingInput{ever: e.lib.get(smokingEver).Exists(p.ctv3, before)}
	latest := e.lib.get(SmokingClear).Last(p.ctv3, before)
	if latest.Found {
		in.recent, _ = e.lib.get(SmokingClear).Codes().Category(latest.Code)
	}
	return e.smoking.Classify(in)
}

const maxConsultations = 365

func (e *Engine) consultationRate(p *patient, index temporal.Date) int {
	n := e.lib.get(attendedStatus).Count(p.appts, temporal.Between(index.AddDays(-365), index))
	if n > maxConsultations {
		return maxConsultations
	}
	return n
}

// fillCohort writes every per-cohort variable for window w.
func (e *Engine) fillCohort(row *attributes.Row, p *patient, w boundary.Window) {
	index := w.Index
	before := temporal.Before(index)

	row.SetDate("index_date", index)
	row.SetDate("end_date_exposure", w.EndExposure)
	row.SetDate("end_date_outcome", w.EndOutcome)

	x := e.exposure(p, temporal.Between(index, w.EndExposure))
	row.SetDate("tmp_exp_date_covid19_confirmed_sgss", x.sgss)
	row.SetDate("tmp_exp_date_covid19_confirmed_gp", x.gp)
	row.SetDate("tmp_exp_date_covid19_confirmed_apc", x.apc)
	row.SetDate("tmp_exp_date_death", x.death)
	row.SetBool("tmp_exp_covid19_confirmed_death", x.covidOnDeath)
	row.SetDate("tmp_exp_date_covid19_confirmed_death", temporal.Case(x.covidOnDeath, x.death))
	row.SetDate("exp_date_covid19_confirmed", x.confirmed)

	out := e.outcomes(p, temporal.Between(index, w.EndOutcome))
	for _, name := range OutcomeNames() {
		row.SetDate("out_date_"+name, out[name])
	}

	for name, v := range e.history(p, before) {
		row.SetBool(name, v)
	}

	row.SetDate("cov_date_of_birth", p.dob())
	age, ok := p.ageOn(index)
	row.SetNullableInt("cov_num_age", age, ok)
	row.SetCategory("cov_cat_sex", p.rec.Patient.Sex)
	row.SetCategory("cov_cat_ethnicity", e.ethnicityOn(p, index))

	imd := imdInput{}
	address, hasAddress := events.AddressOn(p.rec.Addresses, index)
	if hasAddress && address.IMDRounded != nil {
		imd = imdInput{rank: *address.IMDRounded, ok: true}
	}
	row.SetCategory("cov_cat_imd", e.imd.Classify(imd))
	if reg, ok := events.RegistrationOn(p.rec.Registrations, index); ok {
		row.SetCategory("cov_cat_region", reg.RegionName)
	}
	row.SetInt("cov_num_consultation_rate", e.consultationRate(p, index))
	row.SetCategory("cov_cat_smoking_status", e.smokingOn(p, before))
	row.SetBool("cov_bin_healthcare_worker", p.rec.Patient.HealthcareWorker)
	row.SetBool("cov_bin_carehome_status", hasAddress && address.CareHome())

	row.SetBool("sub_bin_covid19_confirmed_history",
		row.Bool("tmp_sub_bin_priorcovid19_confirmed_sgss") ||
			row.Bool("tmp_sub_bin_priorcovid19_confirmed_gp") ||
			row.Bool("tmp_sub_bin_priorcovid19_confirmed_apc"))
	hosp := e.lib.covidAPCPrimary.First(p.apc, temporal.OnOrAfter(x.confirmed)).Date
	row.SetDate("sub_date_covid19_hospital", hosp)
	row.SetCategory("sub_cat_covid19_hospital", e.severity.Classify(severityInput{infection: x.confirmed, admission: hosp}))

	row.SetBool("inex_bin_6m_reg", events.RegisteredAcross(p.rec.Registrations, index.AddDays(-180), index))
	dod := p.rec.Patient.DateOfDeath
	ons := p.onsDeathDate()
	row.SetBool("inex_bin_alive", (dod.IsNull() || dod.After(index)) && (ons.IsNull() || ons.After(index)))
	row.SetDate("cens_date_dereg", w.Deregistration)

	year, ok := p.dob().Year()
	row.SetNullableInt("qa_num_birth_year", year, ok)
}
