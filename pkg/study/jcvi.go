package study

import (
	"fmt"

	"github.com/synaptica-ai/ehrextract/pkg/cascade"
	"github.com/synaptica-ai/ehrextract/pkg/riskgroup"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
)

// jcviWindows are declared from reference dates and validated once.
type jcviWindows struct {
	pregnancy  temporal.Window
	beforeCEV  temporal.Window
	beforeAR   temporal.Window
	astRxMonth [3]temporal.Window
	immRx      temporal.Window
	beforeVax1 temporal.Window
	cevEnd     temporal.Date
	arEnd      temporal.Date
}

func newJCVIWindows(refs temporal.References) (jcviWindows, error) {
	cev := refs.Date(RefCEV)
	ar := refs.Date(RefAtRisk)
	w := jcviWindows{
		pregnancy: temporal.Between(cev.AddDays(-252), cev.AddDays(-1)),
		beforeCEV: temporal.Before(cev),
		beforeAR:  temporal.Before(ar),
		astRxMonth: [3]temporal.Window{
			temporal.Between(ar.AddDays(-31), ar.AddDays(-1)),
			temporal.Between(ar.AddDays(-61), ar.AddDays(-32)),
			temporal.Between(ar.AddDays(-91), ar.AddDays(-62)),
		},
		immRx:      temporal.Between(ar.AddDays(-180), ar.AddDays(-1)),
		beforeVax1: temporal.Before(refs.Date(Vax1Earliest)),
		cevEnd:     cev.AddDays(-1),
		arEnd:      ar.AddDays(-1),
	}
	all := []temporal.Window{w.pregnancy, w.beforeCEV, w.beforeAR, w.immRx, w.beforeVax1}
	all = append(all, w.astRxMonth[:]...)
	for _, win := range all {
		if err := win.Validate(); err != nil {
			return jcviWindows{}, fmt.Errorf("jcvi window %s: %w", win, err)
		}
	}
	return w, nil
}

type jcviInput struct {
	age1, age2       int
	hasAge1, hasAge2 bool
	longres          bool
	cev              bool
	preg             bool
	atrisk           bool
}

func (in jcviInput) age1AtLeast(n int) bool { return in.hasAge1 && in.age1 >= n }
func (in jcviInput) age1Below(n int) bool   { return in.hasAge1 && in.age1 < n }
func (in jcviInput) age2AtLeast(n int) bool { return in.hasAge2 && in.age2 >= n }
func (in jcviInput) age2Below(n int) bool   { return in.hasAge2 && in.age2 < n }

type jcviResult struct {
	input    jcviInput
	risk     riskgroup.Result
	group    string
	eligible temporal.Date
}

// Rule order matters: care-home residents over 65 and the CEV cohort must be
// caught before the broader age bands.
func newJCVIGroupCascade() (*cascade.Cascade[jcviInput, string], error) {
	return cascade.Define[jcviInput, string]("vax_cat_jcvi_group").
		When("longres_over_65", func(in jcviInput) bool { return in.longres && in.hasAge1 && in.age1 > 65 }, "01").
		When("age_80", func(in jcviInput) bool { return in.age1AtLeast(80) }, "02").
		When("age_75", func(in jcviInput) bool { return in.age1AtLeast(75) }, "03").
		When("age_70_or_cev", func(in jcviInput) bool {
			return in.age1AtLeast(70) || (in.cev && in.age1AtLeast(16) && !in.preg)
		}, "04").
		When("age_65", func(in jcviInput) bool { return in.age1AtLeast(65) }, "05").
		When("atrisk", func(in jcviInput) bool { return in.atrisk && in.age1AtLeast(16) }, "06").
		When("age_60", func(in jcviInput) bool { return in.age1AtLeast(60) }, "07").
		When("age_55", func(in jcviInput) bool { return in.age1AtLeast(55) }, "08").
		When("age_50", func(in jcviInput) bool { return in.age1AtLeast(50) }, "09").
		When("age_40", func(in jcviInput) bool { return in.age2AtLeast(40) }, "10").
		When("age_30", func(in jcviInput) bool { return in.age2AtLeast(30) }, "11").
		When("age_18", func(in jcviInput) bool { return in.age2AtLeast(18) }, "12").
		Otherwise("99").
		Build()
}

type eligibilityInput struct {
	group string
	jcviInput
}

// NeverEligible is the eligibility date of patients outside every group.
var NeverEligible = temporal.NewDate(2100, 12, 31)

func newEligibilityCascade() (*cascade.Cascade[eligibilityInput, temporal.Date], error) {
	in := func(groups ...string) cascade.Predicate[eligibilityInput] {
		return func(e eligibilityInput) bool {
			for _, g := range groups {
				if e.group == g {
					return true
				}
			}
			return false
		}
	}
	age1 := func(group string, lo, hi int) cascade.Predicate[eligibilityInput] {
		return func(e eligibilityInput) bool {
			return e.group == group && e.age1AtLeast(lo) && e.age1Below(hi)
		}
	}
	age2 := func(group string, lo, hi int) cascade.Predicate[eligibilityInput] {
		return func(e eligibilityInput) bool {
			return e.group == group && e.age2AtLeast(lo) && e.age2Below(hi)
		}
	}
	// Group 10 bands bound age_2 from below and age_1 from above.
	mixed := func(lo2, hi1 int) cascade.Predicate[eligibilityInput] {
		return func(e eligibilityInput) bool {
			return e.group == "10" && e.age2AtLeast(lo2) && e.age1Below(hi1)
		}
	}
	date := temporal.NewDate

	return cascade.Define[eligibilityInput, temporal.Date]("vax_date_eligible").
		When("01_02", in("01", "02"), date(2020, 12, 8)).
		When("03_04", in("03", "04"), date(2021, 1, 18)).
		When("05_06", in("05", "06"), date(2021, 2, 15)).
		When("07_64", age1("07", 64, 65), date(2021, 2, 22)).
		When("07_60", age1("07", 60, 64), date(2021, 3, 1)).
		When("08_56", age1("08", 56, 60), date(2021, 3, 8)).
		When("08_55", age1("08", 55, 56), date(2021, 3, 9)).
		When("09_50", age1("09", 50, 55), date(2021, 3, 19)).
		When("10_45", mixed(45, 50), date(2021, 4, 13)).
		When("10_44", mixed(44, 45), date(2021, 4, 26)).
		When("10_42", mixed(42, 44), date(2021, 4, 27)).
		When("10_40", mixed(40, 42), date(2021, 4, 30)).
		When("11_38", age2("11", 38, 40), date(2021, 5, 13)).
		When("11_36", age2("11", 36, 38), date(2021, 5, 19)).
		When("11_34", age2("11", 34, 36), date(2021, 5, 21)).
		When("11_32", age2("11", 32, 34), date(2021, 5, 25)).
		When("11_30", age2("11", 30, 32), date(2021, 5, 26)).
		When("12_25", age2("12", 25, 30), date(2021, 6, 8)).
		When("12_23", age2("12", 23, 25), date(2021, 6, 15)).
		When("12_21", age2("12", 21, 23), date(2021, 6, 16)).
		When("12_18", age2("12", 18, 21), date(2021, 6, 18)).
		Otherwise(NeverEligible).
		Build()
}

// AtRiskGroups lists the sub-groups combined into atrisk_group.
var AtRiskGroups = []string{
	"asthma_group", "resp_group", "cns_group", "diab_group", "sevment_group", "chd_group",
	"ckd_group", "cld_group", "immuno_group", "spln_group", "learndis_group", "sevobese_group",
}

func (e *Engine) newAtRiskAggregator() (*riskgroup.Aggregator[*patient], error) {
	evals := map[string]func(*patient) bool{
		"asthma_group":   e.asthmaGroup,
		"resp_group":     e.everBeforeAR(RespPRIMIS),
		"cns_group":      e.everBeforeAR(CNSPRIMIS),
		"diab_group":     e.unresolved(DiabPRIMIS, DMResPRIMIS),
		"sevment_group":  e.unresolved(SevMentalPRIMIS, SMHResPRIMIS),
		"chd_group":      e.everBeforeAR(CHDPRIMIS),
		"ckd_group":      e.ckdGroup,
		"cld_group":      e.everBeforeAR(CLDPRIMIS),
		"immuno_group":   e.immunoGroup,
		"spln_group":     e.everBeforeAR(SplnPRIMIS),
		"learndis_group": e.everBeforeAR(LearnDisPRIMIS),
		"sevobese_group": e.sevObeseGroup,
	}
	list := make([]riskgroup.Evaluator[*patient], 0, len(AtRiskGroups))
	for _, name := range AtRiskGroups {
		list = append(list, riskgroup.Evaluator[*patient]{Name: name, Eval: evals[name]})
	}
	return riskgroup.New(riskgroup.AnyOf, list...)
}

func (e *Engine) everBeforeAR(set string) func(*patient) bool {
	m := e.lib.get(set)
	return func(p *patient) bool {
		return m.Exists(p.snomed, e.jw.beforeAR)
	}
}

// lastBeforeAR is the date of the latest code before ref_ar.
func (e *Engine) lastBeforeAR(p *patient, set string) temporal.Date {
	return e.lib.get(set).Last(p.snomed, e.jw.beforeAR).Date
}

// unresolved holds when the latest diagnosis has no resolution code, or
// the latest resolution is strictly earlier than it.
func (e *Engine) unresolved(diagnosis, resolution string) func(*patient) bool {
	return func(p *patient) bool {
		dx := e.lastBeforeAR(p, diagnosis)
		res := e.lastBeforeAR(p, resolution)
		return (res.IsNull() && dx.IsNotNull()) || res.Before(dx)
	}
}

func (e *Engine) asthmaGroup(p *patient) bool {
	if e.lib.get(AstAdmPRIMIS).Exists(p.snomed, e.jw.beforeAR) {
		return true
	}
	if !e.lib.get(AstPRIMIS).Exists(p.snomed, e.jw.beforeAR) {
		return false
	}
	rx := e.lib.get(AstRxPRIMIS)
	for _, month := range e.jw.astRxMonth {
		if !rx.Exists(p.meds, month) {
			return false
		}
	}
	return true
}

func (e *Engine) ckdGroup(p *patient) bool {
	if e.lib.get(CKDPRIMIS).Exists(p.snomed, e.jw.beforeAR) {
		return true
	}
	ckd15 := e.lastBeforeAR(p, CKD15PRIMIS)
	ckd35 := e.lastBeforeAR(p, CKD35PRIMIS)
	return (ckd15.IsNotNull() && ckd35.OnOrAfter(ckd15)) || (ckd35.IsNotNull() && ckd15.IsNull())
}

func (e *Engine) immunoGroup(p *patient) bool {
	return e.lib.get(ImmDxPRIMIS).Exists(p.snomed, e.jw.beforeAR) ||
		e.lib.get(ImmRxPRIMIS).Exists(p.meds, e.jw.immRx)
}

// sevObeseGroup looks for a severe obesity code recorded no earlier than the
// latest BMI stage code, or a BMI of 40 or more.
func (e *Engine) sevObeseGroup(p *patient) bool {
	stage := e.lastBeforeAR(p, BMIStagePRIMIS)
	sevObesity := e.lib.get(SevObesityPRIMIS).Last(p.snomed, temporal.Between(stage, e.jw.arEnd)).Date
	bmi := e.lib.get(BMIPRIMIS).Last(p.snomed, e.jw.beforeAR)

	if sevObesity.IsNotNull() && bmi.Date.IsNull() {
		return true
	}
	if sevObesity.After(bmi.Date) {
		return true
	}
	value, ok := p.numericValue(bmi.Index)
	return ok && value >= 40
}

func (e *Engine) pregGroup(p *patient, in jcviInput) bool {
	preg := e.lib.get(PregPRIMIS).Last(p.snomed, e.jw.pregnancy).Date
	delivery := e.lib.get(PregDelPRIMIS).Last(p.snomed, e.jw.pregnancy).Date
	return preg.IsNotNull() &&
		p.rec.Patient.Sex == "female" &&
		in.age1Below(50) &&
		(delivery.OnOrBefore(preg) || delivery.IsNull())
}

// cevGroup: a shielding code before ref_cev not superseded by a later
// non-shielding code.
func (e *Engine) cevGroup(p *patient) bool {
	shield := e.lib.get(ShieldPRIMIS).Last(p.snomed, e.jw.beforeCEV)
	if !shield.Found {
		return false
	}
	later := temporal.Between(shield.Date.AddDays(1), e.jw.cevEnd)
	return !e.lib.get(NonShieldPRIMIS).Exists(p.snomed, later)
}

func (e *Engine) jcvi(p *patient) jcviResult {
	var in jcviInput
	in.age1, in.hasAge1 = p.ageOn(e.refs.Date(RefAge1))
	in.age2, in.hasAge2 = p.ageOn(e.refs.Date(RefAge2))
	in.preg = e.pregGroup(p, in)
	in.cev = e.cevGroup(p)
	in.longres = e.lib.get(LongResPRIMIS).Exists(p.snomed, e.jw.beforeVax1)

	risk := e.atRisk.Aggregate(p)
	in.atrisk = risk.Compound

	group := e.jcviGroup.Classify(in)
	return jcviResult{
		input:    in,
		risk:     risk,
		group:    group,
		eligible: e.eligibility.Classify(eligibilityInput{group: group, jcviInput: in}),
	}
}
