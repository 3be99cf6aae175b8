package study

import (
	"github.com/synaptica-ai/ehrextract/pkg/cascade"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
)

type ethnicityInput struct {
	category string // ethnicity_snomed category of the latest code
	sus      string // SUS ethnic category code
}

// Primary-care codes win over SUS; SUS codes follow the 2001 census letters.
func newEthnicityCascade() (*cascade.Cascade[ethnicityInput, string], error) {
	category := func(c string) cascade.Predicate[ethnicityInput] {
		return func(in ethnicityInput) bool { return in.category == c }
	}
	sus := func(codes ...string) cascade.Predicate[ethnicityInput] {
		return func(in ethnicityInput) bool {
			for _, c := range codes {
				if in.sus == c {
					return true
				}
			}
			return false
		}
	}
	return cascade.Define[ethnicityInput, string]("cov_cat_ethnicity").
		When("gp_white", category("1"), "White").
		When("gp_mixed", category("2"), "Mixed").
		When("gp_asian", category("3"), "Asian").
		When("gp_black", category("4"), "Black").
		When("gp_other", category("5"), "Other").
		When("sus_white", sus("A", "B", "C"), "White").
		When("sus_mixed", sus("D", "E", "F", "G"), "Mixed").
		When("sus_asian", sus("H", "J", "K", "L"), "Asian").
		When("sus_black", sus("M", "N", "P"), "Black").
		When("sus_other", sus("R", "S"), "Other").
		Otherwise("Missing").
		Build()
}

type imdInput struct {
	rank int
	ok   bool
}

const maxIMD = 32844

// Only the first band checks the lower bound, so negative ranks land in "2".
func newIMDCascade() (*cascade.Cascade[imdInput, string], error) {
	below := func(k int) cascade.Predicate[imdInput] {
		limit := maxIMD * k / 5
		return func(in imdInput) bool { return in.ok && in.rank < limit }
	}
	return cascade.Define[imdInput, string]("cov_cat_imd").
		When("quintile_1", func(in imdInput) bool { return in.ok && in.rank >= 0 && in.rank < maxIMD/5 }, "1 (most deprived)").
		When("quintile_2", below(2), "2").
		When("quintile_3", below(3), "3").
		When("quintile_4", below(4), "4").
		When("quintile_5", below(5), "5 (least deprived)").
		Otherwise("unknown").
		Build()
}

type smokingInput struct {
	recent string // category of the latest smoking_clear code
	ever   bool
}

func newSmokingCascade() (*cascade.Cascade[smokingInput, string], error) {
	return cascade.Define[smokingInput, string]("cov_cat_smoking_status").
		When("current", func(in smokingInput) bool { return in.recent == "S" }, "S").
		When("ex", func(in smokingInput) bool { return in.recent == "E" || (in.recent == "N" && in.ever) }, "E").
		When("never", func(in smokingInput) bool { return in.recent == "N" && !in.ever }, "N").
		Otherwise("M").
		Build()
}

type severityInput struct {
	infection temporal.Date
	admission temporal.Date
}

// Admission within 28 days of the first confirmed infection counts as
// hospitalised.
func newSeverityCascade() (*cascade.Cascade[severityInput, string], error) {
	return cascade.Define[severityInput, string]("sub_cat_covid19_hospital").
		When("hospitalised", func(in severityInput) bool {
			days, ok := in.infection.DaysUntil(in.admission)
			return ok && days >= 0 && days < 29
		}, "hospitalised").
		When("non_hospitalised", func(in severityInput) bool { return in.infection.IsNotNull() }, "non_hospitalised").
		When("no_infection", func(in severityInput) bool { return in.infection.IsNull() }, "no_infection").
		Otherwise("").
		Build()
}
