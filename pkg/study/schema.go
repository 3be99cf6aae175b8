package study

import (
	"fmt"

	"github.com/synaptica-ai/ehrextract/pkg/attributes"
)

var vaxLabels = []string{"covid", "Pfizer", "AstraZeneca", "Moderna"}

func newDatesSchema(cohorts []string) (*attributes.Schema, error) {
	fields := []attributes.Field{attributes.Date("cens_date_death")}
	for _, label := range vaxLabels {
		for n := 1; n <= vaxDoses; n++ {
			fields = append(fields, attributes.Date(fmt.Sprintf("vax_date_%s_%d", label, n)))
		}
	}
	for _, label := range vaxLabels {
		fields = append(fields, attributes.Int("vax_num_"+label))
	}
	fields = append(fields,
		attributes.Int("vax_jcvi_age_1"),
		attributes.Int("vax_jcvi_age_2"),
		attributes.Bool("preg_group"),
		attributes.Bool("cev_group"),
	)
	for _, name := range AtRiskGroups {
		fields = append(fields, attributes.Bool(name))
	}
	fields = append(fields,
		attributes.Bool("atrisk_group"),
		attributes.Bool("longres_group"),
		attributes.Category("vax_cat_jcvi_group"),
		attributes.Date("vax_date_eligible"),
	)
	for _, c := range cohorts {
		fields = append(fields,
			attributes.Date("index_"+c),
			attributes.Date("end_"+c+"_exposure"),
			attributes.Date("end_"+c+"_outcome"),
		)
	}
	return attributes.NewSchema(fields...)
}

func newCohortSchema() (*attributes.Schema, error) {
	fields := []attributes.Field{
		attributes.Date("index_date"),
		attributes.Date("end_date_exposure"),
		attributes.Date("end_date_outcome"),

		attributes.Date("tmp_exp_date_covid19_confirmed_sgss"),
		attributes.Date("tmp_exp_date_covid19_confirmed_gp"),
		attributes.Date("tmp_exp_date_covid19_confirmed_apc"),
		attributes.Date("tmp_exp_date_death"),
		attributes.Bool("tmp_exp_covid19_confirmed_death"),
		attributes.Date("tmp_exp_date_covid19_confirmed_death"),
		attributes.Date("exp_date_covid19_confirmed"),
	}
	for _, name := range OutcomeNames() {
		fields = append(fields, attributes.Date("out_date_"+name))
	}
	for _, name := range []string{
		"cov_bin_cis", "cov_bin_park", "cov_bin_park_risk", "cov_bin_dem_any",
		"cov_bin_mnd", "cov_bin_ms", "cov_bin_migraine", "cov_bin_high_vask_risk",
	} {
		fields = append(fields, attributes.Bool(name))
	}
	fields = append(fields,
		attributes.Date("cov_date_of_birth"),
		attributes.Int("cov_num_age"),
		attributes.Category("cov_cat_sex"),
		attributes.Category("cov_cat_ethnicity"),
		attributes.Category("cov_cat_imd"),
		attributes.Category("cov_cat_region"),
		attributes.Int("cov_num_consultation_rate"),
		attributes.Category("cov_cat_smoking_status"),
	)
	for _, name := range []string{
		"cov_bin_cocp", "cov_bin_hrt", "cov_bin_obesity", "cov_bin_carer",
		"cov_bin_healthcare_worker", "cov_bin_carehome_status", "cov_bin_ami",
		"cov_bin_liver_disease", "cov_bin_ckd", "cov_bin_cancer", "cov_bin_copd",
		"cov_bin_depression", "cov_bin_diabetes", "cov_bin_hypertension", "cov_bin_stroke_isch",

		"tmp_sub_bin_priorcovid19_confirmed_sgss", "tmp_sub_bin_priorcovid19_confirmed_gp",
		"tmp_sub_bin_priorcovid19_confirmed_apc", "sub_bin_covid19_confirmed_history",
	} {
		fields = append(fields, attributes.Bool(name))
	}
	fields = append(fields,
		attributes.Date("sub_date_covid19_hospital"),
		attributes.Category("sub_cat_covid19_hospital"),
		attributes.Bool("inex_bin_6m_reg"),
		attributes.Bool("inex_bin_alive"),
		attributes.Date("cens_date_dereg"),
		attributes.Bool("qa_bin_prostate_cancer"),
		attributes.Bool("qa_bin_pregnancy"),
		attributes.Int("qa_num_birth_year"),
		attributes.Bool("qa_bin_hrtcocp"),
	)
	return attributes.NewSchema(fields...)
}
