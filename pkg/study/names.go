package study

// Reference dates read from the study dates file.
const (
	RefAge1         = "ref_age_1"
	RefAge2         = "ref_age_2"
	RefCEV          = "ref_cev"
	RefAtRisk       = "ref_ar"
	PandemicStart   = "pandemic_start"
	Vax1Earliest    = "vax1_earliest"
	DeltaDate       = "delta_date"
	OmicronDate     = "omicron_date"
	AllEligible     = "all_eligible"
	LastCollectDate = "lcd_date"
)

// RequiredReferences are checked by NewEngine.
var RequiredReferences = []string{
	RefAge1, RefAge2, RefCEV, RefAtRisk, PandemicStart, Vax1Earliest,
	DeltaDate, OmicronDate, AllEligible, LastCollectDate,
}

// Code sets loaded from the code list table.
const (
	// COVID-19
	CovidICD10               = "covid_codes"
	CovidPrimaryCarePositive = "covid_primary_care_positive_test"
	CovidPrimaryCareCode     = "covid_primary_care_code"
	CovidPrimaryCareSequelae = "covid_primary_care_sequalae"

	// Covariates
	EthnicitySNOMED      = "ethnicity_snomed"
	SmokingClear         = "smoking_clear"
	BMIObesitySNOMED     = "bmi_obesity_snomed"
	BMIObesityICD10      = "bmi_obesity_icd10"
	CarerPRIMIS          = "carer_primis"
	StrokeIschSNOMED     = "stroke_isch_snomed"
	StrokeIschICD10      = "stroke_isch_icd10"
	LiverDiseaseSNOMED   = "liver_disease_snomed"
	LiverDiseaseICD10    = "liver_disease_icd10"
	COPDCTV3             = "copd_ctv3"
	COPDICD10            = "copd_icd10"
	CKDSNOMED            = "ckd_snomed"
	CKDICD10             = "ckd_icd10"
	CancerSNOMED         = "cancer_snomed"
	CancerICD10          = "cancer_icd10"
	HypertensionICD10    = "hypertension_icd10"
	HypertensionDrugs    = "hypertension_drugs_dmd"
	HypertensionSNOMED   = "hypertension_snomed"
	DiabetesICD10        = "diabetes_icd10"
	DiabetesDrugs        = "diabetes_drugs_dmd"
	DiabetesSNOMED       = "diabetes_snomed"
	DepressionSNOMED     = "depression_snomed"
	DepressionICD10      = "depression_icd10"
	AMISNOMED            = "ami_snomed"
	AMIICD10             = "ami_icd10"
	AMIPriorICD10        = "ami_prior_icd10"
	ProstateCancerSNOMED = "prostate_cancer_snomed"
	ProstateCancerICD10  = "prostate_cancer_icd10"
	PregnancySNOMED      = "pregnancy_snomed"
	COCPDrugs            = "cocp_dmd"
	HRTDrugs             = "hrt_dmd"

	// JCVI (PRIMIS)
	BMIPRIMIS        = "bmi_primis"
	LearnDisPRIMIS   = "learndis_primis"
	LongResPRIMIS    = "longres_primis"
	ShieldPRIMIS     = "shield_primis"
	NonShieldPRIMIS  = "nonshield_primis"
	PregPRIMIS       = "preg_primis"
	PregDelPRIMIS    = "pregdel_primis"
	BMIStagePRIMIS   = "bmi_stage_primis"
	SevObesityPRIMIS = "sev_obesity_primis"
	AstPRIMIS        = "ast_primis"
	AstAdmPRIMIS     = "astadm_primis"
	AstRxPRIMIS      = "astrx_primis"
	RespPRIMIS       = "resp_primis"
	CNSPRIMIS        = "cns_primis"
	SplnPRIMIS       = "spln_primis"
	DiabPRIMIS       = "diab_primis"
	DMResPRIMIS      = "dmres_primis"
	SevMentalPRIMIS  = "sev_mental_primis"
	SMHResPRIMIS     = "smhres_primis"
	CHDPRIMIS        = "chd_primis"
	CKDPRIMIS        = "ckd_primis"
	CKD15PRIMIS      = "ckd15_primis"
	CKD35PRIMIS      = "ckd35_primis"
	CLDPRIMIS        = "cld_primis"
	ImmDxPRIMIS      = "immdx_primis"
	ImmRxPRIMIS      = "immrx_primis"

	// Neurological outcomes
	DemAlzSNOMED    = "dem_alz_snomed"
	DemAlzICD10     = "dem_alz_icd10"
	DemVascSNOMED   = "dem_vasc_snomed"
	DemVascICD10    = "dem_vasc_icd10"
	DemLBSNOMED     = "dem_lb_snomed"
	DemOtherSNOMED  = "dem_other_snomed"
	DemOtherICD10   = "dem_other_icd10"
	DemUnspecSNOMED = "dem_unspec_snomed"
	DemUnspecICD10  = "dem_unspec_icd10"
	CISSNOMED       = "cis_snomed"
	ParkSNOMED      = "park_snomed"
	ParkICD10       = "park_icd10"
	RLSSNOMED       = "rls_snomed"
	RSDSNOMED       = "rsd_snomed"
	RSDICD10        = "rsd_icd10"
	MigraineSNOMED  = "migraine_snomed"
	MigraineICD10   = "migraine_icd10"
	MNDSNOMED       = "mnd_snomed"
	MNDICD10        = "mnd_icd10"
	MSSNOMED        = "ms_snomed"
	MSICD10         = "ms_icd10"
)

// Code sets derived at engine construction.
const (
	covidPrimaryCare = "covid_primary_care_all"
	smokingEver      = "smoking_ever"
	demAnySNOMED     = "dem_any_snomed"
	demAnyICD10      = "dem_any_icd10"
	amiAnyICD10      = "ami_any_icd10"
	hrtCOCPDrugs     = "hrt_cocp_dmd"
	covidTarget      = "covid_vaccine_target"
	pfizerProduct    = "pfizer_product"
	azProduct        = "astrazeneca_product"
	modernaProduct   = "moderna_product"
	attendedStatus   = "attended_appointment_status"
)

// RequiredCodeSets are checked by NewEngine.
var RequiredCodeSets = []string{
	CovidICD10, CovidPrimaryCarePositive, CovidPrimaryCareCode, CovidPrimaryCareSequelae,
	EthnicitySNOMED, SmokingClear, BMIObesitySNOMED, BMIObesityICD10, CarerPRIMIS,
	StrokeIschSNOMED, StrokeIschICD10, LiverDiseaseSNOMED, LiverDiseaseICD10,
	COPDCTV3, COPDICD10, CKDSNOMED, CKDICD10, CancerSNOMED, CancerICD10,
	HypertensionICD10, HypertensionDrugs, HypertensionSNOMED,
	DiabetesICD10, DiabetesDrugs, DiabetesSNOMED, DepressionSNOMED, DepressionICD10,
	AMISNOMED, AMIICD10, AMIPriorICD10, ProstateCancerSNOMED, ProstateCancerICD10,
	PregnancySNOMED, COCPDrugs, HRTDrugs,

	BMIPRIMIS, LearnDisPRIMIS, LongResPRIMIS, ShieldPRIMIS, NonShieldPRIMIS,
	PregPRIMIS, PregDelPRIMIS, BMIStagePRIMIS, SevObesityPRIMIS,
	AstPRIMIS, AstAdmPRIMIS, AstRxPRIMIS, RespPRIMIS, CNSPRIMIS, SplnPRIMIS,
	DiabPRIMIS, DMResPRIMIS, SevMentalPRIMIS, SMHResPRIMIS, CHDPRIMIS,
	CKDPRIMIS, CKD15PRIMIS, CKD35PRIMIS, CLDPRIMIS, ImmDxPRIMIS, ImmRxPRIMIS,

	DemAlzSNOMED, DemAlzICD10, DemVascSNOMED, DemVascICD10, DemLBSNOMED,
	DemOtherSNOMED, DemOtherICD10, DemUnspecSNOMED, DemUnspecICD10, CISSNOMED,
	ParkSNOMED, ParkICD10, RLSSNOMED, RSDSNOMED, RSDICD10,
	MigraineSNOMED, MigraineICD10, MNDSNOMED, MNDICD10, MSSNOMED, MSICD10,
}

// Vaccination record values.
const (
	CovidTargetDisease = "SARS-2 CORONAVIRUS"
	PfizerProductName  = "COVID-19 mRNA Vaccine Comirnaty 30micrograms/0.3ml dose conc for susp for inj MDV (Pfizer)"
	AZProductName      = "COVID-19 Vaccine Vaxzevria 0.5ml inj multidose vials (AstraZeneca)"
	ModernaProductName = "COVID-19 mRNA Vaccine Spikevax (nucleoside modified) 0.1mg/0.5mL dose disp for inj MDV (Moderna)"
)

// AttendedStatuses are the appointment states counted as a consultation.
var AttendedStatuses = []string{
	"Arrived",
	"In Progress",
	"Finished",
	"Visit",
	"Waiting",
	"Patient Walked Out",
}

// Cohort identifiers.
const (
	CohortPrevax = "prevax"
	CohortVax    = "vax"
	CohortUnvax  = "unvax"
)
