package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/synaptica-ai/ehrextract/pkg/events"
)

var (
	errMissingRecord  = errors.New("missing patient record")
	errMissingID      = errors.New("missing patient id")
	errInvalidSex     = errors.New("invalid sex")
	errDeathBeforeDOB = errors.New("date of death before date of birth")
)

type ValidationError struct {
	PatientID string
	reason    error
}

func (e ValidationError) Error() string {
	if e.PatientID == "" {
		return e.reason.Error()
	}
	return fmt.Sprintf("patient %s: %s", e.PatientID, e.reason)
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Validator rejects payloads the engine cannot attribute to a patient.
// Clinically inconsistent history (inverted periods, stray dates) is left
// to the engine, which treats it as no match.
type Validator struct {
	allowedSexes map[string]struct{}
}

func NewValidator(sexes []string) *Validator {
	vs := make(map[string]struct{})
	for _, sex := range sexes {
		if trimmed := strings.TrimSpace(strings.ToLower(sex)); trimmed != "" {
			vs[trimmed] = struct{}{}
		}
	}
	return &Validator{allowedSexes: vs}
}

func (v *Validator) Validate(rec *events.PatientRecord) error {
	if v == nil {
		return ValidationError{reason: errors.New("validator not initialised")}
	}
	if rec == nil {
		return ValidationError{reason: errMissingRecord}
	}

	id := strings.TrimSpace(rec.Patient.ID)
	if id == "" {
		return ValidationError{reason: errMissingID}
	}

	sex := strings.TrimSpace(strings.ToLower(rec.Patient.Sex))
	if sex != "" && len(v.allowedSexes) > 0 {
		if _, ok := v.allowedSexes[sex]; !ok {
			return ValidationError{PatientID: id, reason: fmt.Errorf("sex '%s' not allowed: %w", rec.Patient.Sex, errInvalidSex)}
		}
	}

	if rec.Patient.DateOfDeath.Before(rec.Patient.DateOfBirth) {
		return ValidationError{PatientID: id, reason: fmt.Errorf("%s < %s: %w", rec.Patient.DateOfDeath, rec.Patient.DateOfBirth, errDeathBeforeDOB)}
	}

	return nil
}
