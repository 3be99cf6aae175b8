package pipeline

import (
	"time"

	"github.com/synaptica-ai/ehrextract/pkg/attributes"
)

// RowPayload is the event body published for one extracted row.
func RowPayload(runID, dataset string, row *attributes.Row) map[string]interface{} {
	return map[string]interface{}{
		"run_id":       runID,
		"dataset":      dataset,
		"patient_id":   row.PatientID(),
		"attributes":   row.Values(),
		"extracted_at": time.Now().UTC().Format(time.RFC3339),
	}
}

// RowValues flattens a row for JSON responses.
func RowValues(row *attributes.Row) map[string]interface{} {
	values := row.Values()
	values["patient_id"] = row.PatientID()
	return values
}
