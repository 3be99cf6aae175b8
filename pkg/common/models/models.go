package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/ehrextract/pkg/events"
)

// Event bus types.
const (
	EventPatientRecord  = "patient_record"
	EventRowExtracted   = "row_extracted"
	EventRecordRejected = "record_rejected"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // patient_record, row_extracted, record_rejected
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// DecodeData re-encodes event.Data[key] into out.
func DecodeData(event Event, key string, out interface{}) error {
	raw, ok := event.Data[key]
	if !ok {
		return fmt.Errorf("event %s: missing %q", event.ID, key)
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("event %s: %w", event.ID, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("event %s: decode %s: %w", event.ID, key, err)
	}
	return nil
}

// DatasetDates names the per-patient dates dataset; every other dataset is
// a cohort id.
const DatasetDates = "dates"

// Synchronous extraction
type ExtractRequest struct {
	Datasets []string                `json:"datasets,omitempty"`
	Records  []*events.PatientRecord `json:"records"`
	Persist  bool                    `json:"persist,omitempty"`
}

type ExtractResponse struct {
	RunID    string                              `json:"run_id"`
	Rows     map[string][]map[string]interface{} `json:"rows"`
	Rejected []RejectedRecord                    `json:"rejected,omitempty"`
	Skipped  int                                 `json:"skipped"`
	Duration time.Duration                       `json:"duration"`
}

type RejectedRecord struct {
	PatientID string `json:"patient_id"`
	Reason    string `json:"reason"`
}

// Asynchronous extraction runs
type RunRequest struct {
	Datasets    []string                `json:"datasets,omitempty"`
	Records     []*events.PatientRecord `json:"records"`
	RequestedBy string                  `json:"requested_by,omitempty"`
}

type Run struct {
	ID           uuid.UUID  `json:"id"`
	Datasets     []string   `json:"datasets"`
	Status       string     `json:"status"`
	RecordCount  int        `json:"record_count"`
	RowCount     int        `json:"row_count"`
	Rejected     int        `json:"rejected"`
	Skipped      int        `json:"skipped"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RequestedBy  string     `json:"requested_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Row queries
type RowQuery struct {
	Dataset string `json:"dataset"`
	DSL     string `json:"dsl"`
	RunID   string `json:"run_id,omitempty"`
}

type RowResult struct {
	Dataset   string                   `json:"dataset"`
	Rows      []map[string]interface{} `json:"rows"`
	Count     int                      `json:"count"`
	Scanned   int                      `json:"scanned"`
	QueryTime time.Duration            `json:"query_time"`
}
