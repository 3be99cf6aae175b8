package cohort

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/ehrextract/pkg/attributes"
	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/storage"
	"github.com/synaptica-ai/ehrextract/pkg/study"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
)

var errEngineBroken = errors.New("engine broken")

// stubEngine derives a two-field row: the birth date and whether the
// patient was born before 1950.
type stubEngine struct {
	schema *attributes.Schema
}

func newStubEngine(t *testing.T) *stubEngine {
	t.Helper()
	schema, err := attributes.NewSchema(attributes.Date("dob"), attributes.Bool("elderly"))
	require.NoError(t, err)
	return &stubEngine{schema: schema}
}

func (e *stubEngine) Cohorts() []string { return []string{"prevax", "broken"} }

func (e *stubEngine) row(rec *events.PatientRecord) (*attributes.Row, error) {
	if rec.Patient.DateOfBirth.IsNull() {
		return nil, study.ErrNotInPopulation
	}
	row := e.schema.NewRow(rec.Patient.ID)
	row.SetDate("dob", rec.Patient.DateOfBirth)
	row.SetBool("elderly", rec.Patient.DateOfBirth.Before(temporal.NewDate(1950, 1, 1)))
	return row, row.Freeze()
}

func (e *stubEngine) Dates(rec *events.PatientRecord) (*attributes.Row, error) {
	return e.row(rec)
}

func (e *stubEngine) Extract(rec *events.PatientRecord, cohortID string) (*attributes.Row, error) {
	if cohortID == "broken" {
		return nil, errEngineBroken
	}
	return e.row(rec)
}

type memRows struct {
	mu   sync.Mutex
	rows []storage.StoredRow
	err  error
}

func (m *memRows) Save(_ context.Context, runID, dataset string, rows []*attributes.Row) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	for _, row := range rows {
		m.rows = append(m.rows, storage.StoredRow{
			ID:         uuid.NewString(),
			RunID:      runID,
			Dataset:    dataset,
			PatientID:  row.PatientID(),
			Attributes: row.Values(),
			CreatedAt:  time.Now().UTC(),
		})
	}
	return len(rows), nil
}

func (m *memRows) List(_ context.Context, filter storage.RowFilter) ([]storage.StoredRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.StoredRow
	for _, row := range m.rows {
		if row.Dataset != filter.Dataset {
			continue
		}
		if filter.RunID != "" && row.RunID != filter.RunID {
			continue
		}
		out = append(out, row)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *memRows) Latest(_ context.Context, dataset, patientID string) (*storage.StoredRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].Dataset == dataset && m.rows[i].PatientID == patientID {
			row := m.rows[i]
			return &row, nil
		}
	}
	return nil, storage.ErrRowNotFound
}

type memCache struct {
	mu     sync.Mutex
	values map[string]map[string]interface{}
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string]map[string]interface{})}
}

func (c *memCache) Put(_ context.Context, dataset string, row *attributes.Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[dataset+"/"+row.PatientID()] = row.Values()
	return nil
}

func (c *memCache) Get(_ context.Context, dataset, patientID string) (map[string]interface{}, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	values, ok := c.values[dataset+"/"+patientID]
	if !ok {
		return nil, false, nil
	}
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out, true, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads []map[string]interface{}
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, _ string, data map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

type memRuns struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*runModel
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[uuid.UUID]*runModel)}
}

func (m *memRuns) Create(_ context.Context, model *runModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *model
	m.runs[model.ID] = &copied
	return nil
}

func (m *memRuns) Update(_ context.Context, id uuid.UUID, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	model, ok := m.runs[id]
	if !ok {
		return ErrRunNotFound
	}
	for key, value := range updates {
		switch key {
		case "status":
			model.Status = value.(string)
		case "row_count":
			model.RowCount = value.(int)
		case "rejected":
			model.Rejected = value.(int)
		case "skipped":
			model.Skipped = value.(int)
		case "error_message":
			model.ErrorMessage = value.(string)
		case "started_at":
			ts := value.(time.Time)
			model.StartedAt = &ts
		case "completed_at":
			ts := value.(time.Time)
			model.CompletedAt = &ts
		}
	}
	return nil
}

func (m *memRuns) Get(_ context.Context, id uuid.UUID) (*runModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	model, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	copied := *model
	return &copied, nil
}

func (m *memRuns) List(_ context.Context, limit int) ([]runModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]runModel, 0, len(m.runs))
	for _, model := range m.runs {
		out = append(out, *model)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func patient(id, dob, sex string) *events.PatientRecord {
	rec := &events.PatientRecord{Patient: events.Patient{ID: id, Sex: sex}}
	if dob != "" {
		rec.Patient.DateOfBirth = temporal.MustParse(dob)
	}
	return rec
}

func storageFilter(dataset string, runID uuid.UUID) storage.RowFilter {
	return storage.RowFilter{Dataset: dataset, RunID: runID.String()}
}
