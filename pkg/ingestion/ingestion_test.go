package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/ehrextract/pkg/common/models"
	"github.com/synaptica-ai/ehrextract/pkg/common/retry"
	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
)

func TestValidate(t *testing.T) {
	v := NewValidator([]string{"male", " Female "})

	cases := []struct {
		name string
		rec  *events.PatientRecord
		err  error
	}{
		{"nil record", nil, errMissingRecord},
		{"missing id", &events.PatientRecord{}, errMissingID},
		{"unknown sex", &events.PatientRecord{Patient: events.Patient{ID: "p1", Sex: "X"}}, errInvalidSex},
		{"death before birth", &events.PatientRecord{Patient: events.Patient{
			ID:          "p1",
			DateOfBirth: temporal.MustParse("1950-01-01"),
			DateOfDeath: temporal.MustParse("1949-12-31"),
		}}, errDeathBeforeDOB},
		{"valid", &events.PatientRecord{Patient: events.Patient{ID: "p1", Sex: "FEMALE"}}, nil},
		{"missing sex is allowed", &events.PatientRecord{Patient: events.Patient{ID: "p1"}}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.rec)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
			assert.True(t, IsValidationError(err))
		})
	}

	var nilValidator *Validator
	assert.True(t, IsValidationError(nilValidator.Validate(&events.PatientRecord{})))
}

type fakeSink struct {
	got []*events.PatientRecord
	err error
}

func (f *fakeSink) Stream(_ context.Context, records []*events.PatientRecord) error {
	f.got = append(f.got, records...)
	return f.err
}

type fakePublisher struct {
	types    []string
	payloads []map[string]interface{}
}

func (f *fakePublisher) PublishEvent(_ context.Context, eventType string, _ string, data map[string]interface{}) error {
	f.types = append(f.types, eventType)
	f.payloads = append(f.payloads, data)
	return nil
}

func recordEvent(record map[string]interface{}) models.Event {
	return models.Event{ID: "evt", Type: models.EventPatientRecord, Data: map[string]interface{}{"record": record}}
}

func TestHandleRoutesRecords(t *testing.T) {
	sink := &fakeSink{}
	dlq := &fakePublisher{}
	svc := NewService(NewValidator([]string{"male", "female"}), sink, dlq, "test")
	ctx := context.Background()

	valid := recordEvent(map[string]interface{}{
		"patient": map[string]interface{}{"patient_id": "p1", "sex": "male", "date_of_birth": "1960-01-01"},
	})
	require.NoError(t, svc.Handle(ctx, valid))
	require.Len(t, sink.got, 1)
	assert.Equal(t, "p1", sink.got[0].Patient.ID)

	invalid := recordEvent(map[string]interface{}{
		"patient": map[string]interface{}{"patient_id": "p2", "sex": "robot"},
	})
	require.NoError(t, svc.Handle(ctx, invalid))
	malformed := models.Event{ID: "evt", Type: models.EventPatientRecord, Data: map[string]interface{}{}}
	require.NoError(t, svc.Handle(ctx, malformed))

	assert.Len(t, sink.got, 1)
	assert.Equal(t, []string{models.EventRecordRejected, models.EventRecordRejected}, dlq.types)
	assert.Equal(t, "p2", dlq.payloads[0]["patient_id"])

	require.NoError(t, svc.Handle(ctx, models.Event{Type: "something_else"}))
	assert.Len(t, dlq.types, 2)
}

func TestHandleReturnsSinkErrors(t *testing.T) {
	sink := &fakeSink{err: errors.New("store down")}
	svc := NewService(NewValidator(nil), sink, nil, "test")

	err := svc.Handle(context.Background(), recordEvent(map[string]interface{}{
		"patient": map[string]interface{}{"patient_id": "p1"},
	}))
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
}

func TestHandleDeadLettersPermanentSinkErrors(t *testing.T) {
	sink := &fakeSink{err: retry.Permanent(errors.New("engine broken"))}
	dlq := &fakePublisher{}
	svc := NewService(NewValidator(nil), sink, dlq, "test")

	err := svc.Handle(context.Background(), recordEvent(map[string]interface{}{
		"patient": map[string]interface{}{"patient_id": "p1"},
	}))
	require.NoError(t, err)
	require.Equal(t, []string{models.EventRecordRejected}, dlq.types)
	assert.Equal(t, "p1", dlq.payloads[0]["patient_id"])
	assert.Equal(t, "engine broken", dlq.payloads[0]["reason"])
}

func TestIngestPublishesValidRecords(t *testing.T) {
	bus := &fakePublisher{}
	router := mux.NewRouter()
	NewHTTPHandler(NewValidator([]string{"male", "female"}), bus, "test", 1<<20).Register(router)

	body := `{"records": [
		{"patient": {"patient_id": "p1", "sex": "female", "date_of_birth": "1950-06-01"}},
		{"patient": {"patient_id": "p2", "sex": "robot"}},
		{"patient": {"sex": "male"}}
	]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp IngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Accepted)
	require.Len(t, resp.Rejected, 2)
	assert.Equal(t, "p2", resp.Rejected[0].PatientID)

	require.Equal(t, []string{models.EventPatientRecord}, bus.types)
	assert.Equal(t, "p1", bus.payloads[0]["patient_id"])

	// The published payload round-trips through the stream handler.
	sink := &fakeSink{}
	svc := NewService(NewValidator(nil), sink, nil, "test")
	require.NoError(t, svc.Handle(context.Background(), models.Event{ID: "evt", Type: models.EventPatientRecord, Data: bus.payloads[0]}))
	require.Len(t, sink.got, 1)
	assert.Equal(t, temporal.MustParse("1950-06-01"), sink.got[0].Patient.DateOfBirth)
}

func TestIngestRejectsEmptyBody(t *testing.T) {
	router := mux.NewRouter()
	NewHTTPHandler(NewValidator(nil), &fakePublisher{}, "test", 0).Register(router)

	for _, body := range []string{`{`, `{"records": []}`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}
