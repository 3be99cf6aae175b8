package ingestion

import (
	"context"
	"fmt"

	"github.com/synaptica-ai/ehrextract/pkg/common/logger"
	"github.com/synaptica-ai/ehrextract/pkg/common/models"
	"github.com/synaptica-ai/ehrextract/pkg/common/retry"
	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/observability/metrics"
)

// Sink receives validated records from the event stream.
type Sink interface {
	Stream(ctx context.Context, records []*events.PatientRecord) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Service struct {
	validator *Validator
	sink      Sink
	dlq       Publisher
	source    string
}

func NewService(validator *Validator, sink Sink, dlq Publisher, source string) *Service {
	return &Service{
		validator: validator,
		sink:      sink,
		dlq:       dlq,
		source:    source,
	}
}

// Handle is a kafka.EventHandler. Malformed or invalid records, and records
// the sink fails on permanently, are routed to the dead-letter topic and
// acknowledged; other sink failures are returned so the consumer retries
// the message.
func (s *Service) Handle(ctx context.Context, event models.Event) error {
	if event.Type != models.EventPatientRecord {
		logger.Log.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Debug("ignoring event")
		return nil
	}
	metrics.RecordsConsumed.Inc()

	var rec events.PatientRecord
	if err := models.DecodeData(event, "record", &rec); err != nil {
		s.reject(ctx, event, "", ValidationError{reason: err})
		return nil
	}
	if err := s.validator.Validate(&rec); err != nil {
		s.reject(ctx, event, rec.Patient.ID, err)
		return nil
	}

	if err := s.sink.Stream(ctx, []*events.PatientRecord{&rec}); err != nil {
		if retry.IsPermanent(err) {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"patient_id": rec.Patient.ID,
			}).Error("extraction failed for patient record")
			s.deadLetter(ctx, event, rec.Patient.ID, err)
			return nil
		}
		return fmt.Errorf("extract patient %s: %w", rec.Patient.ID, err)
	}
	return nil
}

func (s *Service) reject(ctx context.Context, event models.Event, patientID string, err error) {
	metrics.ValidationFailures.Inc()
	logger.Log.WithError(err).WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"patient_id": patientID,
	}).Warn("rejected patient record")
	s.deadLetter(ctx, event, patientID, err)
}

func (s *Service) deadLetter(ctx context.Context, event models.Event, patientID string, err error) {
	if s.dlq == nil {
		return
	}
	payload := map[string]interface{}{
		"event_id":   event.ID,
		"patient_id": patientID,
		"reason":     err.Error(),
		"data":       event.Data,
	}
	if dlqErr := s.dlq.PublishEvent(ctx, models.EventRecordRejected, s.source, payload); dlqErr != nil {
		logger.Log.WithError(dlqErr).Error("failed to push event to DLQ")
	}
}
