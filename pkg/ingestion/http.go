package ingestion

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/ehrextract/pkg/common/logger"
	"github.com/synaptica-ai/ehrextract/pkg/common/models"
	"github.com/synaptica-ai/ehrextract/pkg/events"
)

type IngestRequest struct {
	Records []*events.PatientRecord `json:"records"`
}

type IngestResponse struct {
	Accepted int                     `json:"accepted"`
	Rejected []models.RejectedRecord `json:"rejected,omitempty"`
}

// HTTPHandler accepts patient records over HTTP and forwards the valid ones
// to the record topic for the stream consumer.
type HTTPHandler struct {
	validator *Validator
	bus       Publisher
	source    string
	maxBody   int64
}

func NewHTTPHandler(validator *Validator, bus Publisher, source string, maxBody int64) *HTTPHandler {
	return &HTTPHandler{validator: validator, bus: bus, source: source, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/ingest", h.handleIngest).Methods(http.MethodPost)
}

// Submit publishes every valid record. Invalid records are reported, not
// published; the first publish failure stops the submission.
func (h *HTTPHandler) Submit(ctx context.Context, records []*events.PatientRecord) (IngestResponse, error) {
	var resp IngestResponse
	for _, rec := range records {
		if err := h.validator.Validate(rec); err != nil {
			rejected := models.RejectedRecord{Reason: err.Error()}
			if rec != nil {
				rejected.PatientID = rec.Patient.ID
			}
			resp.Rejected = append(resp.Rejected, rejected)
			continue
		}
		payload := map[string]interface{}{
			"patient_id": rec.Patient.ID,
			"record":     rec,
		}
		if err := h.bus.PublishEvent(ctx, models.EventPatientRecord, h.source, payload); err != nil {
			return resp, err
		}
		resp.Accepted++
	}
	return resp, nil
}

func (h *HTTPHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid ingestion payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Records) == 0 {
		http.Error(w, "no records", http.StatusBadRequest)
		return
	}

	resp, err := h.Submit(r.Context(), req.Records)
	if err != nil {
		logger.Log.WithError(err).Error("failed to publish patient records")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}
