package cohort

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/synaptica-ai/ehrextract/pkg/analytics/dsl"
	"github.com/synaptica-ai/ehrextract/pkg/common/logger"
	"github.com/synaptica-ai/ehrextract/pkg/common/models"
	"github.com/synaptica-ai/ehrextract/pkg/storage"
)

type HTTPHandler struct {
	service      *Service
	materializer *Materializer
	maxBody      int64
}

func NewHTTPHandler(service *Service, materializer *Materializer, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, materializer: materializer, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/datasets", h.handleDatasets).Methods(http.MethodGet)
	router.HandleFunc("/extract", h.handleExtract).Methods(http.MethodPost)
	router.HandleFunc("/rows/query", h.handleQuery).Methods(http.MethodPost)
	router.HandleFunc("/rows/{dataset}/{patient_id}", h.handleRow).Methods(http.MethodGet)
	if h.materializer != nil {
		router.HandleFunc("/runs", h.handleEnqueue).Methods(http.MethodPost)
		router.HandleFunc("/runs", h.handleListRuns).Methods(http.MethodGet)
		router.HandleFunc("/runs/{id}", h.handleGetRun).Methods(http.MethodGet)
	}
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		logger.Log.WithError(err).Warn("invalid extraction payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, ErrUnknownDataset), errors.Is(err, dsl.ErrSyntax):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrRunNotFound):
		http.Error(w, "run not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrRowNotFound):
		http.Error(w, "row not found", http.StatusNotFound)
	default:
		logger.Log.WithError(err).Error("failed to " + action)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *HTTPHandler) handleDatasets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"datasets": h.service.Datasets()})
}

func (h *HTTPHandler) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req models.ExtractRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.Extract(r.Context(), req)
	if err != nil {
		writeError(w, err, "extract rows")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req models.RunRequest
	if !h.decode(w, r, &req) {
		return
	}
	run, err := h.materializer.Enqueue(r.Context(), req)
	if err != nil {
		writeError(w, err, "enqueue run")
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (h *HTTPHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.materializer.List(r.Context(), limit)
	if err != nil {
		writeError(w, err, "list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *HTTPHandler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}
	run, err := h.materializer.Get(r.Context(), id)
	if err != nil {
		writeError(w, err, "fetch run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *HTTPHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var query models.RowQuery
	if !h.decode(w, r, &query) {
		return
	}
	result, err := h.service.Query(r.Context(), query)
	if err != nil {
		writeError(w, err, "query rows")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleRow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	row, err := h.service.Row(r.Context(), vars["dataset"], vars["patient_id"])
	if err != nil {
		writeError(w, err, "fetch row")
		return
	}
	writeJSON(w, http.StatusOK, row)
}
