package cohort

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/ehrextract/pkg/analytics/dsl"
	"github.com/synaptica-ai/ehrextract/pkg/attributes"
	"github.com/synaptica-ai/ehrextract/pkg/common/logger"
	"github.com/synaptica-ai/ehrextract/pkg/common/models"
	"github.com/synaptica-ai/ehrextract/pkg/common/retry"
	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/ingestion"
	"github.com/synaptica-ai/ehrextract/pkg/observability/metrics"
	"github.com/synaptica-ai/ehrextract/pkg/pipeline"
	"github.com/synaptica-ai/ehrextract/pkg/storage"
	"github.com/synaptica-ai/ehrextract/pkg/study"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownDataset     = errors.New("unknown dataset")
	ErrRowStoreNotEnabled = errors.New("row store not configured")
)

// Extractor derives attribute rows from one patient record.
type Extractor interface {
	Cohorts() []string
	Dates(rec *events.PatientRecord) (*attributes.Row, error)
	Extract(rec *events.PatientRecord, cohortID string) (*attributes.Row, error)
}

type RowStore interface {
	Save(ctx context.Context, runID, dataset string, rows []*attributes.Row) (int, error)
	List(ctx context.Context, filter storage.RowFilter) ([]storage.StoredRow, error)
	Latest(ctx context.Context, dataset, patientID string) (*storage.StoredRow, error)
}

type RowCache interface {
	Put(ctx context.Context, dataset string, row *attributes.Row) error
	Get(ctx context.Context, dataset, patientID string) (map[string]interface{}, bool, error)
}

type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

type Service struct {
	engine    Extractor
	validator *ingestion.Validator
	rows      RowStore
	cache     RowCache
	publisher Publisher
	workers   int
	scanLimit int
	datasets  []string
	source    string
}

func NewService(engine Extractor, validator *ingestion.Validator, opts ...Option) *Service {
	svc := &Service{
		engine:    engine,
		validator: validator,
		workers:   4,
		scanLimit: 10000,
		source:    "ehrextract",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Datasets lists every dataset the engine can derive.
func (s *Service) Datasets() []string {
	return append([]string{models.DatasetDates}, s.engine.Cohorts()...)
}

func (s *Service) resolveDatasets(requested []string) ([]string, error) {
	if len(requested) == 0 {
		requested = s.datasets
	}
	if len(requested) == 0 {
		return s.Datasets(), nil
	}
	known := make(map[string]bool)
	for _, d := range s.Datasets() {
		known[d] = true
	}
	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))
	for _, d := range requested {
		if !known[d] {
			return nil, fmt.Errorf("%q: %w", d, ErrUnknownDataset)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// PatientResult holds every requested row for one patient, or the reason
// the patient produced none.
type PatientResult struct {
	PatientID string
	Rows      map[string]*attributes.Row
	Err       error
}

type Batch struct {
	RunID    string
	Datasets []string
	Results  []PatientResult
}

// Rows returns the dataset's rows in input order.
func (b *Batch) Rows(dataset string) []*attributes.Row {
	var rows []*attributes.Row
	for _, r := range b.Results {
		if row, ok := r.Rows[dataset]; ok {
			rows = append(rows, row)
		}
	}
	return rows
}

func (b *Batch) Rejected() []models.RejectedRecord {
	var out []models.RejectedRecord
	for _, r := range b.Results {
		if ingestion.IsValidationError(r.Err) {
			out = append(out, models.RejectedRecord{PatientID: r.PatientID, Reason: r.Err.Error()})
		}
	}
	return out
}

func (b *Batch) Skipped() int {
	n := 0
	for _, r := range b.Results {
		if errors.Is(r.Err, study.ErrNotInPopulation) {
			n++
		}
	}
	return n
}

func (b *Batch) Extracted() int {
	n := 0
	for _, r := range b.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

// ExtractBatch derives the requested datasets for every record with at
// most `workers` patients in flight. Results keep the input order.
func (s *Service) ExtractBatch(ctx context.Context, records []*events.PatientRecord, datasets []string) (*Batch, error) {
	return s.extract(ctx, uuid.New().String(), records, datasets)
}

func (s *Service) extract(ctx context.Context, runID string, records []*events.PatientRecord, datasets []string) (*Batch, error) {
	resolved, err := s.resolveDatasets(datasets)
	if err != nil {
		return nil, err
	}
	batch := &Batch{RunID: runID, Datasets: resolved, Results: make([]PatientResult, len(records))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := s.extractOne(rec, resolved)
			if err != nil {
				return err
			}
			batch.Results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics.PatientsExtracted.Add(batch.Extracted())
	metrics.PatientsSkipped.Add(batch.Skipped())
	metrics.ValidationFailures.Add(len(batch.Rejected()))
	logger.ForRun(runID).WithFields(map[string]interface{}{
		"records":   len(records),
		"extracted": batch.Extracted(),
		"skipped":   batch.Skipped(),
	}).Info("batch extracted")
	return batch, nil
}

// extractOne reports validation and population failures in the result;
// any other error aborts the batch.
func (s *Service) extractOne(rec *events.PatientRecord, datasets []string) (PatientResult, error) {
	if err := s.validator.Validate(rec); err != nil {
		result := PatientResult{Err: err}
		if rec != nil {
			result.PatientID = rec.Patient.ID
		}
		return result, nil
	}
	result := PatientResult{PatientID: rec.Patient.ID, Rows: make(map[string]*attributes.Row, len(datasets))}
	for _, dataset := range datasets {
		var (
			row *attributes.Row
			err error
		)
		if dataset == models.DatasetDates {
			row, err = s.engine.Dates(rec)
		} else {
			row, err = s.engine.Extract(rec, dataset)
		}
		if errors.Is(err, study.ErrNotInPopulation) {
			return PatientResult{PatientID: rec.Patient.ID, Err: err}, nil
		}
		if err != nil {
			return PatientResult{}, fmt.Errorf("patient %s dataset %s: %w", rec.Patient.ID, dataset, err)
		}
		result.Rows[dataset] = row
	}
	return result, nil
}

// Persist stores, caches and publishes every row of the batch. Cache and
// publish failures are logged; only store failures are returned.
func (s *Service) Persist(ctx context.Context, batch *Batch) (int, error) {
	if s.rows == nil {
		return 0, ErrRowStoreNotEnabled
	}
	total := 0
	for _, dataset := range batch.Datasets {
		rows := batch.Rows(dataset)
		n, err := s.rows.Save(ctx, batch.RunID, dataset, rows)
		if err != nil {
			return total, fmt.Errorf("saving %s rows: %w", dataset, err)
		}
		total += n
		metrics.RowsPersisted.Add(n)

		for _, row := range rows {
			if s.cache != nil {
				if err := s.cache.Put(ctx, dataset, row); err != nil {
					logger.ForPatient(batch.RunID, row.PatientID()).WithError(err).Warn("failed to cache row")
				}
			}
			if s.publisher != nil {
				if err := s.publisher.PublishEvent(ctx, models.EventRowExtracted, s.source, pipeline.RowPayload(batch.RunID, dataset, row)); err != nil {
					logger.ForPatient(batch.RunID, row.PatientID()).WithError(err).Warn("failed to publish row")
					continue
				}
				metrics.RowsPublished.Inc()
			}
		}
	}
	return total, nil
}

// Stream extracts and persists records arriving from the event bus.
// Extraction failures are deterministic for a given record and are marked
// retry.Permanent; store failures are returned as they are.
func (s *Service) Stream(ctx context.Context, records []*events.PatientRecord) error {
	batch, err := s.ExtractBatch(ctx, records, nil)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return retry.Permanent(err)
	}
	_, err = s.Persist(ctx, batch)
	return err
}

func (s *Service) Extract(ctx context.Context, req models.ExtractRequest) (models.ExtractResponse, error) {
	started := time.Now()
	batch, err := s.ExtractBatch(ctx, req.Records, req.Datasets)
	if err != nil {
		return models.ExtractResponse{}, err
	}
	if req.Persist {
		if _, err := s.Persist(ctx, batch); err != nil {
			return models.ExtractResponse{}, err
		}
	}

	resp := models.ExtractResponse{
		RunID:    batch.RunID,
		Rows:     make(map[string][]map[string]interface{}, len(batch.Datasets)),
		Rejected: batch.Rejected(),
		Skipped:  batch.Skipped(),
	}
	for _, dataset := range batch.Datasets {
		rows := batch.Rows(dataset)
		out := make([]map[string]interface{}, 0, len(rows))
		for _, row := range rows {
			out = append(out, pipeline.RowValues(row))
		}
		resp.Rows[dataset] = out
	}
	resp.Duration = time.Since(started)
	return resp, nil
}

// Query filters stored rows of one dataset with the row DSL.
func (s *Service) Query(ctx context.Context, query models.RowQuery) (models.RowResult, error) {
	if s.rows == nil {
		return models.RowResult{}, errors.New("row store not configured")
	}
	if _, err := s.resolveDatasets([]string{query.Dataset}); err != nil {
		return models.RowResult{}, err
	}
	parsed, err := dsl.Parse(query.DSL)
	if err != nil {
		return models.RowResult{}, err
	}

	started := time.Now()
	stored, err := s.rows.List(ctx, storage.RowFilter{Dataset: query.Dataset, RunID: query.RunID, Limit: s.scanLimit})
	if err != nil {
		return models.RowResult{}, err
	}
	result := models.RowResult{Dataset: query.Dataset, Rows: []map[string]interface{}{}, Scanned: len(stored)}
	for _, row := range stored {
		values := row.Values()
		if !parsed.Matches(values) {
			continue
		}
		result.Rows = append(result.Rows, parsed.Project(values))
		if parsed.Limit > 0 && len(result.Rows) >= parsed.Limit {
			break
		}
	}
	result.Count = len(result.Rows)
	result.QueryTime = time.Since(started)
	return result, nil
}

// Row returns the latest row for a patient, from the cache when possible.
func (s *Service) Row(ctx context.Context, dataset, patientID string) (map[string]interface{}, error) {
	if _, err := s.resolveDatasets([]string{dataset}); err != nil {
		return nil, err
	}
	if s.cache != nil {
		values, ok, err := s.cache.Get(ctx, dataset, patientID)
		if err != nil {
			logger.Log.WithError(err).WithField("patient_id", patientID).Warn("row cache lookup failed")
		}
		if ok {
			metrics.CacheHits.Inc()
			values["patient_id"] = patientID
			return values, nil
		}
		metrics.CacheMisses.Inc()
	}
	if s.rows == nil {
		return nil, storage.ErrRowNotFound
	}
	stored, err := s.rows.Latest(ctx, dataset, patientID)
	if err != nil {
		return nil, err
	}
	return stored.Values(), nil
}

type Option func(*Service)

func WithRowStore(store RowStore) Option {
	return func(s *Service) {
		s.rows = store
	}
}

func WithRowCache(cache RowCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithScanLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.scanLimit = n
		}
	}
}

// WithDefaultDatasets sets the datasets derived when a request names none.
func WithDefaultDatasets(datasets []string) Option {
	return func(s *Service) {
		s.datasets = datasets
	}
}

func WithSource(source string) Option {
	return func(s *Service) {
		if source != "" {
			s.source = source
		}
	}
}
