package cohort

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/ehrextract/pkg/common/logger"
	"github.com/synaptica-ai/ehrextract/pkg/common/models"
	"github.com/synaptica-ai/ehrextract/pkg/observability/metrics"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	runStatusQueued    = "queued"
	runStatusRunning   = "running"
	runStatusCompleted = "completed"
	runStatusFailed    = "failed"
)

var ErrRunNotFound = errors.New("extraction run not found")

type runModel struct {
	ID           uuid.UUID      `gorm:"primaryKey;column:id;type:uuid"`
	Datasets     datatypes.JSON `gorm:"column:datasets"`
	Status       string         `gorm:"column:status"`
	RecordCount  int            `gorm:"column:record_count"`
	RowCount     int            `gorm:"column:row_count"`
	Rejected     int            `gorm:"column:rejected"`
	Skipped      int            `gorm:"column:skipped"`
	ErrorMessage string         `gorm:"column:error_message"`
	RequestedBy  string         `gorm:"column:requested_by"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	StartedAt    *time.Time     `gorm:"column:started_at"`
	CompletedAt  *time.Time     `gorm:"column:completed_at"`
}

func (runModel) TableName() string {
	return "extraction_runs"
}

// RunStore tracks extraction runs.
type RunStore interface {
	Create(ctx context.Context, model *runModel) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	Get(ctx context.Context, id uuid.UUID) (*runModel, error)
	List(ctx context.Context, limit int) ([]runModel, error)
}

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&runModel{})
}

func (r *RunRepository) Create(ctx context.Context, model *runModel) error {
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *RunRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Updates(updates).Error
}

func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*runModel, error) {
	var model runModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	return &model, result.Error
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]runModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []runModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func modelToDomain(model *runModel) models.Run {
	var datasets []string
	if len(model.Datasets) > 0 {
		_ = json.Unmarshal(model.Datasets, &datasets)
	}
	return models.Run{
		ID:           model.ID,
		Datasets:     datasets,
		Status:       model.Status,
		RecordCount:  model.RecordCount,
		RowCount:     model.RowCount,
		Rejected:     model.Rejected,
		Skipped:      model.Skipped,
		ErrorMessage: model.ErrorMessage,
		RequestedBy:  model.RequestedBy,
		CreatedAt:    model.CreatedAt,
		StartedAt:    model.StartedAt,
		CompletedAt:  model.CompletedAt,
	}
}

// Materializer runs extraction jobs in the background with at most
// maxWorkers runs executing at once.
type Materializer struct {
	repo    RunStore
	service *Service
	workers chan struct{}
	wg      sync.WaitGroup
}

func NewMaterializer(repo RunStore, svc *Service, maxWorkers int) *Materializer {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Materializer{
		repo:    repo,
		service: svc,
		workers: make(chan struct{}, maxWorkers),
	}
}

// Enqueue records a queued run and starts it. Unknown datasets are
// rejected before anything is stored.
func (m *Materializer) Enqueue(ctx context.Context, req models.RunRequest) (models.Run, error) {
	datasets, err := m.service.resolveDatasets(req.Datasets)
	if err != nil {
		return models.Run{}, err
	}
	datasetsJSON, _ := json.Marshal(datasets)
	model := &runModel{
		ID:          uuid.New(),
		Datasets:    datatypes.JSON(datasetsJSON),
		Status:      runStatusQueued,
		RecordCount: len(req.Records),
		RequestedBy: req.RequestedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.repo.Create(ctx, model); err != nil {
		return models.Run{}, err
	}

	req.Datasets = datasets
	m.wg.Add(1)
	go m.run(model.ID, req)

	return modelToDomain(model), nil
}

func (m *Materializer) Get(ctx context.Context, id uuid.UUID) (models.Run, error) {
	model, err := m.repo.Get(ctx, id)
	if err != nil {
		return models.Run{}, err
	}
	return modelToDomain(model), nil
}

func (m *Materializer) List(ctx context.Context, limit int) ([]models.Run, error) {
	entries, err := m.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	result := make([]models.Run, 0, len(entries))
	for i := range entries {
		result = append(result, modelToDomain(&entries[i]))
	}
	return result, nil
}

// Wait blocks until every started run has finished.
func (m *Materializer) Wait() {
	m.wg.Wait()
}

func (m *Materializer) run(runID uuid.UUID, req models.RunRequest) {
	defer m.wg.Done()
	m.workers <- struct{}{}
	defer func() { <-m.workers }()
	metrics.RunsActive.Add(1)
	defer metrics.RunsActive.Add(-1)

	ctx := context.Background()
	log := logger.ForRun(runID.String())
	started := time.Now().UTC()
	if err := m.repo.Update(ctx, runID, map[string]interface{}{
		"status":     runStatusRunning,
		"started_at": started,
	}); err != nil {
		log.WithError(err).Warn("failed to mark run running")
	}

	batch, err := m.service.extract(ctx, runID.String(), req.Records, req.Datasets)
	if err != nil {
		m.fail(ctx, runID, err)
		return
	}
	rows, err := m.service.Persist(ctx, batch)
	if err != nil {
		m.fail(ctx, runID, err)
		return
	}

	completed := time.Now().UTC()
	if err := m.repo.Update(ctx, runID, map[string]interface{}{
		"status":        runStatusCompleted,
		"row_count":     rows,
		"rejected":      len(batch.Rejected()),
		"skipped":       batch.Skipped(),
		"completed_at":  completed,
		"error_message": "",
	}); err != nil {
		log.WithError(err).Warn("failed to mark run completed")
	}
	metrics.RunsCompleted.Inc()
	log.WithFields(map[string]interface{}{
		"rows":     rows,
		"duration": completed.Sub(started).String(),
	}).Info("extraction run completed")
}

func (m *Materializer) fail(ctx context.Context, runID uuid.UUID, err error) {
	logger.ForRun(runID.String()).WithError(err).Error("extraction run failed")
	metrics.RunsFailed.Inc()
	completed := time.Now().UTC()
	_ = m.repo.Update(ctx, runID, map[string]interface{}{
		"status":        runStatusFailed,
		"error_message": err.Error(),
		"completed_at":  completed,
	})
}
