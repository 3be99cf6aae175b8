package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/synaptica-ai/ehrextract/pkg/attributes"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRowNotFound = errors.New("attribute row not found")

const saveBatchSize = 500

// rowModel stores one frozen attribute row as JSONB. Dates are rendered
// "2006-01-02" and nulls as JSON null.
type rowModel struct {
	ID         uuid.UUID         `gorm:"primaryKey;column:id;type:uuid"`
	RunID      string            `gorm:"column:run_id;index"`
	Dataset    string            `gorm:"column:dataset;index:idx_attribute_rows_dataset_patient"`
	PatientID  string            `gorm:"column:patient_id;index:idx_attribute_rows_dataset_patient"`
	Attributes datatypes.JSONMap `gorm:"column:attributes;type:jsonb"`
	CreatedAt  time.Time         `gorm:"column:created_at"`
}

func (rowModel) TableName() string {
	return "attribute_rows"
}

type StoredRow struct {
	ID         string                 `json:"id"`
	RunID      string                 `json:"run_id"`
	Dataset    string                 `json:"dataset"`
	PatientID  string                 `json:"patient_id"`
	Attributes map[string]interface{} `json:"attributes"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Values returns the attributes with patient_id added.
func (r StoredRow) Values() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Attributes)+1)
	for k, v := range r.Attributes {
		out[k] = v
	}
	out["patient_id"] = r.PatientID
	return out
}

type RowFilter struct {
	Dataset string
	RunID   string
	Limit   int
}

type RowRepository struct {
	db *gorm.DB
}

func NewRowRepository(db *gorm.DB) *RowRepository {
	return &RowRepository{db: db}
}

func (r *RowRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&rowModel{})
}

func toModel(runID, dataset string, row *attributes.Row, now time.Time) rowModel {
	return rowModel{
		ID:         uuid.New(),
		RunID:      runID,
		Dataset:    dataset,
		PatientID:  row.PatientID(),
		Attributes: datatypes.JSONMap(row.Values()),
		CreatedAt:  now,
	}
}

func toStored(m rowModel) StoredRow {
	return StoredRow{
		ID:         m.ID.String(),
		RunID:      m.RunID,
		Dataset:    m.Dataset,
		PatientID:  m.PatientID,
		Attributes: map[string]interface{}(m.Attributes),
		CreatedAt:  m.CreatedAt,
	}
}

// Save writes rows in batches and returns the number written.
func (r *RowRepository) Save(ctx context.Context, runID, dataset string, rows []*attributes.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	models := make([]rowModel, 0, len(rows))
	for _, row := range rows {
		models = append(models, toModel(runID, dataset, row, now))
	}
	if err := r.db.WithContext(ctx).CreateInBatches(models, saveBatchSize).Error; err != nil {
		return 0, err
	}
	return len(models), nil
}

func (r *RowRepository) List(ctx context.Context, filter RowFilter) ([]StoredRow, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	tx := r.db.WithContext(ctx)
	if filter.Dataset != "" {
		tx = tx.Where("dataset = ?", filter.Dataset)
	}
	if filter.RunID != "" {
		tx = tx.Where("run_id = ?", filter.RunID)
	}
	var records []rowModel
	if err := tx.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	rows := make([]StoredRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, toStored(rec))
	}
	return rows, nil
}

// Latest returns the most recently written row for a patient.
func (r *RowRepository) Latest(ctx context.Context, dataset, patientID string) (*StoredRow, error) {
	var rec rowModel
	result := r.db.WithContext(ctx).
		Where("dataset = ? AND patient_id = ?", dataset, patientID).
		Order("created_at DESC").
		First(&rec)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRowNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	stored := toStored(rec)
	return &stored, nil
}
