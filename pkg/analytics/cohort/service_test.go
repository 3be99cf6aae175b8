package cohort

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/ehrextract/pkg/analytics/dsl"
	"github.com/synaptica-ai/ehrextract/pkg/common/models"
	"github.com/synaptica-ai/ehrextract/pkg/common/retry"
	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/ingestion"
	"github.com/synaptica-ai/ehrextract/pkg/storage"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	validator := ingestion.NewValidator([]string{"male", "female"})
	return NewService(newStubEngine(t), validator, opts...)
}

func TestDatasetsIncludeDates(t *testing.T) {
	svc := newTestService(t)
	assert.Equal(t, []string{models.DatasetDates, "prevax", "broken"}, svc.Datasets())
}

func TestResolveDatasets(t *testing.T) {
	svc := newTestService(t, WithDefaultDatasets([]string{"prevax"}))

	got, err := svc.resolveDatasets(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"prevax"}, got)

	got, err = svc.resolveDatasets([]string{"dates", "prevax", "dates"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dates", "prevax"}, got)

	_, err = svc.resolveDatasets([]string{"vax"})
	require.ErrorIs(t, err, ErrUnknownDataset)
}

func TestExtractSeparatesRejectedAndSkipped(t *testing.T) {
	svc := newTestService(t, WithWorkers(2))
	records := []*events.PatientRecord{
		patient("p1", "1940-05-01", "female"),
		patient("p2", "", "male"),
		patient("p3", "1980-02-29", "robot"),
		patient("p4", "1975-11-11", "male"),
	}

	resp, err := svc.Extract(context.Background(), models.ExtractRequest{
		Datasets: []string{"dates", "prevax"},
		Records:  records,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 1, resp.Skipped)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, "p3", resp.Rejected[0].PatientID)

	prevax := resp.Rows["prevax"]
	require.Len(t, prevax, 2)
	assert.Equal(t, "p1", prevax[0]["patient_id"])
	assert.Equal(t, "1940-05-01", prevax[0]["dob"])
	assert.Equal(t, true, prevax[0]["elderly"])
	assert.Equal(t, "p4", prevax[1]["patient_id"])
	assert.Equal(t, false, prevax[1]["elderly"])
	assert.Len(t, resp.Rows["dates"], 2)
}

func TestExtractRejectsUnknownDataset(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Extract(context.Background(), models.ExtractRequest{
		Datasets: []string{"vax"},
		Records:  []*events.PatientRecord{patient("p1", "1940-05-01", "female")},
	})
	require.ErrorIs(t, err, ErrUnknownDataset)
}

func TestEngineFailureAbortsBatch(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ExtractBatch(context.Background(), []*events.PatientRecord{
		patient("p1", "1940-05-01", "female"),
	}, []string{"broken"})
	require.ErrorIs(t, err, errEngineBroken)
}

func TestPersistStoresCachesAndPublishes(t *testing.T) {
	rows := &memRows{}
	cache := newMemCache()
	publisher := &recordingPublisher{}
	svc := newTestService(t, WithRowStore(rows), WithRowCache(cache), WithPublisher(publisher))

	resp, err := svc.Extract(context.Background(), models.ExtractRequest{
		Datasets: []string{"prevax"},
		Records: []*events.PatientRecord{
			patient("p1", "1940-05-01", "female"),
			patient("p2", "1990-01-01", "male"),
		},
		Persist: true,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Rows["prevax"], 2)
	assert.Len(t, rows.rows, 2)
	assert.Equal(t, 2, publisher.count())
	assert.Equal(t, "prevax", publisher.payloads[0]["dataset"])

	_, ok, err := cache.Get(context.Background(), "prevax", "p2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPersistWithoutStore(t *testing.T) {
	svc := newTestService(t)
	batch, err := svc.ExtractBatch(context.Background(), []*events.PatientRecord{patient("p1", "1940-05-01", "female")}, []string{"prevax"})
	require.NoError(t, err)
	_, err = svc.Persist(context.Background(), batch)
	require.ErrorIs(t, err, ErrRowStoreNotEnabled)
}

func TestPersistStoreFailure(t *testing.T) {
	failure := errors.New("disk full")
	svc := newTestService(t, WithRowStore(&memRows{err: failure}))
	_, err := svc.Extract(context.Background(), models.ExtractRequest{
		Datasets: []string{"prevax"},
		Records:  []*events.PatientRecord{patient("p1", "1940-05-01", "female")},
		Persist:  true,
	})
	require.ErrorIs(t, err, failure)
	assert.NotErrorIs(t, err, errEngineBroken)
}

func TestStreamUsesDefaultDatasets(t *testing.T) {
	rows := &memRows{}
	svc := newTestService(t, WithRowStore(rows), WithDefaultDatasets([]string{"dates"}))

	require.NoError(t, svc.Stream(context.Background(), []*events.PatientRecord{patient("p1", "1940-05-01", "female")}))
	require.Len(t, rows.rows, 1)
	assert.Equal(t, "dates", rows.rows[0].Dataset)
}

func TestStreamMarksExtractionFailuresPermanent(t *testing.T) {
	records := []*events.PatientRecord{patient("p1", "1940-05-01", "female")}

	broken := newTestService(t, WithRowStore(&memRows{}), WithDefaultDatasets([]string{"broken"}))
	err := broken.Stream(context.Background(), records)
	require.ErrorIs(t, err, errEngineBroken)
	assert.True(t, retry.IsPermanent(err))

	failure := errors.New("disk full")
	down := newTestService(t, WithRowStore(&memRows{err: failure}), WithDefaultDatasets([]string{"prevax"}))
	err = down.Stream(context.Background(), records)
	require.ErrorIs(t, err, failure)
	assert.False(t, retry.IsPermanent(err))
}

func TestQueryFiltersStoredRows(t *testing.T) {
	rows := &memRows{}
	svc := newTestService(t, WithRowStore(rows))
	_, err := svc.Extract(context.Background(), models.ExtractRequest{
		Datasets: []string{"prevax"},
		Records: []*events.PatientRecord{
			patient("p1", "1940-05-01", "female"),
			patient("p2", "1990-01-01", "male"),
			patient("p3", "1932-07-14", "male"),
		},
		Persist: true,
	})
	require.NoError(t, err)

	result, err := svc.Query(context.Background(), models.RowQuery{
		Dataset: "prevax",
		DSL:     "select dob where elderly = true and dob < 1935-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Scanned)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, map[string]interface{}{"patient_id": "p3", "dob": "1932-07-14"}, result.Rows[0])

	result, err = svc.Query(context.Background(), models.RowQuery{Dataset: "prevax", DSL: "select * limit 2"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)

	_, err = svc.Query(context.Background(), models.RowQuery{Dataset: "prevax", DSL: "delete everything"})
	require.ErrorIs(t, err, dsl.ErrSyntax)

	_, err = svc.Query(context.Background(), models.RowQuery{Dataset: "vax", DSL: "select *"})
	require.ErrorIs(t, err, ErrUnknownDataset)
}

func TestRowPrefersCache(t *testing.T) {
	rows := &memRows{}
	cache := newMemCache()
	svc := newTestService(t, WithRowStore(rows), WithRowCache(cache))
	_, err := svc.Extract(context.Background(), models.ExtractRequest{
		Datasets: []string{"dates"},
		Records:  []*events.PatientRecord{patient("p1", "1940-05-01", "female")},
		Persist:  true,
	})
	require.NoError(t, err)

	row, err := svc.Row(context.Background(), "dates", "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", row["patient_id"])
	assert.Equal(t, "1940-05-01", row["dob"])

	cache.values = map[string]map[string]interface{}{}
	row, err = svc.Row(context.Background(), "dates", "p1")
	require.NoError(t, err)
	assert.Equal(t, "1940-05-01", row["dob"])

	_, err = svc.Row(context.Background(), "dates", "p9")
	require.ErrorIs(t, err, storage.ErrRowNotFound)
}
