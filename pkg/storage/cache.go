package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/ehrextract/pkg/attributes"
	"github.com/synaptica-ai/ehrextract/pkg/common/logger"
)

// RowCache keeps the latest row per dataset and patient in Redis.
type RowCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRowCache(client *redis.Client, ttl time.Duration) *RowCache {
	return &RowCache{client: client, ttl: ttl}
}

func rowKey(dataset, patientID string) string {
	return fmt.Sprintf("rows:%s:%s", dataset, patientID)
}

func encodeRow(row *attributes.Row) ([]byte, error) {
	return json.Marshal(row.Values())
}

func decodeRow(data []byte) (map[string]interface{}, error) {
	values := make(map[string]interface{})
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (c *RowCache) Put(ctx context.Context, dataset string, row *attributes.Row) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := encodeRow(row)
	if err != nil {
		return err
	}
	key := rowKey(dataset, row.PatientID())
	logger.Log.WithFields(map[string]interface{}{
		"key":  key,
		"size": len(data),
	}).Debug("Caching row")
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Get reports a miss as (nil, false, nil).
func (c *RowCache) Get(ctx context.Context, dataset, patientID string) (map[string]interface{}, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, rowKey(dataset, patientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	values, err := decodeRow(data)
	if err != nil {
		return nil, false, err
	}
	return values, true, nil
}
