package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "8090", cfg.ServerPort)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 8, cfg.ExtractWorkers)
	assert.Equal(t, 30*time.Minute, cfg.RowCacheTTL)
	assert.Nil(t, cfg.Cohorts)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("EXTRACT_COHORTS", "prevax,vax")
	t.Setenv("EXTRACT_WORKERS", "3")
	t.Setenv("ROW_CACHE_TTL", "90s")
	t.Setenv("CODELISTS_PATH", "/etc/ehrextract/codelists.yaml")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"prevax", "vax"}, cfg.Cohorts)
	assert.Equal(t, 3, cfg.ExtractWorkers)
	assert.Equal(t, 90*time.Second, cfg.RowCacheTTL)
	assert.Equal(t, "/etc/ehrextract/codelists.yaml", cfg.CodelistsPath)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("EXTRACT_WORKERS", "many")
	t.Setenv("ROW_CACHE_TTL", "soon")
	t.Setenv("ALLOWED_SEXES", " , ")

	cfg := Load()
	assert.Equal(t, 8, cfg.ExtractWorkers)
	assert.Equal(t, 30*time.Minute, cfg.RowCacheTTL)
	assert.Equal(t, []string{"male", "female", "intersex", "unknown"}, cfg.AllowedSexes)
}
