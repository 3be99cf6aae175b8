package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/ehrextract/pkg/analytics/cohort"
	"github.com/synaptica-ai/ehrextract/pkg/ingestion"
	"github.com/synaptica-ai/ehrextract/pkg/study"
)

func testService(t *testing.T) *cohort.Service {
	t.Helper()
	engine, err := study.Load("../../configs/codelists.yaml", "../../configs/study_dates.yaml")
	require.NoError(t, err)
	return cohort.NewService(engine, ingestion.NewValidator([]string{"male", "female"}), cohort.WithWorkers(2))
}

func TestRunExtract(t *testing.T) {
	input := strings.Join([]string{
		`{"patient": {"patient_id": "p1", "date_of_birth": "1951-04-12", "sex": "female"}}`,
		``,
		`{"patient": {"patient_id": "p2", "date_of_birth": "1980-09-30", "sex": "robot"}}`,
		`{"patient": {"patient_id": "p3", "sex": "male"}}`,
		`{"patient": {"patient_id": "p4", "date_of_birth": "1990-01-15", "sex": "male"}}`,
	}, "\n")

	var out bytes.Buffer
	summary, err := runExtract(context.Background(), testService(t), strings.NewReader(input), &out, []string{"dates", "prevax"}, 2)
	require.NoError(t, err)
	assert.Equal(t, extractSummary{Records: 4, Rows: 4, Rejected: 1, Skipped: 1}, summary)

	type line struct {
		Dataset string          `json:"dataset"`
		Row     json.RawMessage `json:"row"`
	}
	var lines []line
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var l line
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &l))
		lines = append(lines, l)
	}
	require.Len(t, lines, 4)

	engine, err := study.Load("../../configs/codelists.yaml", "../../configs/study_dates.yaml")
	require.NoError(t, err)

	assert.Equal(t, "dates", lines[0].Dataset)
	keys := objectKeys(t, lines[0].Row)
	assert.Equal(t, append([]string{"patient_id"}, engine.DatesSchema().Names()...), keys)
	assert.Contains(t, string(lines[0].Row), `"patient_id":"p1"`)

	assert.Equal(t, "prevax", lines[1].Dataset)
	assert.Equal(t, append([]string{"patient_id"}, engine.CohortSchema().Names()...), objectKeys(t, lines[1].Row))
	assert.Contains(t, string(lines[3].Row), `"patient_id":"p4"`)
}

// objectKeys lists the member names of a JSON object in document order.
func objectKeys(t *testing.T, raw json.RawMessage) []string {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	require.NoError(t, err)
	require.Equal(t, json.Delim('{'), tok)

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		require.NoError(t, dec.Decode(&skip))
	}
	return keys
}

func TestRunExtractMalformedLine(t *testing.T) {
	var out bytes.Buffer
	_, err := runExtract(context.Background(), testService(t), strings.NewReader("{not json"), &out, nil, 10)
	require.ErrorContains(t, err, "line 1")
}

func TestRunExtractUnknownDataset(t *testing.T) {
	var out bytes.Buffer
	_, err := runExtract(context.Background(), testService(t), strings.NewReader(`{"patient": {"patient_id": "p1", "date_of_birth": "1951-04-12"}}`), &out, []string{"nope"}, 10)
	require.ErrorIs(t, err, cohort.ErrUnknownDataset)
}
