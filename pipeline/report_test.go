package pipeline

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/c360/pixelflow/errors"
)

func sampleReport() *Report {
	r := &Report{
		RunID:    "run-1",
		Elapsed:  1500 * time.Millisecond,
		Capacity: 10,
		Producers: []TaskMetrics{
			{Role: RoleProducer, ID: 0, Items: 4, Total: 40 * time.Millisecond, Rank: 2},
			{Role: RoleProducer, ID: 1, Items: 3, Failures: 1, Total: 30 * time.Millisecond, Rank: 1},
		},
		Consumers: []TaskMetrics{
			{Role: RoleConsumer, ID: 0, Items: 7, Total: 70 * time.Millisecond, Rank: 1,
				Operations: []string{"grayscale", "invert"}},
		},
		Errors: []string{"producer-1: open source failed"},
	}
	r.tally()
	return r
}

func TestReport_Tally(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, 7, r.Loaded)
	assert.Equal(t, 7, r.Processed)
	assert.Equal(t, 1, r.Failed)
}

func TestReport_Text(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, sampleReport().Write(&out, FormatText))

	text := out.String()
	assert.Contains(t, text, "Pipeline report")
	assert.Contains(t, text, "total time 1.5s")
	assert.Contains(t, text, "producer 0: images loaded 4, avg 10ms, total 40ms, finish rank 2")
	assert.Contains(t, text, "1 failed to load")
	assert.Contains(t, text, "consumer 0: images processed 7, avg 10ms, total 70ms, finish rank 1")
	assert.Contains(t, text, "operations: grayscale, invert")
	assert.Contains(t, text, "open source failed")
}

func TestReport_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, sampleReport().Write(&out, "JSON"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.EqualValues(t, 7, decoded["processed"])
	assert.Len(t, decoded["producers"], 2)
}

func TestReport_YAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, sampleReport().Write(&out, FormatYAML))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, 10, decoded["capacity"])
	assert.Contains(t, out.String(), "elapsed: 1.5s")
}

func TestReport_UnknownFormat(t *testing.T) {
	err := sampleReport().Write(&bytes.Buffer{}, "xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
