package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelMarshalsConfidenceAsNumber(t *testing.T) {
	l := Label{Name: "Cat", Confidence: decimal.RequireFromString("95.2")}

	data, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Cat","confidence":95.2}`, string(data))
}

func TestLabelUnmarshalAcceptsNumberAndString(t *testing.T) {
	var fromNumber, fromString Label
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Dog","confidence":71.0}`), &fromNumber))
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Dog","confidence":"71.0"}`), &fromString))

	assert.True(t, fromNumber.Confidence.Equal(decimal.NewFromInt(71)))
	assert.True(t, fromString.Confidence.Equal(fromNumber.Confidence))
}

func TestImageRecordJSONShape(t *testing.T) {
	rec := ImageRecord{
		ImageID:    "cat.jpg",
		UploadDate: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:     StatusProcessed,
		URL:        "https://bucket.s3.eu-west-1.amazonaws.com/uploads/cat.jpg",
		AIAnalysis: Analysis{
			Labels: []Label{{Name: "Cat", Confidence: decimal.RequireFromString("99.1")}},
		},
		SearchableTerms: "cat",
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "processed", raw["status"])
	assert.Equal(t, "2024-03-01T12:00:00Z", raw["uploadDate"])
	analysis := raw["aiAnalysis"].(map[string]any)
	assert.NotContains(t, analysis, "text")
	assert.Len(t, analysis["labels"], 1)
}
