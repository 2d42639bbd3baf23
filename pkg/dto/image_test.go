package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/imgindex/internal/models"
)

func TestSearchResponseShape(t *testing.T) {
	rec := models.ImageRecord{
		ImageID:    "cat.jpg",
		UploadDate: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Status:     models.StatusProcessed,
		URL:        "https://photos.s3.us-east-1.amazonaws.com/cat.jpg",
		AIAnalysis: models.Analysis{Labels: []models.Label{
			{Name: "Cat", Confidence: decimal.RequireFromString("95.2")},
		}},
		SearchableTerms: "cat",
	}

	data, err := json.Marshal(SearchResponse{Images: NewImageList([]models.ImageRecord{rec})})
	require.NoError(t, err)

	assert.JSONEq(t, `{"images":[{
		"imageId":"cat.jpg",
		"uploadDate":"2024-05-01T10:00:00.000000Z",
		"status":"processed",
		"url":"https://photos.s3.us-east-1.amazonaws.com/cat.jpg",
		"aiAnalysis":{"labels":[{"name":"Cat","confidence":95.2}]},
		"searchableTerms":"cat"
	}]}`, string(data))
}

func TestEmptyListEncodesAsArray(t *testing.T) {
	data, err := json.Marshal(SearchResponse{Images: NewImageList(nil)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"images":[]}`, string(data))
}

func TestLabelsNeverNull(t *testing.T) {
	data, err := json.Marshal(NewImageResponse(models.ImageRecord{ImageID: "blank.jpg"}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"labels":[]`)
}
