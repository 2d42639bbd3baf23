package lambdafn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/imgindex/internal/event"
	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/pkg/dto"
)

type stubProcessor struct {
	got event.Upload
	err error
}

func (s *stubProcessor) Process(_ context.Context, up event.Upload) (*models.ImageRecord, error) {
	s.got = up
	if s.err != nil {
		return nil, s.err
	}
	return &models.ImageRecord{
		ImageID:         up.ImageID(),
		UploadDate:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Status:          models.StatusProcessed,
		URL:             "https://" + up.Bucket + ".s3.us-east-1.amazonaws.com/" + up.Key,
		SearchableTerms: "cat",
	}, nil
}

type stubSearcher struct {
	term string
	recs []models.ImageRecord
	err  error
}

func (s *stubSearcher) Search(_ context.Context, term string) ([]models.ImageRecord, error) {
	s.term = term
	return s.recs, s.err
}

const s3Event = `{"Records":[{"eventSource":"aws:s3","s3":{"bucket":{"name":"photos"},"object":{"key":"uploads/my+cat.jpg"}}}]}`

func TestUploadHandlerSuccess(t *testing.T) {
	proc := &stubProcessor{}
	resp, err := NewUploadHandler(proc).Handle(context.Background(), json.RawMessage(s3Event))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "uploads/my cat.jpg", proc.got.Key)

	var body dto.ProcessResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "Image processed successfully", body.Message)
	require.NotNil(t, body.Record)
	assert.Equal(t, "my cat.jpg", body.Record.ImageID)
}

func TestUploadHandlerMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing_records", `{"detail":{}}`},
		{"no_records", `{"Records":[]}`},
		{"not_json", `hello`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &stubProcessor{}
			resp, err := NewUploadHandler(proc).Handle(context.Background(), json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, resp.Body, `"error"`)
			assert.Empty(t, proc.got.Key)
		})
	}
}

func TestUploadHandlerProcessingFailure(t *testing.T) {
	proc := &stubProcessor{err: errors.New("detect labels: AccessDeniedException")}
	resp, err := NewUploadHandler(proc).Handle(context.Background(), json.RawMessage(s3Event))
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"detect labels: AccessDeniedException"}`, resp.Body)
}

func TestSearchHandlerResults(t *testing.T) {
	s := &stubSearcher{recs: []models.ImageRecord{{ImageID: "cat.jpg", URL: "https://x/cat.jpg", SearchableTerms: "cat dog"}}}
	resp, err := NewSearchHandler(s).Handle(context.Background(), events.APIGatewayProxyRequest{
		QueryStringParameters: map[string]string{"q": "dog"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "dog", s.term)

	var body dto.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	require.Len(t, body.Images, 1)
	assert.Equal(t, "cat.jpg", body.Images[0].ImageID)
}

func TestSearchHandlerQueryFallback(t *testing.T) {
	s := &stubSearcher{}
	resp, err := NewSearchHandler(s).Handle(context.Background(), events.APIGatewayProxyRequest{
		QueryStringParameters: map[string]string{"query": "car"},
	})
	require.NoError(t, err)

	assert.Equal(t, "car", s.term)
	assert.JSONEq(t, `{"images":[]}`, resp.Body)
}

func TestSearchHandlerFailureKeepsCORS(t *testing.T) {
	s := &stubSearcher{err: errors.New("scan: ResourceNotFoundException")}
	resp, err := NewSearchHandler(s).Handle(context.Background(), events.APIGatewayProxyRequest{})
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.JSONEq(t, `{"error":"scan: ResourceNotFoundException"}`, resp.Body)
}
