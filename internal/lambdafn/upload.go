// Package lambdafn adapts the processors and the search service to AWS
// Lambda invocations. Handlers never return an error: every failure is
// turned into a status code and a JSON body.
package lambdafn

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/your-org/imgindex/internal/event"
	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/pkg/dto"
)

// UploadProcessor is satisfied by processor.Processor and processor.Labeler.
type UploadProcessor interface {
	Process(ctx context.Context, up event.Upload) (*models.ImageRecord, error)
}

type UploadHandler struct {
	processor UploadProcessor
}

func NewUploadHandler(p UploadProcessor) *UploadHandler {
	return &UploadHandler{processor: p}
}

// Handle processes the first record of an S3 notification.
func (h *UploadHandler) Handle(ctx context.Context, raw json.RawMessage) (events.APIGatewayProxyResponse, error) {
	up, err := event.Parse(raw)
	if err != nil {
		slog.Warn("rejected upload event", "error", err)
		return respond(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()}), nil
	}

	rec, err := h.processor.Process(ctx, up)
	if err != nil {
		slog.Error("process upload", "bucket", up.Bucket, "key", up.Key, "error", err)
		return respond(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()}), nil
	}

	body := dto.NewImageResponse(*rec)
	return respond(http.StatusOK, dto.ProcessResponse{
		Message: "Image processed successfully",
		Record:  &body,
	}), nil
}

func respond(status int, body any) events.APIGatewayProxyResponse {
	data, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(dto.ErrorResponse{Error: err.Error()})
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(data),
	}
}

