package lambdafn

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/pkg/dto"
)

type Searcher interface {
	Search(ctx context.Context, query string) ([]models.ImageRecord, error)
}

type SearchHandler struct {
	searcher Searcher
}

func NewSearchHandler(s Searcher) *SearchHandler {
	return &SearchHandler{searcher: s}
}

// Handle answers an API Gateway proxy request. The term is read from the
// q query parameter, or query when q is absent.
func (h *SearchHandler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	term, ok := req.QueryStringParameters["q"]
	if !ok {
		term = req.QueryStringParameters["query"]
	}

	slog.Info("searching images", "term", term)
	recs, err := h.searcher.Search(ctx, term)
	if err != nil {
		slog.Error("search images", "term", term, "error", err)
		return respond(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()}), nil
	}

	return respond(http.StatusOK, dto.SearchResponse{Images: dto.NewImageList(recs)}), nil
}
