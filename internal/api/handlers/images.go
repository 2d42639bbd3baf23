package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/pkg/dto"
)

type Searcher interface {
	Search(ctx context.Context, query string) ([]models.ImageRecord, error)
}

type ImageHandler struct {
	searcher Searcher
}

func NewImageHandler(searcher Searcher) *ImageHandler {
	return &ImageHandler{searcher: searcher}
}

// Search handles GET /v1/images/search?q=term.
func (h *ImageHandler) Search(c *gin.Context) {
	term, ok := c.GetQuery("q")
	if !ok {
		term = c.Query("query")
	}

	recs, err := h.searcher.Search(c.Request.Context(), term)
	if err != nil {
		slog.Error("search images", "term", term, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.SearchResponse{Images: dto.NewImageList(recs)})
}
