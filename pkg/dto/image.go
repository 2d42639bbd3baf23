package dto

import "github.com/your-org/imgindex/internal/models"

// UploadDateLayout is the wire format of uploadDate.
const UploadDateLayout = "2006-01-02T15:04:05.000000Z07:00"

type ImageResponse struct {
	ImageID         string          `json:"imageId"`
	UploadDate      string          `json:"uploadDate"`
	Status          string          `json:"status"`
	URL             string          `json:"url"`
	AIAnalysis      models.Analysis `json:"aiAnalysis"`
	SearchableTerms string          `json:"searchableTerms"`
}

func NewImageResponse(rec models.ImageRecord) ImageResponse {
	analysis := rec.AIAnalysis
	if analysis.Labels == nil {
		analysis.Labels = []models.Label{}
	}
	return ImageResponse{
		ImageID:         rec.ImageID,
		UploadDate:      rec.UploadDate.UTC().Format(UploadDateLayout),
		Status:          string(rec.Status),
		URL:             rec.URL,
		AIAnalysis:      analysis,
		SearchableTerms: rec.SearchableTerms,
	}
}

// NewImageList never returns nil, so an empty result encodes as [].
func NewImageList(recs []models.ImageRecord) []ImageResponse {
	out := make([]ImageResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, NewImageResponse(rec))
	}
	return out
}

// SearchResponse is returned by every search surface.
type SearchResponse struct {
	Images []ImageResponse `json:"images"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ProcessResponse is the body of a successful upload invocation.
type ProcessResponse struct {
	Message string         `json:"message"`
	Record  *ImageResponse `json:"record,omitempty"`
}

// WSEvent is pushed to live feed subscribers.
type WSEvent struct {
	Type  string        `json:"type"`
	Image ImageResponse `json:"image"`
}

const WSImageProcessed = "image_processed"
