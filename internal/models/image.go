package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const StatusProcessed Status = "processed"

// Label is one detected category. Confidence is kept as a decimal so the
// value written to the store is exactly the value the service reported.
type Label struct {
	Name       string          `json:"name"`
	Confidence decimal.Decimal `json:"confidence"`
}

// MarshalJSON writes confidence as a JSON number rather than a quoted string.
func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name       string      `json:"name"`
		Confidence json.Number `json:"confidence"`
	}{
		Name:       l.Name,
		Confidence: json.Number(l.Confidence.String()),
	})
}

type Analysis struct {
	Labels []Label  `json:"labels"`
	Text   []string `json:"text,omitempty"`
}

// ImageRecord is the single persisted entity. Records are written once and
// never updated.
type ImageRecord struct {
	ImageID         string    `json:"imageId"`
	UploadDate      time.Time `json:"uploadDate"`
	Status          Status    `json:"status"`
	URL             string    `json:"url"`
	AIAnalysis      Analysis  `json:"aiAnalysis"`
	SearchableTerms string    `json:"searchableTerms"`
}
