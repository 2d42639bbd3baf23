package analysis

import (
	"context"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/your-org/imgindex/internal/models"
)

const (
	DefaultMinConfidence = 70
	DefaultMaxLabels     = 10
)

// ImageRef points at an uploaded object.
type ImageRef struct {
	Bucket string
	Key    string
}

// Analyzer extracts labels and recognized words from an image.
type Analyzer interface {
	DetectLabels(ctx context.Context, ref ImageRef) ([]models.Label, error)
	DetectText(ctx context.Context, ref ImageRef) ([]string, error)
}

// ImageLoader reads raw object bytes. When set on an analyzer, images are
// sent inline instead of by reference.
type ImageLoader interface {
	Load(ctx context.Context, bucket, key string) ([]byte, error)
}

// RawLabel is a detection as reported by the service.
type RawLabel struct {
	Name       string
	Confidence float32
}

// RawText is one text detection. Kind is WORD or LINE.
type RawText struct {
	Text string
	Kind string
}

// ShapeLabels drops detections under minConfidence and keeps at most
// maxLabels of the rest, highest confidence first. Ties keep service order.
func ShapeLabels(raw []RawLabel, minConfidence float64, maxLabels int) []models.Label {
	kept := make([]RawLabel, 0, len(raw))
	for _, l := range raw {
		if l.Name == "" || float64(l.Confidence) < minConfidence {
			continue
		}
		kept = append(kept, l)
	}

	if maxLabels > 0 && len(kept) > maxLabels {
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].Confidence > kept[j].Confidence
		})
		kept = kept[:maxLabels]
	}

	labels := make([]models.Label, 0, len(kept))
	for _, l := range kept {
		labels = append(labels, models.Label{Name: l.Name, Confidence: confidence(l.Confidence)})
	}
	return labels
}

// confidence converts through the shortest decimal text of the float32,
// so 95.2 stays 95.2 instead of 95.19999694824219.
func confidence(c float32) decimal.Decimal {
	d, err := decimal.NewFromString(strconv.FormatFloat(float64(c), 'f', -1, 32))
	if err != nil {
		return decimal.NewFromFloat32(c)
	}
	return d
}

// ShapeText keeps WORD detections in service order.
func ShapeText(raw []RawText) []string {
	words := make([]string, 0, len(raw))
	for _, t := range raw {
		if t.Kind == "WORD" && t.Text != "" {
			words = append(words, t.Text)
		}
	}
	return words
}
