package index

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/your-org/imgindex/internal/models"
)

func labels(names ...string) []models.Label {
	out := make([]models.Label, 0, len(names))
	for _, n := range names {
		out = append(out, models.Label{Name: n, Confidence: decimal.NewFromInt(90)})
	}
	return out
}

func TestSignature(t *testing.T) {
	tests := []struct {
		name   string
		labels []models.Label
		want   string
	}{
		{"cat_dog", labels("Cat", "Dog"), "cat dog"},
		{"reordered", labels("Dog", "Cat"), "cat dog"},
		{"mixed_case", labels("DOG", "cAt"), "cat dog"},
		{"multi_word_label", labels("Sports Car", "Road"), "road sports car"},
		{"single", labels("Tree"), "tree"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Signature(tt.labels))
		})
	}
}

func TestSignatureIgnoresConfidence(t *testing.T) {
	a := []models.Label{{Name: "Cat", Confidence: decimal.NewFromFloat(95.2)}, {Name: "Dog", Confidence: decimal.NewFromInt(71)}}
	b := []models.Label{{Name: "Dog", Confidence: decimal.NewFromInt(80)}, {Name: "Cat", Confidence: decimal.NewFromInt(90)}}
	assert.Equal(t, Signature(a), Signature(b))
}
