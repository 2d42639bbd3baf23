package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/your-org/imgindex/internal/config"
	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/internal/observability"
)

// RekognitionAPI is the subset of the Rekognition client used here.
type RekognitionAPI interface {
	DetectLabels(ctx context.Context, in *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
	DetectText(ctx context.Context, in *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// Rekognition runs detections with AWS Rekognition.
type Rekognition struct {
	client        RekognitionAPI
	loader        ImageLoader
	minConfidence float64
	maxLabels     int
}

// NewRekognition builds an analyzer. loader may be nil, in which case the
// service reads the object from S3 itself.
func NewRekognition(client RekognitionAPI, loader ImageLoader, cfg config.AnalysisConfig) *Rekognition {
	r := &Rekognition{
		client:        client,
		loader:        loader,
		minConfidence: cfg.MinConfidence,
		maxLabels:     cfg.MaxLabels,
	}
	if r.minConfidence == 0 {
		r.minConfidence = DefaultMinConfidence
	}
	if r.maxLabels == 0 {
		r.maxLabels = DefaultMaxLabels
	}
	return r
}

func (r *Rekognition) image(ctx context.Context, ref ImageRef) (*types.Image, error) {
	if r.loader == nil {
		return &types.Image{S3Object: &types.S3Object{
			Bucket: aws.String(ref.Bucket),
			Name:   aws.String(ref.Key),
		}}, nil
	}
	data, err := r.loader.Load(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	return &types.Image{Bytes: data}, nil
}

func (r *Rekognition) DetectLabels(ctx context.Context, ref ImageRef) ([]models.Label, error) {
	img, err := r.image(ctx, ref)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := r.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         img,
		MaxLabels:     aws.Int32(int32(r.maxLabels)),
		MinConfidence: aws.Float32(float32(r.minConfidence)),
	})
	observability.AnalysisDuration.WithLabelValues("labels").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("detect labels %s/%s: %w", ref.Bucket, ref.Key, err)
	}

	raw := make([]RawLabel, 0, len(out.Labels))
	for _, l := range out.Labels {
		raw = append(raw, RawLabel{
			Name:       aws.ToString(l.Name),
			Confidence: aws.ToFloat32(l.Confidence),
		})
	}
	return ShapeLabels(raw, r.minConfidence, r.maxLabels), nil
}

func (r *Rekognition) DetectText(ctx context.Context, ref ImageRef) ([]string, error) {
	img, err := r.image(ctx, ref)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := r.client.DetectText(ctx, &rekognition.DetectTextInput{Image: img})
	observability.AnalysisDuration.WithLabelValues("text").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("detect text %s/%s: %w", ref.Bucket, ref.Key, err)
	}

	raw := make([]RawText, 0, len(out.TextDetections))
	for _, t := range out.TextDetections {
		raw = append(raw, RawText{
			Text: aws.ToString(t.DetectedText),
			Kind: string(t.Type),
		})
	}
	return ShapeText(raw), nil
}
