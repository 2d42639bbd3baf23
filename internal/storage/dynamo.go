package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/shopspring/decimal"

	"github.com/your-org/imgindex/internal/config"
	"github.com/your-org/imgindex/internal/models"
)

const (
	attrSearchableTerms = "searchableTerms"
	attrURL             = "url"
	uploadDateLayout    = "2006-01-02T15:04:05.000000Z07:00"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore keeps one item per image in a table keyed by imageId, with a
// global secondary index on searchableTerms.
type DynamoStore struct {
	client         DynamoAPI
	table          string
	index          string
	signatureTable string
}

func NewDynamoStore(client DynamoAPI, cfg config.DynamoDBConfig) *DynamoStore {
	return &DynamoStore{
		client:         client,
		table:          cfg.Table,
		index:          cfg.Index,
		signatureTable: cfg.SignatureTable,
	}
}

type dynamoConfidence struct {
	decimal.Decimal
}

func (c dynamoConfidence) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: c.String()}, nil
}

func (c *dynamoConfidence) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	default:
		return fmt.Errorf("confidence: unexpected attribute type %T", av)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	c.Decimal = d
	return nil
}

type dynamoLabel struct {
	Name       string           `dynamodbav:"name"`
	Confidence dynamoConfidence `dynamodbav:"confidence"`
}

type dynamoAnalysis struct {
	Labels []dynamoLabel `dynamodbav:"labels"`
	Text   []string      `dynamodbav:"text,omitempty"`
}

// dynamoItem omits searchableTerms when empty: index key attributes may not
// hold empty strings, so label-less images stay out of the index.
type dynamoItem struct {
	ImageID         string         `dynamodbav:"imageId"`
	UploadDate      string         `dynamodbav:"uploadDate"`
	Status          string         `dynamodbav:"status"`
	URL             string         `dynamodbav:"url"`
	AIAnalysis      dynamoAnalysis `dynamodbav:"aiAnalysis"`
	SearchableTerms string         `dynamodbav:"searchableTerms,omitempty"`
}

func toDynamoItem(rec *models.ImageRecord) dynamoItem {
	labels := make([]dynamoLabel, 0, len(rec.AIAnalysis.Labels))
	for _, l := range rec.AIAnalysis.Labels {
		labels = append(labels, dynamoLabel{Name: l.Name, Confidence: dynamoConfidence{l.Confidence}})
	}
	return dynamoItem{
		ImageID:    rec.ImageID,
		UploadDate: rec.UploadDate.UTC().Format(uploadDateLayout),
		Status:     string(rec.Status),
		URL:        rec.URL,
		AIAnalysis: dynamoAnalysis{
			Labels: labels,
			Text:   rec.AIAnalysis.Text,
		},
		SearchableTerms: rec.SearchableTerms,
	}
}

func (it dynamoItem) record() models.ImageRecord {
	labels := make([]models.Label, 0, len(it.AIAnalysis.Labels))
	for _, l := range it.AIAnalysis.Labels {
		labels = append(labels, models.Label{Name: l.Name, Confidence: l.Confidence.Decimal})
	}
	// Items written by other producers may carry a date without zone.
	uploaded, err := time.Parse(uploadDateLayout, it.UploadDate)
	if err != nil {
		uploaded, _ = time.Parse("2006-01-02T15:04:05.999999", it.UploadDate)
	}
	return models.ImageRecord{
		ImageID:    it.ImageID,
		UploadDate: uploaded.UTC(),
		Status:     models.Status(it.Status),
		URL:        it.URL,
		AIAnalysis: models.Analysis{
			Labels: labels,
			Text:   it.AIAnalysis.Text,
		},
		SearchableTerms: it.SearchableTerms,
	}
}

func decodeItems(items []map[string]types.AttributeValue) ([]models.ImageRecord, error) {
	var decoded []dynamoItem
	if err := attributevalue.UnmarshalListOfMaps(items, &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	out := make([]models.ImageRecord, 0, len(decoded))
	for _, it := range decoded {
		out = append(out, it.record())
	}
	return out, nil
}

func (s *DynamoStore) PutImage(ctx context.Context, rec *models.ImageRecord) error {
	defer observe("dynamodb", "put", time.Now())

	item, err := attributevalue.MarshalMap(toDynamoItem(rec))
	if err != nil {
		return fmt.Errorf("marshal image %s: %w", rec.ImageID, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put image %s: %w", rec.ImageID, describe(err))
	}
	return nil
}

func (s *DynamoStore) FindBySignature(ctx context.Context, signature string) ([]models.ImageRecord, error) {
	defer observe("dynamodb", "query", time.Now())

	// An empty string can never be an index key value.
	if signature == "" {
		return nil, nil
	}

	keyCond := expression.Key(attrSearchableTerms).Equal(expression.Value(signature))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build key condition: %w", err)
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		IndexName:                 aws.String(s.index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("query signature: %w", describe(err))
	}
	return decodeItems(out.Items)
}

func (s *DynamoStore) SearchTerms(ctx context.Context, substr string) ([]models.ImageRecord, error) {
	defer observe("dynamodb", "scan", time.Now())

	input := &dynamodb.ScanInput{TableName: aws.String(s.table)}
	if substr != "" {
		filter := expression.Name(attrSearchableTerms).Contains(substr)
		expr, err := expression.NewBuilder().WithFilter(filter).Build()
		if err != nil {
			return nil, fmt.Errorf("build filter: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var records []models.ImageRecord
	pager := dynamodb.NewScanPaginator(s.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan images: %w", describe(err))
		}
		recs, err := decodeItems(page.Items)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

// ClaimSignature writes signature -> url into the signature table only if
// the signature is not there yet, then returns the stored URL.
func (s *DynamoStore) ClaimSignature(ctx context.Context, signature, url string) (string, error) {
	if s.signatureTable == "" {
		return "", ErrClaimUnsupported
	}
	defer observe("dynamodb", "claim", time.Now())

	cond := expression.AttributeNotExists(expression.Name(attrSearchableTerms))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return "", fmt.Errorf("build claim condition: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.signatureTable),
		Item: map[string]types.AttributeValue{
			attrSearchableTerms: &types.AttributeValueMemberS{Value: signature},
			attrURL:             &types.AttributeValueMemberS{Value: url},
		},
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err == nil {
		return url, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return "", fmt.Errorf("claim signature: %w", describe(err))
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.signatureTable),
		Key:            map[string]types.AttributeValue{attrSearchableTerms: &types.AttributeValueMemberS{Value: signature}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read signature claim: %w", describe(err))
	}
	var claim struct {
		URL string `dynamodbav:"url"`
	}
	if err := attributevalue.UnmarshalMap(out.Item, &claim); err != nil {
		return "", fmt.Errorf("unmarshal signature claim: %w", err)
	}
	if claim.URL == "" {
		return "", fmt.Errorf("signature claim for %q has no url", signature)
	}
	return claim.URL, nil
}

func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	if err != nil {
		return describe(err)
	}
	return nil
}

// describe prefixes service errors with their API error code.
func describe(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", apiErr.ErrorCode(), err)
	}
	return err
}
