package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
)

// ErrMissingTable is returned when no table name is configured.
var ErrMissingTable = errors.New("dynamodb table name is required")

// PutItemAPI is the part of the DynamoDB client the exporter needs.
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Item is one exported detection.
type Item struct {
	S3URL      string `dynamodbav:"S3 URL"`
	Detections string `dynamodbav:"Detections"`
	FileName   string `dynamodbav:"FileName"`
	ObjectKey  string `dynamodbav:"ObjectKey"`
	Digest     string `dynamodbav:"Digest,omitempty"`
	DurationMS int64  `dynamodbav:"Duration [ms]"`
	ExportedAt string `dynamodbav:"ExportedAt"`
}

// NewItem builds the item for a successful outcome.
func NewItem(o model.Outcome, now time.Time) (Item, error) {
	if !o.Succeeded() {
		return Item{}, fmt.Errorf("outcome for %s has no result", o.File.Name)
	}

	objects := o.Result.Objects
	if objects == nil {
		objects = []model.DetectedObject{}
	}
	detections, err := json.Marshal(objects)
	if err != nil {
		return Item{}, fmt.Errorf("failed to encode detections: %w", err)
	}

	return Item{
		S3URL:      o.Result.S3URL,
		Detections: string(detections),
		FileName:   o.File.Name,
		ObjectKey:  o.ObjectKey,
		Digest:     o.File.Digest,
		DurationMS: o.Duration.Milliseconds(),
		ExportedAt: now.UTC().Format(time.RFC3339),
	}, nil
}

// DynamoExporter writes successful outcomes to a DynamoDB table.
type DynamoExporter struct {
	client PutItemAPI
	table  string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a DynamoExporter.
type Option func(*DynamoExporter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *DynamoExporter) {
		e.logger = logger
	}
}

// NewDynamoExporter returns an exporter writing to table.
func NewDynamoExporter(client PutItemAPI, table string, opts ...Option) (*DynamoExporter, error) {
	if table == "" {
		return nil, ErrMissingTable
	}
	e := &DynamoExporter{
		client: client,
		table:  table,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e, nil
}

// NewDynamoClient loads the default AWS configuration for region.
func NewDynamoClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// Export writes o when it succeeded. Failed outcomes are skipped.
func (e *DynamoExporter) Export(ctx context.Context, o model.Outcome) error {
	if !o.Succeeded() {
		e.logger.Debug("skipping export of failed file", "file", o.File.Name)
		return nil
	}

	item, err := NewItem(o, e.now())
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = e.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(e.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put item for %s: %w", o.File.Name, err)
	}

	e.logger.Debug("exported detection", "file", o.File.Name, "table", e.table)
	return nil
}
