package dynamodb

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
	"go.uber.org/zap"

	"bit-backend/application/ports"
	"bit-backend/domain/clientlog"
	appErrors "bit-backend/pkg/errors"
)

// sortKeyLayout is fixed width so sort keys order chronologically.
const sortKeyLayout = "2006-01-02T15:04:05.000000000Z"

// API is the subset of the DynamoDB client the store uses
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// OperationRecorder records store call metrics
type OperationRecorder interface {
	RecordDBOperation(operation, table string, err error, duration time.Duration)
}

// ClientLogRecord represents how client logs are stored in DynamoDB
type ClientLogRecord struct {
	PK              string `dynamodbav:"PK"` // CLIENTLOG#<yyyy-mm-dd>
	SK              string `dynamodbav:"SK"` // <received_at>#<id>
	LogID           string `dynamodbav:"LogID"`
	Message         string `dynamodbav:"Message"`
	Route           string `dynamodbav:"Route,omitempty"`
	ClientDate      string `dynamodbav:"ClientDate,omitempty"`
	Error           string `dynamodbav:"Error,omitempty"`
	ErrorName       string `dynamodbav:"ErrorName,omitempty"`
	AdditionalInfo  string `dynamodbav:"AdditionalInfo,omitempty"`
	StackTrace      string `dynamodbav:"StackTrace,omitempty"`
	ClientWasOnline bool   `dynamodbav:"ClientWasOnline"`
	LogLevel        string `dynamodbav:"LogLevel"`
	ClientIP        string `dynamodbav:"ClientIP,omitempty"`
	UserAgent       string `dynamodbav:"UserAgent,omitempty"`
	RequestID       string `dynamodbav:"RequestID,omitempty"`
	ReceivedAt      string `dynamodbav:"ReceivedAt"`

	// TTL for automatic cleanup
	TTL int64 `dynamodbav:"TTL,omitempty"`
}

// ClientLogStore implements ports.ClientLogStore on a DynamoDB table partitioned by day
type ClientLogStore struct {
	client    API
	tableName string
	retention time.Duration
	logger    *zap.Logger
	metrics   OperationRecorder
	now       func() time.Time
}

var _ ports.ClientLogStore = (*ClientLogStore)(nil)

// NewClientLogStore creates a new DynamoDB client log store. A zero retention
// keeps records forever. metrics may be nil.
func NewClientLogStore(client API, tableName string, retention time.Duration, logger *zap.Logger, metrics OperationRecorder) *ClientLogStore {
	return &ClientLogStore{
		client:    client,
		tableName: tableName,
		retention: retention,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Save writes each record once. Replayed records are ignored.
func (s *ClientLogStore) Save(ctx context.Context, records []*clientlog.Record) (err error) {
	start := time.Now()
	defer func() { s.record("PutItem", err, time.Since(start)) }()

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	for _, r := range records {
		item, err := attributevalue.MarshalMap(s.toRecord(r))
		if err != nil {
			return fmt.Errorf("failed to marshal client log record: %w", err)
		}

		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 aws.String(s.tableName),
			Item:                      item,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				s.logger.Debug("Client log already stored", zap.String("logID", r.ID))
				continue
			}
			return translateError("PutItem", err)
		}
	}

	s.logger.Debug("Client logs saved",
		zap.String("table", s.tableName),
		zap.Int("count", len(records)),
	)
	return nil
}

// ListSince queries one day partition at a time, starting from today's and
// walking back to since's, newest first
func (s *ClientLogStore) ListSince(ctx context.Context, since time.Time, limit int) (result []*clientlog.Record, err error) {
	start := time.Now()
	defer func() { s.record("Query", err, time.Since(start)) }()

	since = since.UTC()
	end := s.now().UTC()
	result = make([]*clientlog.Record, 0)

	first := since.Truncate(24 * time.Hour)
	for day := end.Truncate(24 * time.Hour); !day.Before(first); day = day.Add(-24 * time.Hour) {
		keyCond := expression.Key("PK").Equal(expression.Value(partitionKey(day))).
			And(expression.Key("SK").GreaterThanEqual(expression.Value(since.Format(sortKeyLayout))))

		expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build expression: %w", err)
		}

		input := &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(false),
		}

		for {
			if limit > 0 {
				input.Limit = aws.Int32(int32(limit - len(result)))
			}

			out, err := s.client.Query(ctx, input)
			if err != nil {
				return nil, translateError("Query", err)
			}

			for _, item := range out.Items {
				var rec ClientLogRecord
				if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
					return nil, fmt.Errorf("failed to unmarshal client log record: %w", err)
				}
				result = append(result, fromRecord(rec))
			}

			if limit > 0 && len(result) >= limit {
				return result[:limit], nil
			}
			if out.LastEvaluatedKey == nil {
				break
			}
			input.ExclusiveStartKey = out.LastEvaluatedKey
		}
	}

	return result, nil
}

func (s *ClientLogStore) toRecord(r *clientlog.Record) ClientLogRecord {
	receivedAt := r.ReceivedAt.UTC()
	rec := ClientLogRecord{
		PK:              partitionKey(receivedAt),
		SK:              fmt.Sprintf("%s#%s", receivedAt.Format(sortKeyLayout), r.ID),
		LogID:           r.ID,
		Message:         r.Entry.Message,
		Route:           r.Entry.Route,
		Error:           r.Entry.Error,
		ErrorName:       r.Entry.ErrorName,
		AdditionalInfo:  r.Entry.AdditionalInfo,
		StackTrace:      r.Entry.StackTrace,
		ClientWasOnline: r.Entry.ClientWasOnline,
		LogLevel:        string(r.Level),
		ClientIP:        r.ClientIP,
		UserAgent:       r.UserAgent,
		RequestID:       r.RequestID,
		ReceivedAt:      receivedAt.Format(time.RFC3339Nano),
	}
	if !r.Entry.ClientDate.IsZero() {
		rec.ClientDate = r.Entry.ClientDate.Format(time.RFC3339Nano)
	}
	if s.retention > 0 {
		rec.TTL = receivedAt.Add(s.retention).Unix()
	}
	return rec
}

func fromRecord(rec ClientLogRecord) *clientlog.Record {
	r := &clientlog.Record{
		ID: rec.LogID,
		Entry: clientlog.Entry{
			Message:         rec.Message,
			Route:           rec.Route,
			Error:           rec.Error,
			ErrorName:       rec.ErrorName,
			AdditionalInfo:  rec.AdditionalInfo,
			StackTrace:      rec.StackTrace,
			ClientWasOnline: rec.ClientWasOnline,
			LogLevel:        rec.LogLevel,
		},
		Level:     clientlog.Level(rec.LogLevel),
		ClientIP:  rec.ClientIP,
		UserAgent: rec.UserAgent,
		RequestID: rec.RequestID,
	}
	r.Entry.ClientDate, _ = time.Parse(time.RFC3339Nano, rec.ClientDate)
	r.ReceivedAt, _ = time.Parse(time.RFC3339Nano, rec.ReceivedAt)
	return r
}

func partitionKey(t time.Time) string {
	return "CLIENTLOG#" + t.UTC().Format("2006-01-02")
}

func (s *ClientLogStore) record(operation string, err error, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordDBOperation(operation, s.tableName, err, d)
	}
}

// translateError maps throttling to an unavailable error and everything else
// to a database error.
func translateError(operation string, err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
			return appErrors.NewUnavailableError("dynamodb").WithCause(err)
		}
	}
	return appErrors.NewDatabaseError(operation, err)
}
