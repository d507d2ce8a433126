package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bit-backend/application/ports"
	"bit-backend/domain/clientlog"
	appErrors "bit-backend/pkg/errors"
)

// DefaultMaxBatchSize is the largest batch accepted when none is configured.
const DefaultMaxBatchSize = 100

// ClientMetadata is what the server knows about the client that posted a batch
type ClientMetadata struct {
	ClientIP  string
	UserAgent string
	RequestID string
}

// LogRecorder counts accepted entries per level
type LogRecorder interface {
	RecordClientLog(level string)
}

// ClientLogService accepts log entries reported by clients, writes them to the
// server log and persists them.
type ClientLogService struct {
	store        ports.ClientLogStore
	logger       *zap.Logger
	metrics      LogRecorder
	validate     *validator.Validate
	maxBatchSize int
	now          func() time.Time
}

// NewClientLogService creates a new client log service. metrics may be nil.
func NewClientLogService(
	store ports.ClientLogStore,
	logger *zap.Logger,
	metrics LogRecorder,
	maxBatchSize int,
) *ClientLogService {
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &ClientLogService{
		store:        store,
		logger:       logger,
		metrics:      metrics,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		maxBatchSize: maxBatchSize,
		now:          time.Now,
	}
}

// Submit validates, logs and stores a batch. The whole batch is rejected when
// any entry is invalid. It returns the stored records.
func (s *ClientLogService) Submit(ctx context.Context, entries []clientlog.Entry, meta ClientMetadata) ([]*clientlog.Record, error) {
	if len(entries) == 0 {
		return nil, appErrors.NewValidationError("at least one client log entry is required")
	}
	if len(entries) > s.maxBatchSize {
		return nil, appErrors.NewValidationError(
			fmt.Sprintf("too many client log entries: %d, at most %d are accepted", len(entries), s.maxBatchSize))
	}

	for i := range entries {
		if err := s.validate.Struct(&entries[i]); err != nil {
			return nil, validationError(i, err)
		}
	}

	receivedAt := s.now().UTC()
	records := make([]*clientlog.Record, 0, len(entries))
	for _, entry := range entries {
		record := &clientlog.Record{
			ID:         uuid.NewString(),
			Entry:      entry,
			Level:      clientlog.ParseLevel(entry.LogLevel),
			ClientIP:   meta.ClientIP,
			UserAgent:  meta.UserAgent,
			RequestID:  meta.RequestID,
			ReceivedAt: receivedAt,
		}
		records = append(records, record)
		s.log(record)
	}

	if err := s.store.Save(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to store client logs: %w", err)
	}
	return records, nil
}

// Recent returns the newest records received within the last window, newest first
func (s *ClientLogService) Recent(ctx context.Context, window time.Duration, limit int) ([]*clientlog.Record, error) {
	if window <= 0 {
		return nil, appErrors.NewInvalidArgumentError("window")
	}
	if limit <= 0 || limit > s.maxBatchSize {
		limit = s.maxBatchSize
	}
	return s.store.ListSince(ctx, s.now().Add(-window), limit)
}

func (s *ClientLogService) log(record *clientlog.Record) {
	fields := []zap.Field{
		zap.String("logID", record.ID),
		zap.String("route", record.Entry.Route),
		zap.Time("clientDate", record.Entry.ClientDate),
		zap.Bool("clientWasOnline", record.Entry.ClientWasOnline),
		zap.String("clientIP", record.ClientIP),
		zap.String("requestID", record.RequestID),
	}
	if record.Entry.Error != "" {
		fields = append(fields,
			zap.String("clientError", record.Entry.Error),
			zap.String("clientErrorName", record.Entry.ErrorName),
			zap.String("clientStackTrace", record.Entry.StackTrace),
		)
	}
	if record.Entry.AdditionalInfo != "" {
		fields = append(fields, zap.String("additionalInfo", record.Entry.AdditionalInfo))
	}

	if ce := s.logger.Check(zapLevel(record.Level), "Client log: "+record.Entry.Message); ce != nil {
		ce.Write(fields...)
	}
	if s.metrics != nil {
		s.metrics.RecordClientLog(string(record.Level))
	}
}

// zapLevel maps client levels onto zap. Fatal is logged as error: a client
// fatal must not stop the server.
func zapLevel(level clientlog.Level) zapcore.Level {
	switch level {
	case clientlog.LevelDebug:
		return zapcore.DebugLevel
	case clientlog.LevelWarning:
		return zapcore.WarnLevel
	case clientlog.LevelError, clientlog.LevelFatal:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func validationError(index int, err error) error {
	details := map[string]interface{}{"index": index}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		details["fields"] = fields
	}

	return appErrors.NewValidationError(fmt.Sprintf("invalid client log entry at index %d", index)).
		WithDetails(details).
		WithCause(err)
}
