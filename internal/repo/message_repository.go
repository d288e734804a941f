package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"threadhub/internal/db"
	"threadhub/internal/model"
)

var (
	ErrInvalidMessage  = errors.New("invalid message: message cannot be nil")
	ErrMissingThreadID = errors.New("invalid message: thread ID cannot be empty")
)

const historyPageSize = 15

type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (string, error)
	FindByID(ctx context.Context, messageID string) (*model.Message, error)
	ByThread(ctx context.Context, threadID string) ([]model.Message, error)
	ByThreadPaginated(ctx context.Context, threadID string, page int64) (*db.PaginatedResult[model.Message], error)
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// Insert persists a message, retrying transient Mongo failures with
// exponential backoff. The write is atomic; no partial message is ever
// visible to readers.
func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (string, error) {
	if msg == nil {
		return "", ErrInvalidMessage
	}
	if msg.ThreadID.IsZero() {
		return "", ErrMissingThreadID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return "", err
			}
		}

		result, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			insertedID := ""
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				insertedID = oid.Hex()
				msg.ID = oid
			}

			m.logger.Info("message inserted",
				zap.String("inserted_id", insertedID),
				zap.String("thread_id", msg.ThreadID.Hex()),
				zap.Int("attempt", attempt+1),
			)
			return insertedID, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("thread_id", msg.ThreadID.Hex()),
	)
	return "", fmt.Errorf("insert message failed: %w", lastErr)
}

func (m *messageRepository) FindByID(ctx context.Context, messageID string) (*model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, primitive.ErrInvalidHex) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch message failed: %w", err)
	}
	return msg, nil
}

// ByThread returns the full message history of a thread in insertion
// order.
func (m *messageRepository) ByThread(ctx context.Context, threadID string) ([]model.Message, error) {
	if threadID == "" {
		return nil, ErrMissingThreadID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("thread_id", threadID).Build()
	messages, err := m.mongoRepo.FindSorted(ctx, filter, "created_at", false)
	if err != nil {
		return nil, m.handleReadError(err, threadID)
	}
	return messages, nil
}

// ByThreadPaginated returns one page of a thread's history, retrying
// transient read failures.
func (m *messageRepository) ByThreadPaginated(ctx context.Context, threadID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if threadID == "" {
		return nil, ErrMissingThreadID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("thread_id", threadID).Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			m.logger.Warn("retrying message history read",
				zap.String("thread_id", threadID),
				zap.Int("attempt", attempt+1),
			)
		}

		result, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
			Page:     page,
			PageSize: historyPageSize,
			SortBy:   "created_at",
			SortDesc: false,
		})
		if err == nil {
			m.logger.Debug("messages fetched",
				zap.String("thread_id", threadID),
				zap.Int("count", len(result.Data)),
				zap.Int64("total", result.Total),
			)
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	return nil, m.handleReadError(lastErr, threadID)
}

func (m *messageRepository) handleReadError(err error, threadID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("thread_id", threadID))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("thread_id", threadID))
		return err
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("thread_id", threadID))
	return fmt.Errorf("fetch messages failed: %w", err)
}
