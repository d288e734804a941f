package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"threadhub/internal/db"
	"threadhub/internal/model"
)

var ErrInvalidThreadID = errors.New("invalid thread ID: cannot be empty")

type ThreadRepository interface {
	Insert(ctx context.Context, thread *model.Thread) (string, error)
	FindByID(ctx context.Context, threadID string) (*model.Thread, error)
	FindDirectByParticipants(ctx context.Context, participants []string) (*model.Thread, error)
	FindByParticipant(ctx context.Context, userID string) ([]model.Thread, error)
	SetLastMessage(ctx context.Context, threadID string, preview string) error
}

type threadRepository struct {
	mongoRepo *db.Repository[model.Thread]
	logger    *zap.Logger
}

func NewThreadRepository(repo *db.Repository[model.Thread], logger *zap.Logger) ThreadRepository {
	return &threadRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *threadRepository) Insert(ctx context.Context, thread *model.Thread) (string, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	thread.CreatedAt = now
	thread.UpdatedAt = now

	result, err := r.mongoRepo.Create(ctx, *thread)
	if err != nil {
		r.logger.Error("failed to insert thread",
			zap.String("type", thread.Type),
			zap.Error(err),
		)
		return "", fmt.Errorf("insert thread failed: %w", err)
	}

	insertedID := ""
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		insertedID = oid.Hex()
		thread.ID = oid
	}

	r.logger.Info("thread created",
		zap.String("thread_id", insertedID),
		zap.String("type", thread.Type),
		zap.Int("participants", len(thread.Participants)),
	)
	return insertedID, nil
}

func (r *threadRepository) FindByID(ctx context.Context, threadID string) (*model.Thread, error) {
	if threadID == "" {
		return nil, ErrInvalidThreadID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	thread, err := r.mongoRepo.FindByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || errors.Is(err, primitive.ErrInvalidHex) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to fetch thread",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("fetch thread failed: %w", err)
	}
	return thread, nil
}

// FindDirectByParticipants looks up the direct thread whose participant
// set is exactly the given pair, regardless of order.
func (r *threadRepository) FindDirectByParticipants(ctx context.Context, participants []string) (*model.Thread, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("type", model.ThreadTypeDirect).
		SizedAll("participants", participants).
		Build()

	thread, err := r.mongoRepo.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to look up direct thread", zap.Error(err))
		return nil, fmt.Errorf("direct thread lookup failed: %w", err)
	}
	return thread, nil
}

func (r *threadRepository) FindByParticipant(ctx context.Context, userID string) ([]model.Thread, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participants", userID).Build()
	threads, err := r.mongoRepo.FindSorted(ctx, filter, "updated_at", true)
	if err != nil {
		r.logger.Error("failed to list threads for user",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list threads failed: %w", err)
	}
	return threads, nil
}

// SetLastMessage updates the denormalized preview and bumps updated_at.
func (r *threadRepository) SetLastMessage(ctx context.Context, threadID string, preview string) error {
	if threadID == "" {
		return ErrInvalidThreadID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.UpdateByID(ctx, threadID, bson.M{
		"last_message": preview,
		"updated_at":   time.Now().UTC(),
	})
	if err != nil {
		r.logger.Error("failed to update last message",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		return fmt.Errorf("update last message failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
