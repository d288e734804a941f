package repo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"threadhub/internal/db"
	"threadhub/internal/model"
)

type UserRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.User, error)
	FindByUserIDs(ctx context.Context, userIDs []string) ([]model.User, error)
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
	logger    *zap.Logger
}

func NewUserRepository(repo *db.Repository[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *userRepository) FindByUserID(ctx context.Context, userID string) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("user_id", userID).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to fetch user", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("fetch user failed: %w", err)
	}
	return user, nil
}

func (r *userRepository) FindByUserIDs(ctx context.Context, userIDs []string) ([]model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	users, err := r.mongoRepo.FindAll(ctx, db.NewFilter().In("user_id", userIDs).Build())
	if err != nil {
		r.logger.Error("failed to fetch users", zap.Int("count", len(userIDs)), zap.Error(err))
		return nil, fmt.Errorf("fetch users failed: %w", err)
	}
	return users, nil
}
