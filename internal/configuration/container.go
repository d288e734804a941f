package configuration

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"threadhub/internal/auth"
	"threadhub/internal/chat"
	"threadhub/internal/db"
	"threadhub/internal/handler"
	"threadhub/internal/hub"
	"threadhub/internal/model"
	"threadhub/internal/repo"
)

type Container struct {
	ChatHandler handler.ChatHandler
	Hub         *hub.Hub
	Verifier    *auth.Verifier
	Config      Config
	Logger      *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer() (*Container, error) {
	config, err := LoadConfig(ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	con, err := db.OpenConnection(config.Mongo.Uri, config.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	threadRepo := repo.NewThreadRepository(db.NewRepository[model.Thread](con, config.Mongo.ThreadsCollection), logger)
	messageRepo := repo.NewMessageRepository(db.NewRepository[model.Message](con, config.Mongo.MessagesCollection), logger)
	userRepo := repo.NewUserRepository(db.NewRepository[model.User](con, config.Mongo.UsersCollection), logger)

	chatService := chat.NewService(threadRepo, messageRepo, userRepo, logger)
	verifier := auth.NewVerifier(config.Auth.JwtSecret)

	h := hub.NewHub(hub.Config{
		Chats:                 chatService,
		Verifier:              verifier,
		Logger:                logger,
		AllowDeclaredIdentity: config.Auth.AllowDeclaredIdentity,
		AllowedOrigins:        config.AllowedOrigins,
	})

	return &Container{
		ChatHandler: handler.NewChatHandler(chatService),
		Hub:         h,
		Verifier:    verifier,
		Config:      *config,
		Logger:      logger,
		mongoClient: con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
