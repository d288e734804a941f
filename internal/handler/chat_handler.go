package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"threadhub/internal/auth"
	"threadhub/internal/chat"
	"threadhub/internal/db"
	"threadhub/internal/model"
)

// ChatService is the request/response surface the REST layer consumes.
// Implemented by *chat.Service.
type ChatService interface {
	SendDirect(ctx context.Context, senderID, receiverID, text string) (*model.ChatMessage, error)
	SendToThread(ctx context.Context, threadID, senderID, text string) (*model.ChatMessage, error)
	MessagesForThread(ctx context.Context, threadID string) ([]model.ChatMessage, error)
	RawMessagesForThread(ctx context.Context, threadID string, page int64) (*db.PaginatedResult[model.Message], error)
	ThreadsForUser(ctx context.Context, userID string) ([]model.ThreadView, error)
	CreateGroup(ctx context.Context, creatorID string, participantIDs []string, name string) (*model.Thread, error)
}

type ChatHandler interface {
	SendChat(c *gin.Context)
	GetChats(c *gin.Context)
	GetChatByThread(c *gin.Context)
	GetChatByUser(c *gin.Context)
	CreateGroupThread(c *gin.Context)
	SendMessageToThread(c *gin.Context)
}

type chatHandler struct {
	service ChatService
}

func NewChatHandler(service ChatService) ChatHandler {
	return &chatHandler{service: service}
}

type sendChatRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
	Message    string `json:"message" binding:"required"`
}

type createGroupRequest struct {
	ParticipantIDs []string `json:"participantIds" binding:"required,min=1,dive,required"`
	Name           string   `json:"name"`
}

type sendToThreadRequest struct {
	Message string `json:"message" binding:"required"`
}

// SendChat sends a direct message by receiver id, creating the direct
// thread on first contact.
func (h *chatHandler) SendChat(c *gin.Context) {
	senderID, ok := auth.UserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req sendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "receiverId and message required")
		return
	}

	msg, err := h.service.SendDirect(c.Request.Context(), senderID, req.ReceiverID, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": msg})
}

// GetChats returns one page of a thread's raw message history.
func (h *chatHandler) GetChats(c *gin.Context) {
	threadID := c.Query("threadId")
	if threadID == "" {
		badRequest(c, "threadId required")
		return
	}

	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)

	result, err := h.service.RawMessagesForThread(c.Request.Context(), threadID, page)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// GetChatByThread returns the full sender-enriched history of a thread.
func (h *chatHandler) GetChatByThread(c *gin.Context) {
	threadID := c.Query("threadId")
	if threadID == "" {
		badRequest(c, "threadId required")
		return
	}

	messages, err := h.service.MessagesForThread(c.Request.Context(), threadID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": messages})
}

// GetChatByUser lists the caller's threads, most recently active first.
func (h *chatHandler) GetChatByUser(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		userID = c.Query("userId")
	}
	if userID == "" {
		badRequest(c, "userId required (query or auth)")
		return
	}

	threads, err := h.service.ThreadsForUser(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": threads})
}

// CreateGroupThread creates a named group thread owned by the caller.
func (h *chatHandler) CreateGroupThread(c *gin.Context) {
	creatorID, ok := auth.UserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "participantIds required")
		return
	}

	thread, err := h.service.CreateGroup(c.Request.Context(), creatorID, req.ParticipantIDs, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": thread})
}

// SendMessageToThread sends into an existing direct or group thread.
func (h *chatHandler) SendMessageToThread(c *gin.Context) {
	senderID, ok := auth.UserID(c)
	if !ok {
		unauthorized(c)
		return
	}

	threadID := c.Param("threadId")
	var req sendToThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil || threadID == "" {
		badRequest(c, "threadId and message required")
		return
	}

	msg, err := h.service.SendToThread(c.Request.Context(), threadID, senderID, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": msg})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

// fail maps service errors onto the REST envelope. Thread lookups that
// miss are 404s; store failures surface as 503 so callers know to
// retry; everything else is a caller mistake.
func fail(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, chat.ErrThreadNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}
