package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"threadhub/internal/db"
	"threadhub/internal/model"
	"threadhub/internal/repo"
)

// SendToThread validates the sender against the thread's participant
// set, persists the message, updates the thread preview and returns the
// sender-enriched payload. The returned ChatMessage is the canonical
// shape for both the HTTP response and the WebSocket broadcast.
func (s *Service) SendToThread(ctx context.Context, threadID, senderID, text string) (*model.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if senderID == "" {
		return nil, ErrIdentityRequired
	}

	thread, err := s.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(senderID) {
		return nil, ErrNotAParticipant
	}

	msg := &model.Message{
		ThreadID: thread.ID,
		SenderID: senderID,
		Body:     text,
	}
	if _, err := s.messages.Insert(ctx, msg); err != nil {
		return nil, storeErr(err)
	}

	if err := s.threads.SetLastMessage(ctx, thread.ID.Hex(), text); err != nil {
		// The message is already durable; a stale preview is the only
		// fallout, so log and keep going.
		s.logger.Warn("failed to update thread preview",
			zap.String("thread_id", thread.ID.Hex()),
			zap.Error(err),
		)
	}

	sender, err := s.senderRef(ctx, senderID)
	if err != nil {
		return nil, err
	}

	return &model.ChatMessage{
		ID:        msg.ID.Hex(),
		ThreadID:  thread.ID.Hex(),
		Sender:    sender,
		Message:   msg.Body,
		CreatedAt: msg.CreatedAt,
	}, nil
}

// SendDirect resolves the direct thread between sender and receiver and
// dispatches into it. The text is validated first: a direct thread must
// only ever be created by a message that will actually be stored.
func (s *Service) SendDirect(ctx context.Context, senderID, receiverID, text string) (*model.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	thread, err := s.FindOrCreateDirect(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	return s.SendToThread(ctx, thread.ID.Hex(), senderID, text)
}

// MessagesForThread returns the ordered history of a thread with sender
// display fields resolved.
func (s *Service) MessagesForThread(ctx context.Context, threadID string) ([]model.ChatMessage, error) {
	if _, err := s.GetByID(ctx, threadID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ByThread(ctx, threadID)
	if err != nil {
		return nil, storeErr(err)
	}

	refs, err := s.resolveUsers(ctx, lo.Uniq(lo.Map(messages, func(m model.Message, _ int) string {
		return m.SenderID
	})))
	if err != nil {
		return nil, err
	}

	return lo.Map(messages, func(m model.Message, _ int) model.ChatMessage {
		return model.ChatMessage{
			ID:        m.ID.Hex(),
			ThreadID:  m.ThreadID.Hex(),
			Sender:    refs[m.SenderID],
			Message:   m.Body,
			CreatedAt: m.CreatedAt,
		}
	}), nil
}

// RawMessagesForThread returns one page of a thread's raw message
// documents without sender enrichment.
func (s *Service) RawMessagesForThread(ctx context.Context, threadID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if _, err := s.GetByID(ctx, threadID); err != nil {
		return nil, err
	}

	result, err := s.messages.ByThreadPaginated(ctx, threadID, page)
	if err != nil {
		return nil, storeErr(err)
	}
	return result, nil
}

func (s *Service) senderRef(ctx context.Context, senderID string) (model.UserRef, error) {
	user, err := s.users.FindByUserID(ctx, senderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.UserRef{ID: senderID}, nil
		}
		return model.UserRef{}, storeErr(err)
	}
	return user.Ref(), nil
}
