package chat

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"threadhub/internal/model"
	"threadhub/internal/repo"
)

// FindOrCreateDirect returns the unique direct thread between the two
// users, creating it on first contact. The pair is canonicalized so
// argument order does not matter, and creation is serialized through a
// per-pair lock so concurrent first messages inside this process cannot
// duplicate the thread. Two processes can still race; see DESIGN.md.
func (s *Service) FindOrCreateDirect(ctx context.Context, userA, userB string) (*model.Thread, error) {
	if userA == "" || userB == "" {
		return nil, ErrIdentityRequired
	}
	if userA == userB {
		return nil, ErrInvalidThreadComposition
	}

	pair := []string{userA, userB}
	sort.Strings(pair)

	release := s.lockPair(strings.Join(pair, "|"))
	defer release()

	thread, err := s.threads.FindDirectByParticipants(ctx, pair)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, storeErr(err)
	}

	thread = &model.Thread{
		Type:         model.ThreadTypeDirect,
		Participants: pair,
	}
	if _, err := s.threads.Insert(ctx, thread); err != nil {
		return nil, storeErr(err)
	}

	s.logger.Info("direct thread created",
		zap.String("thread_id", thread.ID.Hex()),
		zap.Strings("participants", pair),
	)
	return thread, nil
}

// CreateGroup creates a named group thread. The creator is always a
// participant; duplicates are collapsed and the resulting set must hold
// at least two distinct members.
func (s *Service) CreateGroup(ctx context.Context, creatorID string, participantIDs []string, name string) (*model.Thread, error) {
	if creatorID == "" {
		return nil, ErrIdentityRequired
	}

	ids := lo.Uniq(lo.Filter(append([]string{creatorID}, participantIDs...), func(id string, _ int) bool {
		return id != ""
	}))
	if len(ids) < 2 {
		return nil, ErrInvalidThreadComposition
	}

	thread := &model.Thread{
		Type:         model.ThreadTypeGroup,
		Name:         name,
		CreatedBy:    creatorID,
		Participants: ids,
	}
	if _, err := s.threads.Insert(ctx, thread); err != nil {
		return nil, storeErr(err)
	}

	s.logger.Info("group thread created",
		zap.String("thread_id", thread.ID.Hex()),
		zap.String("created_by", creatorID),
		zap.Int("participants", len(ids)),
	)
	return thread, nil
}

// GetByID fetches a thread for membership checks before channel joins
// and typing broadcasts.
func (s *Service) GetByID(ctx context.Context, threadID string) (*model.Thread, error) {
	if threadID == "" {
		return nil, ErrThreadRequired
	}

	thread, err := s.threads.FindByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrInvalidThreadID) {
			return nil, ErrThreadNotFound
		}
		return nil, storeErr(err)
	}
	return thread, nil
}

// ThreadsForUser lists the user's threads, most recently active first,
// with participant display fields resolved.
func (s *Service) ThreadsForUser(ctx context.Context, userID string) ([]model.ThreadView, error) {
	if userID == "" {
		return nil, ErrIdentityRequired
	}

	threads, err := s.threads.FindByParticipant(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}

	refs, err := s.resolveUsers(ctx, lo.Uniq(lo.Flatten(lo.Map(threads, func(t model.Thread, _ int) []string {
		return t.Participants
	}))))
	if err != nil {
		return nil, err
	}

	return lo.Map(threads, func(t model.Thread, _ int) model.ThreadView {
		return model.ThreadView{
			ID:        t.ID.Hex(),
			Type:      t.Type,
			Name:      t.Name,
			CreatedBy: t.CreatedBy,
			Participants: lo.Map(t.Participants, func(id string, _ int) model.UserRef {
				return refs[id]
			}),
			LastMessage: t.LastMessage,
			UpdatedAt:   t.UpdatedAt,
		}
	}), nil
}

// resolveUsers maps user ids to display refs. Ids with no user document
// degrade to a bare ref so a missing profile never blocks delivery.
func (s *Service) resolveUsers(ctx context.Context, userIDs []string) (map[string]model.UserRef, error) {
	refs := make(map[string]model.UserRef, len(userIDs))
	for _, id := range userIDs {
		refs[id] = model.UserRef{ID: id}
	}
	if len(userIDs) == 0 {
		return refs, nil
	}

	users, err := s.users.FindByUserIDs(ctx, userIDs)
	if err != nil {
		return nil, storeErr(err)
	}
	for _, u := range users {
		refs[u.UserID] = u.Ref()
	}
	return refs, nil
}
