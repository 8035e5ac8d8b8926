package services

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/taskhive/taskhive-backend/internal/events"
	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/store"
)

// ConversationService exposes read and delete operations over chat
// transcripts. Writes happen only through the chat pipeline.
type ConversationService struct {
	store store.Store
	bus   *events.Bus
	log   zerolog.Logger
}

func NewConversationService(s store.Store, bus *events.Bus, log zerolog.Logger) *ConversationService {
	return &ConversationService{store: s, bus: bus, log: log}
}

func (s *ConversationService) List(ctx context.Context, userID int64) ([]*model.ConversationSummary, error) {
	return s.store.Conversations().List(ctx, userID)
}

func (s *ConversationService) Get(ctx context.Context, userID, conversationID int64) (*model.Conversation, error) {
	return s.store.Conversations().Get(ctx, userID, conversationID)
}

func (s *ConversationService) Messages(ctx context.Context, userID, conversationID int64, skip, limit int) ([]*model.Message, error) {
	return s.store.Conversations().Messages(ctx, userID, conversationID, skip, limit)
}

func (s *ConversationService) Delete(ctx context.Context, userID, conversationID int64) error {
	if err := s.store.Conversations().Delete(ctx, userID, conversationID); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:    events.ConversationDeleted,
			UserID:  userID,
			Payload: map[string]int64{"conversation_id": conversationID},
		})
	}
	return nil
}
