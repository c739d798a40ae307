package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"myride/internal/util"
	"myride/pkg/domain"
)

// StartConversation returns the existing conversation between the two
// members about the vehicle, creating one on first contact. Conversations
// are never deleted.
func (a *App) StartConversation(ctx context.Context, memberID, otherID, vehicleID string) (domain.Conversation, error) {
	if otherID == "" || otherID == memberID {
		return domain.Conversation{}, fmt.Errorf("%w: conversation needs another member", ErrValidation)
	}
	if _, ok, err := a.store.GetMember(ctx, otherID); err != nil {
		return domain.Conversation{}, fmt.Errorf("get member: %w", err)
	} else if !ok {
		return domain.Conversation{}, ErrMemberNotFound
	}
	if vehicleID != "" {
		if _, ok, err := a.store.GetVehicle(ctx, vehicleID); err != nil {
			return domain.Conversation{}, fmt.Errorf("get vehicle: %w", err)
		} else if !ok {
			return domain.Conversation{}, ErrVehicleNotFound
		}
	}

	if c, ok, err := a.store.FindConversation(ctx, memberID, otherID, vehicleID); err != nil {
		return domain.Conversation{}, fmt.Errorf("find conversation: %w", err)
	} else if ok {
		return c, nil
	}

	now := time.Now().UTC()
	c := domain.Conversation{
		ID:             util.NewID(),
		ParticipantIDs: []string{memberID, otherID},
		VehicleID:      vehicleID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.CreateConversation(ctx, c); err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

// Conversations lists the member's conversations, most recent activity first.
func (a *App) Conversations(ctx context.Context, memberID string) ([]domain.Conversation, error) {
	out, err := a.store.ListConversationsByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// SendMessage appends a message to a conversation the member participates in.
func (a *App) SendMessage(ctx context.Context, memberID, conversationID string, kind domain.MessageKind, content string) (domain.Message, error) {
	switch kind {
	case domain.MessageText, domain.MessageImage, domain.MessageVideo:
	default:
		return domain.Message{}, fmt.Errorf("%w: unknown message kind %q", ErrValidation, kind)
	}
	if strings.TrimSpace(content) == "" {
		return domain.Message{}, fmt.Errorf("%w: empty message", ErrValidation)
	}
	if _, err := a.participantConversation(ctx, memberID, conversationID); err != nil {
		return domain.Message{}, err
	}

	now := time.Now().UTC()
	msg := domain.Message{
		ID:             util.NewID(),
		ConversationID: conversationID,
		SenderID:       memberID,
		Kind:           kind,
		Content:        content,
		SeenBy:         []string{memberID},
		CreatedAt:      now,
	}
	if err := a.store.AppendMessage(ctx, msg); err != nil {
		return domain.Message{}, fmt.Errorf("append message: %w", err)
	}
	if err := a.store.TouchConversation(ctx, conversationID, now); err != nil {
		return domain.Message{}, fmt.Errorf("touch conversation: %w", err)
	}
	return msg, nil
}

// Messages returns the conversation's messages in order and marks them seen
// by the reader.
func (a *App) Messages(ctx context.Context, memberID, conversationID string, limit int) ([]domain.Message, error) {
	if _, err := a.participantConversation(ctx, memberID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := a.store.ListMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if err := a.store.MarkMessagesSeen(ctx, conversationID, memberID); err != nil {
		return nil, fmt.Errorf("mark seen: %w", err)
	}
	return msgs, nil
}

func (a *App) participantConversation(ctx context.Context, memberID, conversationID string) (domain.Conversation, error) {
	c, ok, err := a.store.GetConversation(ctx, conversationID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("get conversation: %w", err)
	}
	if !ok {
		return domain.Conversation{}, ErrConversationNotFound
	}
	for _, p := range c.ParticipantIDs {
		if p == memberID {
			return c, nil
		}
	}
	return domain.Conversation{}, ErrForbidden
}
