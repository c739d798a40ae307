package app

import (
	"context"
	"testing"

	"myride/pkg/domain"
)

func TestStartConversationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.member(t, "buyer@example.com")
	seller := f.member(t, "seller@example.com")
	v := f.vehicle(t, seller.ID)

	first, err := f.app.StartConversation(ctx, buyer.ID, seller.ID, v.ID)
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}
	// other direction, same pair and vehicle
	second, err := f.app.StartConversation(ctx, seller.ID, buyer.ID, v.ID)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("duplicate conversation created: %q vs %q", first.ID, second.ID)
	}
}

func TestStartConversationRejectsSelf(t *testing.T) {
	f := newFixture(t)
	m := f.member(t, "a@example.com")
	if _, err := f.app.StartConversation(context.Background(), m.ID, m.ID, ""); err == nil {
		t.Fatalf("expected self-conversation to be rejected")
	}
}

func TestSendAndReadMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.member(t, "buyer@example.com")
	seller := f.member(t, "seller@example.com")

	c, err := f.app.StartConversation(ctx, buyer.ID, seller.ID, "")
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}
	sent, err := f.app.SendMessage(ctx, buyer.ID, c.ID, domain.MessageText, "Still available?")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if len(sent.SeenBy) != 1 || sent.SeenBy[0] != buyer.ID {
		t.Fatalf("sender not in seen-by: %v", sent.SeenBy)
	}

	msgs, err := f.app.Messages(ctx, seller.ID, c.ID, 0)
	if err != nil {
		t.Fatalf("read messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "Still available?" {
		t.Fatalf("messages = %+v", msgs)
	}

	// reading marks seen
	msgs, _ = f.app.Messages(ctx, seller.ID, c.ID, 0)
	if len(msgs[0].SeenBy) != 2 {
		t.Fatalf("seen-by after read = %v", msgs[0].SeenBy)
	}

	convs, err := f.app.Conversations(ctx, seller.ID)
	if err != nil || len(convs) != 1 {
		t.Fatalf("conversations = %d, err %v", len(convs), err)
	}
	if convs[0].LastMessageAt == nil {
		t.Fatalf("last message time not touched")
	}
}

func TestMessagesRequireParticipation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := f.member(t, "buyer@example.com")
	seller := f.member(t, "seller@example.com")
	outsider := f.member(t, "outsider@example.com")

	c, err := f.app.StartConversation(ctx, buyer.ID, seller.ID, "")
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}
	if _, err := f.app.SendMessage(ctx, outsider.ID, c.ID, domain.MessageText, "hi"); err != ErrForbidden {
		t.Fatalf("outsider sent message: %v", err)
	}
	if _, err := f.app.Messages(ctx, outsider.ID, c.ID, 0); err != ErrForbidden {
		t.Fatalf("outsider read messages: %v", err)
	}
}
