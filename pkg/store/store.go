package store

import (
	"context"
	"errors"
	"time"

	"myride/pkg/domain"
)

// ErrNotFound is returned by point lookups when no document matches.
var ErrNotFound = errors.New("document not found")

// Store defines persistence operations for members, vehicles, receipts,
// and conversations. Implementations provide read-after-write consistency
// within a single request.
type Store interface {
	// members
	SaveMember(ctx context.Context, m domain.Member) error
	GetMember(ctx context.Context, id string) (domain.Member, bool, error)
	GetMemberByEmail(ctx context.Context, email string) (domain.Member, bool, error)
	HasMemberEmail(ctx context.Context, email string) (bool, error)
	HasInvitationCode(ctx context.Context, code string) (bool, error)
	GetMemberByInvitationCode(ctx context.Context, code string) (domain.Member, bool, error)
	MergeMember(ctx context.Context, id string, fields map[string]any) error

	// vehicles
	SaveVehicle(ctx context.Context, v domain.Vehicle) error
	GetVehicle(ctx context.Context, id string) (domain.Vehicle, bool, error)
	ListVehiclesByOwner(ctx context.Context, ownerID string) ([]domain.Vehicle, error)
	ListListedVehicles(ctx context.Context) ([]domain.Vehicle, error)
	MergeVehicle(ctx context.Context, id string, fields map[string]any) error
	DeleteVehicle(ctx context.Context, id string) error
	// UpsertAIEstimate replaces any same-day entry of the vehicle's AI
	// valuation series with est, in one atomic write.
	UpsertAIEstimate(ctx context.Context, vehicleID string, est domain.AIEstimate) error

	// receipts
	SaveReceipt(ctx context.Context, r domain.Receipt) error
	GetReceipt(ctx context.Context, id string) (domain.Receipt, bool, error)
	ListReceiptsByVehicle(ctx context.Context, vehicleID string) ([]domain.Receipt, error)
	DeleteReceipt(ctx context.Context, id string) error

	// conversations
	CreateConversation(ctx context.Context, c domain.Conversation) error
	GetConversation(ctx context.Context, id string) (domain.Conversation, bool, error)
	FindConversation(ctx context.Context, memberA, memberB, vehicleID string) (domain.Conversation, bool, error)
	ListConversationsByMember(ctx context.Context, memberID string) ([]domain.Conversation, error)
	TouchConversation(ctx context.Context, id string, lastMessageAt time.Time) error
	AppendMessage(ctx context.Context, msg domain.Message) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	MarkMessagesSeen(ctx context.Context, conversationID, memberID string) error
}
