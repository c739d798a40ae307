package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"myride/pkg/domain"
)

// MemoryStore keeps documents in-process. It backs tests and local
// development without a MongoDB instance.
type MemoryStore struct {
	mu            sync.RWMutex
	members       map[string]domain.Member
	vehicles      map[string]domain.Vehicle
	receipts      map[string]domain.Receipt
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message // conversation ID -> ordered messages
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members:       make(map[string]domain.Member),
		vehicles:      make(map[string]domain.Vehicle),
		receipts:      make(map[string]domain.Receipt),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

func (m *MemoryStore) SaveMember(_ context.Context, member domain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[member.ID] = member
	return nil
}

func (m *MemoryStore) GetMember(_ context.Context, id string) (domain.Member, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[id]
	return member, ok, nil
}

func (m *MemoryStore) GetMemberByEmail(_ context.Context, email string) (domain.Member, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, member := range m.members {
		if member.Email == email {
			return member, true, nil
		}
	}
	return domain.Member{}, false, nil
}

func (m *MemoryStore) HasMemberEmail(ctx context.Context, email string) (bool, error) {
	_, ok, err := m.GetMemberByEmail(ctx, email)
	return ok, err
}

func (m *MemoryStore) HasInvitationCode(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, member := range m.members {
		if member.InvitationCode != "" && member.InvitationCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) GetMemberByInvitationCode(_ context.Context, code string) (domain.Member, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, member := range m.members {
		if member.InvitationCode != "" && member.InvitationCode == code {
			return member, true, nil
		}
	}
	return domain.Member{}, false, nil
}

func (m *MemoryStore) MergeMember(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "display_name":
			member.DisplayName, _ = v.(string)
		case "photo_key":
			member.PhotoKey, _ = v.(string)
		case "rating":
			member.Rating = toInt(v)
		}
	}
	member.UpdatedAt = time.Now().UTC()
	m.members[id] = member
	return nil
}

func (m *MemoryStore) SaveVehicle(_ context.Context, v domain.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v
	return nil
}

func (m *MemoryStore) GetVehicle(_ context.Context, id string) (domain.Vehicle, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	return v, ok, nil
}

func (m *MemoryStore) ListVehiclesByOwner(_ context.Context, ownerID string) ([]domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Vehicle
	for _, v := range m.vehicles {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	sortVehicles(out)
	return out, nil
}

func (m *MemoryStore) ListListedVehicles(_ context.Context) ([]domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Vehicle
	for _, v := range m.vehicles {
		if v.Listed {
			out = append(out, v)
		}
	}
	sortVehicles(out)
	return out, nil
}

func (m *MemoryStore) MergeVehicle(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return ErrNotFound
	}
	for k, val := range fields {
		switch k {
		case "mileage":
			v.Mileage = toInt(val)
		case "description":
			v.Description, _ = val.(string)
		case "modified":
			v.Modified, _ = val.(bool)
		case "listed":
			v.Listed, _ = val.(bool)
		case "asking_price":
			v.AskingPrice = toFloat(val)
		case "manual_url":
			v.ManualURL, _ = val.(string)
		case "showcase_url":
			v.ShowcaseURL, _ = val.(string)
		case "schedule_status":
			if s, ok := val.(domain.ScheduleStatus); ok {
				v.ScheduleStatus = s
			} else if s, ok := val.(string); ok {
				v.ScheduleStatus = domain.ScheduleStatus(s)
			}
		case "photo_keys":
			if keys, ok := val.([]string); ok {
				v.PhotoKeys = keys
			}
		}
	}
	v.UpdatedAt = time.Now().UTC()
	m.vehicles[id] = v
	return nil
}

func (m *MemoryStore) DeleteVehicle(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[id]; !ok {
		return ErrNotFound
	}
	delete(m.vehicles, id)
	return nil
}

func (m *MemoryStore) UpsertAIEstimate(_ context.Context, vehicleID string, est domain.AIEstimate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return ErrNotFound
	}
	kept := v.AIEstimates[:0:0]
	for _, e := range v.AIEstimates {
		if e.Date != est.Date {
			kept = append(kept, e)
		}
	}
	v.AIEstimates = append(kept, est)
	v.UpdatedAt = time.Now().UTC()
	m.vehicles[vehicleID] = v
	return nil
}

func (m *MemoryStore) SaveReceipt(_ context.Context, r domain.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[r.ID] = r
	return nil
}

func (m *MemoryStore) GetReceipt(_ context.Context, id string) (domain.Receipt, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.receipts[id]
	return r, ok, nil
}

func (m *MemoryStore) ListReceiptsByVehicle(_ context.Context, vehicleID string) ([]domain.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Receipt
	for _, r := range m.receipts {
		if r.VehicleID == vehicleID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *MemoryStore) DeleteReceipt(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.receipts[id]; !ok {
		return ErrNotFound
	}
	delete(m.receipts, id)
	return nil
}

func (m *MemoryStore) CreateConversation(_ context.Context, c domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[c.ID] = c
	return nil
}

func (m *MemoryStore) GetConversation(_ context.Context, id string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	return c, ok, nil
}

func (m *MemoryStore) FindConversation(_ context.Context, memberA, memberB, vehicleID string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.conversations {
		if vehicleID != "" && c.VehicleID != vehicleID {
			continue
		}
		if containsAll(c.ParticipantIDs, memberA, memberB) {
			return c, true, nil
		}
	}
	return domain.Conversation{}, false, nil
}

func (m *MemoryStore) ListConversationsByMember(_ context.Context, memberID string) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Conversation
	for _, c := range m.conversations {
		for _, p := range c.ParticipantIDs {
			if p == memberID {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].CreatedAt, out[j].CreatedAt
		if out[i].LastMessageAt != nil {
			ti = *out[i].LastMessageAt
		}
		if out[j].LastMessageAt != nil {
			tj = *out[j].LastMessageAt
		}
		return ti.After(tj)
	})
	return out, nil
}

func (m *MemoryStore) TouchConversation(_ context.Context, id string, lastMessageAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.LastMessageAt = &lastMessageAt
	c.UpdatedAt = lastMessageAt
	m.conversations[id] = c
	return nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *MemoryStore) ListMessages(_ context.Context, conversationID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *MemoryStore) MarkMessagesSeen(_ context.Context, conversationID, memberID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	for i := range msgs {
		seen := false
		for _, id := range msgs[i].SeenBy {
			if id == memberID {
				seen = true
				break
			}
		}
		if !seen {
			msgs[i].SeenBy = append(msgs[i].SeenBy, memberID)
		}
	}
	return nil
}

func sortVehicles(vehicles []domain.Vehicle) {
	sort.Slice(vehicles, func(i, j int) bool {
		return vehicles[i].CreatedAt.After(vehicles[j].CreatedAt)
	})
}

func containsAll(ids []string, want ...string) bool {
	for _, w := range want {
		found := false
		for _, id := range ids {
			if id == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
