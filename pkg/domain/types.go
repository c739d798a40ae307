package domain

import "time"

type VehicleType string

const (
	TypeCar        VehicleType = "car"
	TypeMotorcycle VehicleType = "motorcycle"
	TypeTruck      VehicleType = "truck"
)

// ReceiptCategory is one of the four fixed spending categories.
type ReceiptCategory string

const (
	CategoryRepair          ReceiptCategory = "Repair"
	CategoryScheduledMaint  ReceiptCategory = "Scheduled Maintenance"
	CategoryCosmeticMods    ReceiptCategory = "Cosmetic Mods"
	CategoryPerformanceMods ReceiptCategory = "Performance Mods"
)

// MileageUnknown is the sentinel stored when the odometer reading
// for a receipt was not recorded.
const MileageUnknown = "Unknown"

type ScheduleStatus string

const (
	ScheduleUninitialized ScheduleStatus = "uninitialized"
	ScheduleSynced        ScheduleStatus = "synced"
)

// Vehicle is a member-owned vehicle, optionally listed on the marketplace.
type Vehicle struct {
	ID             string         `json:"id" bson:"_id"`
	OwnerID        string         `json:"ownerId" bson:"owner_id"`
	Type           VehicleType    `json:"type" bson:"type"`
	Make           string         `json:"make" bson:"make"`
	Model          string         `json:"model" bson:"model"`
	Year           int            `json:"year" bson:"year"`
	Mileage        int            `json:"mileage" bson:"mileage"`
	PurchasePrice  float64        `json:"purchasePrice" bson:"purchase_price"`
	PurchaseYear   int            `json:"purchaseYear" bson:"purchase_year"`
	Description    string         `json:"description,omitempty" bson:"description,omitempty"`
	Modified       bool           `json:"modified" bson:"modified"`
	Listed         bool           `json:"listed" bson:"listed"`
	AskingPrice    float64        `json:"askingPrice,omitempty" bson:"asking_price,omitempty"`
	ManualURL      string         `json:"manualUrl,omitempty" bson:"manual_url,omitempty"`
	PhotoKeys      []string       `json:"photoKeys" bson:"photo_keys"`
	ShowcaseURL    string         `json:"showcaseUrl,omitempty" bson:"showcase_url,omitempty"`
	ScheduleStatus ScheduleStatus `json:"scheduleStatus" bson:"schedule_status"`
	// AIEstimates holds at most one entry per calendar day; a same-day
	// recompute replaces the existing entry.
	AIEstimates []AIEstimate `json:"aiEstimates,omitempty" bson:"ai_estimates,omitempty"`
	CreatedAt   time.Time    `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time    `json:"updatedAt" bson:"updated_at"`
}

// AIEstimate is a single dated point of the AI valuation series.
// Date uses the MM/DD/YYYY wire convention.
type AIEstimate struct {
	Amount float64 `json:"amount" bson:"amount"`
	Date   string  `json:"date" bson:"date"`
}

// MaintenanceTable is the per-vehicle schedule blob stored at
// listing/{vehicleID}/docs/maintenanceTable.json.
type MaintenanceTable struct {
	VehicleID string         `json:"vehicleId"`
	Status    ScheduleStatus `json:"status"`
	Tasks     []ScheduleTask `json:"tasks"`
	SyncedAt  time.Time      `json:"syncedAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ScheduleTask is one maintenance item. Frequency keeps the manual's
// mixed encoding: plain miles ("5000") or years with a trailing marker ("2Y").
type ScheduleTask struct {
	Name         string `json:"name"`
	Frequency    string `json:"frequency"`
	LastTimeDone *int   `json:"lastTimeDone"`
	NextTimeToDo *int   `json:"nextTimeToDo"`
}

// ScheduleAnalysis is the derived three-part summary of a table.
type ScheduleAnalysis struct {
	MostUrgent   *ScheduleTask `json:"mostUrgent"`
	NoHistory    []string      `json:"noHistory"`
	CoveragePct  float64       `json:"coveragePct"`
	TotalTasks   int           `json:"totalTasks"`
	TrackedTasks int           `json:"trackedTasks"`
}

// Receipt is a dated, priced, categorized record belonging to one vehicle.
type Receipt struct {
	ID             string          `json:"id" bson:"_id"`
	VehicleID      string          `json:"vehicleId" bson:"vehicle_id"`
	Title          string          `json:"title" bson:"title"`
	Date           time.Time       `json:"date" bson:"date"`
	Category       ReceiptCategory `json:"category" bson:"category"`
	Mileage        string          `json:"mileage" bson:"mileage"`
	Price          float64         `json:"price" bson:"price"`
	AttachmentKeys []string        `json:"attachmentKeys,omitempty" bson:"attachment_keys,omitempty"`
	CreatedAt      time.Time       `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" bson:"updated_at"`
}

// SpendSummary holds the derived sums over a vehicle's receipts.
type SpendSummary struct {
	TotalSpent           float64                     `json:"totalSpent"`
	WithoutPurchasePrice float64                     `json:"withoutPurchasePrice"`
	ByCategory           map[ReceiptCategory]float64 `json:"byCategory"`
}

// ValuationPoint is one point of a deterministic depreciation curve.
type ValuationPoint struct {
	Year         int     `json:"year"`
	StraightLine float64 `json:"straightLine"`
	Exponential  float64 `json:"exponential"`
}

type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
	MessageVideo MessageKind = "video"
)

// Conversation pairs two members, optionally about a vehicle.
// Conversations are never deleted.
type Conversation struct {
	ID             string     `json:"id" bson:"_id"`
	ParticipantIDs []string   `json:"participantIds" bson:"participant_ids"`
	VehicleID      string     `json:"vehicleId,omitempty" bson:"vehicle_id,omitempty"`
	LastMessageAt  *time.Time `json:"lastMessageAt,omitempty" bson:"last_message_at,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" bson:"updated_at"`
}

type Message struct {
	ID             string      `json:"id" bson:"_id"`
	ConversationID string      `json:"conversationId" bson:"conversation_id"`
	SenderID       string      `json:"senderId" bson:"sender_id"`
	Kind           MessageKind `json:"kind" bson:"kind"`
	Content        string      `json:"content" bson:"content"`
	SeenBy         []string    `json:"seenBy" bson:"seen_by"`
	CreatedAt      time.Time   `json:"createdAt" bson:"created_at"`
}

// Member is a registered user of the marketplace.
type Member struct {
	ID             string    `json:"id" bson:"_id"`
	Email          string    `json:"email" bson:"email"`
	DisplayName    string    `json:"displayName" bson:"display_name"`
	PasswordHash   string    `json:"-" bson:"password_hash"`
	PhotoKey       string    `json:"photoKey,omitempty" bson:"photo_key,omitempty"`
	Rating         int       `json:"rating" bson:"rating"`
	InviterID      string    `json:"inviterId,omitempty" bson:"inviter_id,omitempty"`
	InvitationCode string    `json:"invitationCode,omitempty" bson:"invitation_code,omitempty"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updated_at"`
}

// Session identifies the authenticated member for one request.
// It is passed explicitly into every app operation.
type Session struct {
	MemberID string
	Token    string
}
