package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"myride/pkg/domain"
)

// MongoStore implements Store on a MongoDB database.
type MongoStore struct {
	members       *mongo.Collection
	vehicles      *mongo.Collection
	receipts      *mongo.Collection
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// NewMongoStore connects to MongoDB, verifies the connection, and binds
// the named collections.
func NewMongoStore(uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	db := client.Database(database)
	return &MongoStore{
		members:       db.Collection("members"),
		vehicles:      db.Collection("vehicles"),
		receipts:      db.Collection("receipts"),
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}, nil
}

// --- members ---

func (s *MongoStore) SaveMember(ctx context.Context, m domain.Member) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.members.ReplaceOne(ctx, bson.M{"_id": m.ID}, m, opts)
	return err
}

func (s *MongoStore) GetMember(ctx context.Context, id string) (domain.Member, bool, error) {
	var m domain.Member
	err := s.members.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return domain.Member{}, false, nil
	}
	if err != nil {
		return domain.Member{}, false, err
	}
	return m, true, nil
}

func (s *MongoStore) GetMemberByEmail(ctx context.Context, email string) (domain.Member, bool, error) {
	var m domain.Member
	err := s.members.FindOne(ctx, bson.M{"email": email}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return domain.Member{}, false, nil
	}
	if err != nil {
		return domain.Member{}, false, err
	}
	return m, true, nil
}

func (s *MongoStore) HasMemberEmail(ctx context.Context, email string) (bool, error) {
	count, err := s.members.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MongoStore) HasInvitationCode(ctx context.Context, code string) (bool, error) {
	count, err := s.members.CountDocuments(ctx, bson.M{"invitation_code": code})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MongoStore) GetMemberByInvitationCode(ctx context.Context, code string) (domain.Member, bool, error) {
	var m domain.Member
	err := s.members.FindOne(ctx, bson.M{"invitation_code": code}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return domain.Member{}, false, nil
	}
	if err != nil {
		return domain.Member{}, false, err
	}
	return m, true, nil
}

func (s *MongoStore) MergeMember(ctx context.Context, id string, fields map[string]any) error {
	return s.merge(ctx, s.members, id, fields)
}

// --- vehicles ---

func (s *MongoStore) SaveVehicle(ctx context.Context, v domain.Vehicle) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.vehicles.ReplaceOne(ctx, bson.M{"_id": v.ID}, v, opts)
	return err
}

func (s *MongoStore) GetVehicle(ctx context.Context, id string) (domain.Vehicle, bool, error) {
	var v domain.Vehicle
	err := s.vehicles.FindOne(ctx, bson.M{"_id": id}).Decode(&v)
	if err == mongo.ErrNoDocuments {
		return domain.Vehicle{}, false, nil
	}
	if err != nil {
		return domain.Vehicle{}, false, err
	}
	return v, true, nil
}

func (s *MongoStore) ListVehiclesByOwner(ctx context.Context, ownerID string) ([]domain.Vehicle, error) {
	return s.findVehicles(ctx, bson.M{"owner_id": ownerID})
}

func (s *MongoStore) ListListedVehicles(ctx context.Context) ([]domain.Vehicle, error) {
	return s.findVehicles(ctx, bson.M{"listed": true})
}

func (s *MongoStore) findVehicles(ctx context.Context, filter bson.M) ([]domain.Vehicle, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.vehicles.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []domain.Vehicle
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) MergeVehicle(ctx context.Context, id string, fields map[string]any) error {
	return s.merge(ctx, s.vehicles, id, fields)
}

func (s *MongoStore) DeleteVehicle(ctx context.Context, id string) error {
	result, err := s.vehicles.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertAIEstimate rewrites the vehicle's estimate series in a single
// aggregation-pipeline update: entries for est.Date are filtered out and
// est is appended, so the at-most-one-per-day invariant holds without a
// read-then-write race.
func (s *MongoStore) UpsertAIEstimate(ctx context.Context, vehicleID string, est domain.AIEstimate) error {
	entry := bson.M{"amount": est.Amount, "date": est.Date}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"ai_estimates": bson.M{
				"$concatArrays": bson.A{
					bson.M{"$filter": bson.M{
						"input": bson.M{"$ifNull": bson.A{"$ai_estimates", bson.A{}}},
						"cond":  bson.M{"$ne": bson.A{"$$this.date", est.Date}},
					}},
					bson.A{entry},
				},
			},
			"updated_at": time.Now().UTC(),
		}}},
	}
	result, err := s.vehicles.UpdateOne(ctx, bson.M{"_id": vehicleID}, pipeline)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- receipts ---

func (s *MongoStore) SaveReceipt(ctx context.Context, r domain.Receipt) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.receipts.ReplaceOne(ctx, bson.M{"_id": r.ID}, r, opts)
	return err
}

func (s *MongoStore) GetReceipt(ctx context.Context, id string) (domain.Receipt, bool, error) {
	var r domain.Receipt
	err := s.receipts.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return domain.Receipt{}, false, nil
	}
	if err != nil {
		return domain.Receipt{}, false, err
	}
	return r, true, nil
}

func (s *MongoStore) ListReceiptsByVehicle(ctx context.Context, vehicleID string) ([]domain.Receipt, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := s.receipts.Find(ctx, bson.M{"vehicle_id": vehicleID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []domain.Receipt
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) DeleteReceipt(ctx context.Context, id string) error {
	result, err := s.receipts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// --- conversations ---

func (s *MongoStore) CreateConversation(ctx context.Context, c domain.Conversation) error {
	_, err := s.conversations.InsertOne(ctx, c)
	return err
}

func (s *MongoStore) GetConversation(ctx context.Context, id string) (domain.Conversation, bool, error) {
	var c domain.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return domain.Conversation{}, false, nil
	}
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return c, true, nil
}

func (s *MongoStore) FindConversation(ctx context.Context, memberA, memberB, vehicleID string) (domain.Conversation, bool, error) {
	filter := bson.M{
		"participant_ids": bson.M{"$all": bson.A{memberA, memberB}},
	}
	if vehicleID != "" {
		filter["vehicle_id"] = vehicleID
	}
	var c domain.Conversation
	err := s.conversations.FindOne(ctx, filter).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return domain.Conversation{}, false, nil
	}
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return c, true, nil
}

func (s *MongoStore) ListConversationsByMember(ctx context.Context, memberID string) ([]domain.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	cursor, err := s.conversations.Find(ctx, bson.M{"participant_ids": memberID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []domain.Conversation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) TouchConversation(ctx context.Context, id string, lastMessageAt time.Time) error {
	_, err := s.conversations.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"last_message_at": lastMessageAt, "updated_at": lastMessageAt},
	})
	return err
}

func (s *MongoStore) AppendMessage(ctx context.Context, msg domain.Message) error {
	_, err := s.messages.InsertOne(ctx, msg)
	return err
}

func (s *MongoStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := s.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var out []domain.Message
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) MarkMessagesSeen(ctx context.Context, conversationID, memberID string) error {
	_, err := s.messages.UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "seen_by": bson.M{"$ne": memberID}},
		bson.M{"$addToSet": bson.M{"seen_by": memberID}},
	)
	return err
}

func (s *MongoStore) merge(ctx context.Context, coll *mongo.Collection, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	result, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
