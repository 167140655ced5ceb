// Package mongodb persists conversations in a single MongoDB collection, one
// document per conversation with its messages embedded.
package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/mrsidrdx/context-graph-ai/domain/conversation"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

// Connect creates a client for uri. The driver connects lazily; use Ping to
// check reachability.
func Connect(uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.NewConfigurationError("MONGODB_URI")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to MongoDB")
	}
	return client, nil
}

// ConversationRepository implements ports.ConversationRepository.
type ConversationRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewConversationRepository creates a repository on database.collection.
func NewConversationRepository(client *mongo.Client, database, collection string, logger *zap.Logger) *ConversationRepository {
	return &ConversationRepository{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger,
	}
}

// EnsureIndexes creates the lookup indexes. It is idempotent.
func (r *ConversationRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversationId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return errors.NewDatabaseError("create indexes", err)
	}
	return nil
}

// Ping reports whether the server is reachable.
func (r *ConversationRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (r *ConversationRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func scope(conversationID, userID string) bson.M {
	return bson.M{"conversationId": conversationID, "userId": userID}
}

// List returns the user's most recently updated conversations.
func (r *ConversationRepository) List(ctx context.Context, userID string, limit int) ([]conversation.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, errors.NewDatabaseError("list conversations", err)
	}
	defer cursor.Close(ctx)

	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.NewDatabaseError("list conversations", err)
	}

	out := make([]conversation.Conversation, 0, len(docs))
	for _, d := range docs {
		c, err := d.toDomain()
		if err != nil {
			return nil, errors.NewDatabaseError("decode conversation", err)
		}
		out = append(out, *c)
	}
	return out, nil
}

// Create inserts a new conversation.
func (r *ConversationRepository) Create(ctx context.Context, conv conversation.Conversation) error {
	doc, err := toConversationDoc(conv)
	if err != nil {
		return errors.NewDatabaseError("encode conversation", err)
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return errors.NewDatabaseError("create conversation", err)
	}
	return nil
}

// Get loads a conversation owned by userID.
func (r *ConversationRepository) Get(ctx context.Context, conversationID, userID string) (*conversation.Conversation, error) {
	var doc conversationDoc
	err := r.collection.FindOne(ctx, scope(conversationID, userID)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NewNotFoundError("Conversation")
		}
		return nil, errors.NewDatabaseError("get conversation", err)
	}
	c, err := doc.toDomain()
	if err != nil {
		return nil, errors.NewDatabaseError("decode conversation", err)
	}
	return c, nil
}

// UpdateTitle renames a conversation. A user-chosen title is never replaced by
// a derived one afterwards.
func (r *ConversationRepository) UpdateTitle(ctx context.Context, conversationID, userID, title string) (*conversation.Conversation, error) {
	update := bson.M{"$set": bson.M{
		"title":        title,
		"titleDerived": true,
		"updatedAt":    time.Now().UTC(),
	}}
	return r.findOneAndUpdate(ctx, "update title", scope(conversationID, userID), update)
}

// SetDerivedTitle sets the title unless one was already derived or chosen.
func (r *ConversationRepository) SetDerivedTitle(ctx context.Context, conversationID, userID, title string) (bool, error) {
	filter := scope(conversationID, userID)
	filter["titleDerived"] = bson.M{"$ne": true}

	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"title":        title,
		"titleDerived": true,
	}})
	if err != nil {
		return false, errors.NewDatabaseError("set derived title", err)
	}
	return res.ModifiedCount > 0, nil
}

// Delete removes a conversation owned by userID.
func (r *ConversationRepository) Delete(ctx context.Context, conversationID, userID string) error {
	res, err := r.collection.DeleteOne(ctx, scope(conversationID, userID))
	if err != nil {
		return errors.NewDatabaseError("delete conversation", err)
	}
	if res.DeletedCount == 0 {
		return errors.NewNotFoundError("Conversation")
	}
	return nil
}

// AppendMessage pushes msg and bumps updatedAt in one atomic update.
func (r *ConversationRepository) AppendMessage(ctx context.Context, conversationID, userID string, msg conversation.Message) (*conversation.Conversation, error) {
	doc, err := toMessageDoc(msg)
	if err != nil {
		return nil, errors.NewDatabaseError("encode message", err)
	}
	update := bson.M{
		"$push": bson.M{"messages": doc},
		"$set":  bson.M{"updatedAt": msg.Timestamp},
	}
	return r.findOneAndUpdate(ctx, "append message", scope(conversationID, userID), update)
}

func (r *ConversationRepository) findOneAndUpdate(ctx context.Context, op string, filter, update bson.M) (*conversation.Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc conversationDoc
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.NewNotFoundError("Conversation")
		}
		r.logger.Error("conversation update failed", zap.String("operation", op), zap.Error(err))
		return nil, errors.NewDatabaseError(op, err)
	}
	c, err := doc.toDomain()
	if err != nil {
		return nil, errors.NewDatabaseError("decode conversation", err)
	}
	return c, nil
}
