package mongodb

import (
	"bytes"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mrsidrdx/context-graph-ai/domain/conversation"
	"github.com/mrsidrdx/context-graph-ai/domain/graph"
	"github.com/mrsidrdx/context-graph-ai/pkg/errors"
)

type conversationDoc struct {
	ConversationID string       `bson:"conversationId"`
	UserID         string       `bson:"userId"`
	Title          string       `bson:"title"`
	TitleDerived   bool         `bson:"titleDerived"`
	Messages       []messageDoc `bson:"messages"`
	CreatedAt      time.Time    `bson:"createdAt"`
	UpdatedAt      time.Time    `bson:"updatedAt"`
}

type messageDoc struct {
	ID              string          `bson:"id"`
	Role            string          `bson:"role"`
	Content         string          `bson:"content"`
	Timestamp       time.Time       `bson:"timestamp"`
	ContextUsed     *contextUsedDoc `bson:"contextUsed,omitempty"`
	ContextGraph    bson.M          `bson:"contextGraph,omitempty"`
	EnrichedContext bson.M          `bson:"enrichedContext,omitempty"`
}

type contextUsedDoc struct {
	DocumentCount int `bson:"documentCount"`
	TopicCount    int `bson:"topicCount"`
	ProjectCount  int `bson:"projectCount"`
}

func toConversationDoc(c conversation.Conversation) (conversationDoc, error) {
	doc := conversationDoc{
		ConversationID: c.ConversationID,
		UserID:         c.UserID,
		Title:          c.Title,
		TitleDerived:   c.TitleDerived,
		Messages:       make([]messageDoc, 0, len(c.Messages)),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	for _, m := range c.Messages {
		md, err := toMessageDoc(m)
		if err != nil {
			return conversationDoc{}, err
		}
		doc.Messages = append(doc.Messages, md)
	}
	return doc, nil
}

func (d conversationDoc) toDomain() (*conversation.Conversation, error) {
	c := &conversation.Conversation{
		ConversationID: d.ConversationID,
		UserID:         d.UserID,
		Title:          d.Title,
		TitleDerived:   d.TitleDerived,
		Messages:       make([]conversation.Message, 0, len(d.Messages)),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for _, md := range d.Messages {
		m, err := md.toDomain()
		if err != nil {
			return nil, err
		}
		c.Messages = append(c.Messages, m)
	}
	return c, nil
}

func toMessageDoc(m conversation.Message) (messageDoc, error) {
	doc := messageDoc{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.ContextUsed != nil {
		doc.ContextUsed = &contextUsedDoc{
			DocumentCount: m.ContextUsed.DocumentCount,
			TopicCount:    m.ContextUsed.TopicCount,
			ProjectCount:  m.ContextUsed.ProjectCount,
		}
	}

	var err error
	if m.ContextGraph != nil {
		if doc.ContextGraph, err = toBSON(m.ContextGraph); err != nil {
			return messageDoc{}, errors.Wrap(err, "encode contextGraph")
		}
	}
	if m.EnrichedContext != nil {
		if doc.EnrichedContext, err = toBSON(m.EnrichedContext); err != nil {
			return messageDoc{}, errors.Wrap(err, "encode enrichedContext")
		}
	}
	return doc, nil
}

func (d messageDoc) toDomain() (conversation.Message, error) {
	m := conversation.Message{
		ID:        d.ID,
		Role:      conversation.Role(d.Role),
		Content:   d.Content,
		Timestamp: d.Timestamp,
	}
	if d.ContextUsed != nil {
		m.ContextUsed = &conversation.ContextUsed{
			DocumentCount: d.ContextUsed.DocumentCount,
			TopicCount:    d.ContextUsed.TopicCount,
			ProjectCount:  d.ContextUsed.ProjectCount,
		}
	}
	if d.ContextGraph != nil {
		var gc graph.Context
		if err := fromBSON(d.ContextGraph, &gc); err != nil {
			return conversation.Message{}, errors.Wrap(err, "decode contextGraph")
		}
		m.ContextGraph = &gc
	}
	if d.EnrichedContext != nil {
		var ec graph.EnrichedContext
		if err := fromBSON(d.EnrichedContext, &ec); err != nil {
			return conversation.Message{}, errors.Wrap(err, "decode enrichedContext")
		}
		m.EnrichedContext = &ec
	}
	return m, nil
}

// toBSON stores graph snapshots through their JSON form so that the domain
// types keep a single serialization contract (node kinds as names, camelCase
// keys) in the API, the cache and the database.
func toBSON(v interface{}) (bson.M, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(data, false, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func fromBSON(m bson.M, dst interface{}) error {
	data, err := bson.MarshalExtJSON(m, false, false)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dst)
}
