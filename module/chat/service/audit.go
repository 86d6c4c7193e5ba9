package service

import (
	"context"
	"encoding/json"
	"time"

	"FCProject/service/kafka"
	"FCProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionMessageAudit = "message_audit"

// RegisterAuditSink wires the chat-events topic into the audit
// collection. Events are stored as-is plus the consume timestamp.
func RegisterAuditSink(db *mongo.Database) {
	kafka.RegisterHandler(kafka.TopicChatEvents, func(topic string, key, value []byte) error {
		var doc bson.M
		if err := json.Unmarshal(value, &doc); err != nil {
			// malformed events are dropped, not retried
			return nil
		}
		doc["roomKey"] = string(key)
		doc["consumedAt"] = time.Now().UnixMilli()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := db.Collection(CollectionMessageAudit).InsertOne(ctx, doc)
		return errs.Wrap(err)
	})
}
