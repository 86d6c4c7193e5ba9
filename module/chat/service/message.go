package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"FCProject/logger"
	chatmodel "FCProject/module/chat/model"
	usermodel "FCProject/module/user/model"
	"FCProject/service/kafka"
	"FCProject/service/natsx"
	"FCProject/service/notify"
	"FCProject/tools/errs"
	"FCProject/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RoomEvent is what flows over a room subject. Deleted events carry
// the message id only.
type RoomEvent struct {
	Type    string             `json:"type"` // message | message.deleted
	RoomID  string             `json:"roomId"`
	Message *chatmodel.Message `json:"message,omitempty"`
	MsgID   string             `json:"msgId,omitempty"`
	Ts      int64              `json:"ts"`
}

const (
	EventMessage        = "message"
	EventMessageDeleted = "message.deleted"
)

type SendInput struct {
	FromUID string
	ToUID   string
	Text    string
	Image   string
}

// Send persists the message, fans it out to the room subject and
// audits it to Kafka. The receiver's device is pinged best effort.
// The stored document is the source of truth; fan-out and audit
// failures are logged, never returned.
func Send(ctx context.Context, db *mongo.Database, nats *natsx.NatsManager, n *notify.Notifier, in SendInput) (*chatmodel.Message, error) {
	if in.FromUID == "" || in.ToUID == "" {
		return nil, errs.ErrArgs.WrapMsg("sender/receiver empty")
	}
	if in.Text == "" && in.Image == "" {
		return nil, errs.ErrArgs.WrapMsg("message body empty")
	}

	roomID := chatmodel.RoomID(in.FromUID, in.ToUID)
	msg := &chatmodel.Message{
		ID:        ids.GenerateString(),
		RoomID:    roomID,
		SentBy:    in.FromUID,
		Text:      in.Text,
		Image:     in.Image,
		CreatedAt: time.Now().UnixMilli(),
	}
	if _, err := chatmodel.Collection(db).InsertOne(ctx, msg); err != nil {
		return nil, errs.Wrap(err)
	}

	publishRoomEvent(nats, RoomEvent{
		Type:    EventMessage,
		RoomID:  roomID,
		Message: msg,
		Ts:      msg.CreatedAt,
	})
	auditMessage(roomID, EventMessage, msg)
	notifyReceiver(ctx, db, n, in, msg)

	return msg, nil
}

// Delete removes one message for everyone. Either room member may
// delete; watchers get a deletion event on the room subject.
func Delete(ctx context.Context, db *mongo.Database, nats *natsx.NatsManager, uid, msgID string) error {
	var msg chatmodel.Message
	err := chatmodel.Collection(db).FindOne(ctx, bson.M{"_id": msgID}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errs.ErrMessageNotFound.Wrap()
	}
	if err != nil {
		return errs.Wrap(err)
	}
	if !chatmodel.RoomHasMember(msg.RoomID, uid) {
		return errs.ErrArgs.WrapMsg("not a room member", "roomId", msg.RoomID)
	}

	if _, err := chatmodel.Collection(db).DeleteOne(ctx, bson.M{"_id": msgID}); err != nil {
		return errs.Wrap(err)
	}
	publishRoomEvent(nats, RoomEvent{
		Type:   EventMessageDeleted,
		RoomID: msg.RoomID,
		MsgID:  msgID,
		Ts:     time.Now().UnixMilli(),
	})
	auditMessage(msg.RoomID, EventMessageDeleted, &msg)
	return nil
}

// Transcript returns the room history in send order.
func Transcript(ctx context.Context, db *mongo.Database, roomID string, limit int64) ([]chatmodel.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := chatmodel.Collection(db).Find(ctx, bson.M{"roomId": roomID}, opts)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer func() { _ = cur.Close(ctx) }()

	out := []chatmodel.Message{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.Wrap(err)
	}
	return out, nil
}

// Latest returns the room's newest message, nil when the room is
// empty.
func Latest(ctx context.Context, db *mongo.Database, roomID string) (*chatmodel.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	var msg chatmodel.Message
	err := chatmodel.Collection(db).FindOne(ctx, bson.M{"roomId": roomID}, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &msg, nil
}

func publishRoomEvent(nats *natsx.NatsManager, ev RoomEvent) {
	if nats == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("[chat] marshal room event: %v", err)
		return
	}
	if err := nats.PublishSubject(chatmodel.Subject(ev.RoomID), b, nil); err != nil {
		logger.Warnf("[chat] fanout room=%s: %v", ev.RoomID, err)
	}
}

func auditMessage(roomID, eventType string, msg *chatmodel.Message) {
	b, err := json.Marshal(map[string]any{
		"type":    eventType,
		"roomId":  roomID,
		"message": msg,
		"ts":      time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	if err := kafka.SendSync(kafka.TopicChatEvents, []byte(roomID), b); err != nil {
		logger.Warnf("[chat] audit room=%s: %v", roomID, err)
	}
}

func notifyReceiver(ctx context.Context, db *mongo.Database, n *notify.Notifier, in SendInput, msg *chatmodel.Message) {
	if n == nil {
		return
	}
	var receiver, sender usermodel.User
	coll := usermodel.Collection(db)
	if err := coll.FindOne(ctx, bson.M{"uid": in.ToUID}).Decode(&receiver); err != nil {
		return
	}
	if receiver.DeviceToken == "" {
		return
	}
	if err := coll.FindOne(ctx, bson.M{"uid": in.FromUID}).Decode(&sender); err != nil {
		return
	}

	body := msg.Text
	if body == "" {
		body = "sent an image"
	}
	// data values are strings only; the sender profile rides along
	// serialized so the client can open the chat directly
	senderJSON, _ := json.Marshal(sender.Normalize())
	n.SendAsync(notify.Notification{
		Notification: notify.Body{
			Title:    sender.DisplayName,
			Content:  body,
			ImageURL: msg.Image,
		},
		Data: map[string]string{
			"kind":   "chat.message",
			"roomId": msg.RoomID,
			"msgId":  msg.ID,
			"sender": string(senderJSON),
		},
		Token: receiver.DeviceToken,
	})
}
