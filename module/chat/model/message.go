package model

import (
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionMessages = "messages"

// RoomID derives the direct-chat room key from the two member uids.
// Members are sorted first so both sides compute the same key.
func RoomID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "-")
}

// RoomHasMember reports whether uid is one of the room's two members.
func RoomHasMember(roomID, uid string) bool {
	if roomID == "" || uid == "" {
		return false
	}
	return strings.HasPrefix(roomID, uid+"-") || strings.HasSuffix(roomID, "-"+uid)
}

// Message is one chat message document. Either Text or Image is set;
// an image message may carry a caption in Text.
type Message struct {
	ID        string `bson:"_id" json:"id"`
	RoomID    string `bson:"roomId" json:"roomId"`
	SentBy    string `bson:"sentBy" json:"sentBy"`
	Text      string `bson:"text,omitempty" json:"text,omitempty"`
	Image     string `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt int64  `bson:"createdAt" json:"createdAt"` // server clock, unix ms
}

func Collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(CollectionMessages)
}

// Subject is the live fan-out subject for one room.
func Subject(roomID string) string {
	return "room." + roomID
}
