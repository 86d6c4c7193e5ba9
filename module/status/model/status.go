package model

import (
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionStatuses = "statuses"

// Visibility of one status post.
const (
	VisibilityEveryone = "everyone"
	VisibilityFriends  = "friends"
)

// Status is one ephemeral post. Image points at the media store;
// ViewedBy grows append-only as viewers open it.
type Status struct {
	ID         string   `bson:"_id" json:"id"`
	OwnerUID   string   `bson:"ownerUid" json:"ownerUid"`
	Image      string   `bson:"image" json:"image"` // media file id
	Caption    string   `bson:"caption,omitempty" json:"caption,omitempty"`
	Visibility string   `bson:"visibility" json:"visibility"`
	ViewedBy   []string `bson:"viewedBy" json:"viewedBy"`
	CreatedAt  int64    `bson:"createdAt" json:"createdAt"`
}

func Collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(CollectionStatuses)
}
