package model

import (
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionUsers = "users"

// FriendRef is the denormalized profile slice embedded in the three
// edge lists. Enough to render a list row without a second lookup.
type FriendRef struct {
	UID         string `bson:"uid" json:"uid"`
	DisplayName string `bson:"displayName" json:"displayName"`
	PhotoURL    string `bson:"photoURL,omitempty" json:"photoURL,omitempty"`
}

// User is one account document. The three edge lists are always
// present; readers may rely on them being non-nil after Normalize.
type User struct {
	UID         string `bson:"uid" json:"uid"`
	DisplayName string `bson:"displayName" json:"displayName"`
	Email       string `bson:"email,omitempty" json:"email,omitempty"`
	PhotoURL    string `bson:"photoURL,omitempty" json:"photoURL,omitempty"`
	CoverPhoto  string `bson:"coverPhoto,omitempty" json:"coverPhoto,omitempty"`
	Bio         string `bson:"bio,omitempty" json:"bio,omitempty"`

	Instagram string `bson:"instagram,omitempty" json:"instagram,omitempty"`
	Twitter   string `bson:"twitter,omitempty" json:"twitter,omitempty"`
	Facebook  string `bson:"facebook,omitempty" json:"facebook,omitempty"`
	YouTube   string `bson:"youtube,omitempty" json:"youtube,omitempty"`

	// push relay target; empty when the user never granted permission
	DeviceToken string `bson:"deviceToken,omitempty" json:"deviceToken,omitempty"`

	Friends          []FriendRef `bson:"friends" json:"friends"`
	SentRequests     []FriendRef `bson:"sentRequests" json:"sentRequests"`
	ReceivedRequests []FriendRef `bson:"receivedRequests" json:"receivedRequests"`

	CreatedAt int64 `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt int64 `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Normalize coalesces missing edge lists to empty. Old documents may
// lack the arrays entirely.
func (u *User) Normalize() *User {
	if u == nil {
		return nil
	}
	if u.Friends == nil {
		u.Friends = []FriendRef{}
	}
	if u.SentRequests == nil {
		u.SentRequests = []FriendRef{}
	}
	if u.ReceivedRequests == nil {
		u.ReceivedRequests = []FriendRef{}
	}
	return u
}

// Ref is the denormalized slice other users keep for this one.
func (u *User) Ref() FriendRef {
	return FriendRef{
		UID:         u.UID,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}

func Collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(CollectionUsers)
}
