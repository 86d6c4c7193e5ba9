package model

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CollectionSessions   = "sessions"
	CollectionSessionLog = "session_log"
)

// UserSession is one issued token. Only the hash is meant for
// long-term storage; AccessToken is returned to the client once.
type UserSession struct {
	SessionID       string `bson:"session_id" json:"session_id"`
	UserID          string `bson:"user_id" json:"user_id"`
	DeviceType      string `bson:"device_type,omitempty" json:"device_type,omitempty"`
	DeviceID        string `bson:"device_id,omitempty" json:"device_id,omitempty"`
	AccessToken     string `bson:"access_token,omitempty" json:"access_token,omitempty"`
	AccessTokenHash string `bson:"access_token_hash" json:"access_token_hash"`

	IsValid    bool      `bson:"is_valid" json:"is_valid"`
	LoginTime  time.Time `bson:"login_time" json:"login_time"`
	LastActive time.Time `bson:"last_active" json:"last_active"`
	ExpireAt   time.Time `bson:"expire_at" json:"expire_at"`

	CreateTime time.Time `bson:"create_time" json:"create_time"`
	UpdateTime time.Time `bson:"update_time" json:"update_time"`
}

func SessionCollection(db *mongo.Database) *mongo.Collection {
	return db.Collection(CollectionSessions)
}
