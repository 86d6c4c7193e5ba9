package service

import (
	"context"
	"errors"
	"time"

	usermodel "FCProject/module/user/model"
	"FCProject/service/mgo"
	"FCProject/tools/errs"
	"FCProject/tools/ids"
	jwtlib "FCProject/tools/security"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LoginParams is the sign-in input. Now is injectable for tests.
type LoginParams struct {
	UserID      string
	DisplayName string
	Email       string
	PhotoURL    string
	DeviceType  string
	DeviceID    string
	Scopes      []string
	TTL         time.Duration
	Now         time.Time
}

// Login ensures the account document exists, issues a token and
// replaces any previous session of the same device. The old session
// is archived to the session log.
func Login(ctx context.Context, db *mongo.Database, opts jwtlib.Options, in LoginParams) (usermodel.UserSession, error) {
	if in.UserID == "" {
		return usermodel.UserSession{}, errs.ErrArgs.WrapMsg("user id empty")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	if in.TTL > 0 {
		opts.TTL = in.TTL
	}

	if err := EnsureUser(ctx, db, usermodel.User{
		UID:         in.UserID,
		DisplayName: in.DisplayName,
		Email:       in.Email,
		PhotoURL:    in.PhotoURL,
	}); err != nil {
		return usermodel.UserSession{}, err
	}

	token, hash, exp, err := jwtlib.Generate(opts, in.UserID, in.Scopes)
	if err != nil {
		return usermodel.UserSession{}, err
	}

	rec := usermodel.UserSession{
		SessionID:       ids.GenerateString(),
		UserID:          in.UserID,
		DeviceType:      in.DeviceType,
		DeviceID:        in.DeviceID,
		AccessToken:     token,
		AccessTokenHash: hash,
		IsValid:         true,
		LoginTime:       now,
		LastActive:      now,
		ExpireAt:        exp,
		CreateTime:      now,
		UpdateTime:      now,
	}
	if err := archiveAndReplaceSession(ctx, db, rec); err != nil {
		return usermodel.UserSession{}, err
	}
	return rec, nil
}

func archiveAndReplaceSession(ctx context.Context, db *mongo.Database, rec usermodel.UserSession) error {
	return mgo.WithTransaction(ctx, db, func(sc mongo.SessionContext) (any, error) {
		coll := usermodel.SessionCollection(db)
		logColl := db.Collection(usermodel.CollectionSessionLog)

		filter := bson.M{"user_id": rec.UserID, "device_type": rec.DeviceType, "device_id": rec.DeviceID}

		var old usermodel.UserSession
		err := coll.FindOne(sc, filter).Decode(&old)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
		if err == nil {
			doc := bson.M{}
			b, _ := bson.Marshal(old)
			_ = bson.Unmarshal(b, &doc)
			doc["archived_at"] = time.Now()
			doc["reason"] = "relogin"
			delete(doc, "access_token")
			if _, e := logColl.InsertOne(sc, doc); e != nil {
				return nil, e
			}
		}

		_, err = coll.ReplaceOne(sc, filter, rec, options.Replace().SetUpsert(true))
		return nil, err
	})
}

// Logout invalidates the caller's sessions matching the token hash.
// Presence untracking is the caller's concern; the gateway does it on
// socket close, the REST path does it explicitly.
func Logout(ctx context.Context, db *mongo.Database, uid, tokenHash string) error {
	filter := bson.M{"user_id": uid, "is_valid": true}
	if tokenHash != "" {
		filter["access_token_hash"] = tokenHash
	}
	_, err := usermodel.SessionCollection(db).UpdateMany(ctx, filter, bson.M{"$set": bson.M{
		"is_valid":    false,
		"update_time": time.Now(),
	}})
	return errs.Wrap(err)
}

// EnsureUser creates the account document on first sign-in. Existing
// documents get their profile basics refreshed, edge lists untouched.
func EnsureUser(ctx context.Context, db *mongo.Database, u usermodel.User) error {
	if u.UID == "" {
		return errs.ErrArgs.WrapMsg("uid empty")
	}
	now := time.Now().UnixMilli()
	coll := usermodel.Collection(db)

	update := bson.M{
		"$set": bson.M{
			"displayName": u.DisplayName,
			"email":       u.Email,
			"photoURL":    u.PhotoURL,
			"updatedAt":   now,
		},
		"$setOnInsert": bson.M{
			"uid":              u.UID,
			"createdAt":        now,
			"friends":          []usermodel.FriendRef{},
			"sentRequests":     []usermodel.FriendRef{},
			"receivedRequests": []usermodel.FriendRef{},
		},
	}
	_, err := coll.UpdateOne(ctx, bson.M{"uid": u.UID}, update, options.Update().SetUpsert(true))
	return errs.Wrap(err)
}

func GetUser(ctx context.Context, db *mongo.Database, uid string) (*usermodel.User, error) {
	var u usermodel.User
	err := usermodel.Collection(db).FindOne(ctx, bson.M{"uid": uid}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrUserNotFound.Wrap()
	}
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return u.Normalize(), nil
}

// ListUsers returns everyone except the caller, for the people page.
func ListUsers(ctx context.Context, db *mongo.Database, exceptUID string) ([]usermodel.User, error) {
	cur, err := usermodel.Collection(db).Find(ctx, bson.M{"uid": bson.M{"$ne": exceptUID}})
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []usermodel.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.Wrap(err)
	}
	for i := range out {
		out[i].Normalize()
	}
	return out, nil
}

// ProfileUpdate carries the editable fields. Nil pointer means leave
// the field alone; empty string clears it.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
	CoverPhoto  *string `json:"coverPhoto,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Instagram   *string `json:"instagram,omitempty"`
	Twitter     *string `json:"twitter,omitempty"`
	Facebook    *string `json:"facebook,omitempty"`
	YouTube     *string `json:"youtube,omitempty"`
}

func UpdateProfile(ctx context.Context, db *mongo.Database, uid string, p ProfileUpdate) error {
	set := bson.M{"updatedAt": time.Now().UnixMilli()}
	for field, v := range map[string]*string{
		"displayName": p.DisplayName,
		"photoURL":    p.PhotoURL,
		"coverPhoto":  p.CoverPhoto,
		"bio":         p.Bio,
		"instagram":   p.Instagram,
		"twitter":     p.Twitter,
		"facebook":    p.Facebook,
		"youtube":     p.YouTube,
	} {
		if v != nil {
			set[field] = *v
		}
	}
	res, err := usermodel.Collection(db).UpdateOne(ctx, bson.M{"uid": uid}, bson.M{"$set": set})
	if err != nil {
		return errs.Wrap(err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrUserNotFound.Wrap()
	}

	// denormalized copies in other users' edge lists follow along
	if p.DisplayName != nil || p.PhotoURL != nil {
		if err := propagateRef(ctx, db, uid, p.DisplayName, p.PhotoURL); err != nil {
			return err
		}
	}
	return nil
}

// propagateRef rewrites this user's FriendRef copies wherever they
// are embedded. One update per edge list, scoped to documents that
// hold the uid in that list; the filtered-positional path errors on
// documents missing the array, so legacy docs must never match.
func propagateRef(ctx context.Context, db *mongo.Database, uid string, displayName, photoURL *string) error {
	coll := usermodel.Collection(db)
	for _, list := range []string{"friends", "sentRequests", "receivedRequests"} {
		filter, set := refListUpdate(list, uid, displayName, photoURL)
		if len(set) == 0 {
			continue
		}
		opts := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"ref.uid": uid}},
		})
		if _, err := coll.UpdateMany(ctx, filter, bson.M{"$set": set}, opts); err != nil {
			return errs.Wrap(err)
		}
	}
	return nil
}

// refListUpdate builds the match filter and $set document for one
// edge list.
func refListUpdate(list, uid string, displayName, photoURL *string) (bson.M, bson.M) {
	filter := bson.M{list + ".uid": uid}
	set := bson.M{}
	if displayName != nil {
		set[list+".$[ref].displayName"] = *displayName
	}
	if photoURL != nil {
		set[list+".$[ref].photoURL"] = *photoURL
	}
	return filter, set
}

// SaveDeviceToken stores the push relay target for this account.
func SaveDeviceToken(ctx context.Context, db *mongo.Database, uid, token string) error {
	res, err := usermodel.Collection(db).UpdateOne(ctx,
		bson.M{"uid": uid},
		bson.M{"$set": bson.M{"deviceToken": token, "updatedAt": time.Now().UnixMilli()}},
	)
	if err != nil {
		return errs.Wrap(err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrUserNotFound.Wrap()
	}
	return nil
}
