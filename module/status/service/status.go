package service

import (
	"bytes"
	"context"
	"io"
	"time"

	statusmodel "FCProject/module/status/model"
	usermodel "FCProject/module/user/model"
	"FCProject/tools/errs"
	"FCProject/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mediaBucket = "status_media"

func bucket(db *mongo.Database) (*gridfs.Bucket, error) {
	return gridfs.NewBucket(db, options.GridFSBucket().SetName(mediaBucket))
}

// UploadMedia stores the raw image and returns the media file id
// referenced by Status.Image.
func UploadMedia(ctx context.Context, db *mongo.Database, filename string, r io.Reader) (string, error) {
	b, err := bucket(db)
	if err != nil {
		return "", errs.Wrap(err)
	}
	fileID := ids.GenerateString()
	if err := b.UploadFromStreamWithID(fileID, filename, r); err != nil {
		return "", errs.Wrap(err)
	}
	return fileID, nil
}

// DownloadMedia streams the stored image back.
func DownloadMedia(ctx context.Context, db *mongo.Database, fileID string) ([]byte, error) {
	b, err := bucket(db)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	var buf bytes.Buffer
	if _, err := b.DownloadToStream(fileID, &buf); err != nil {
		return nil, errs.ErrStatusNotFound.WrapMsg("media missing", "fileID", fileID)
	}
	return buf.Bytes(), nil
}

type PostInput struct {
	OwnerUID   string
	Image      string // media file id from UploadMedia
	Caption    string
	Visibility string // defaults to friends
}

// Post appends a new status. The list is append-only; posts are never
// edited in place.
func Post(ctx context.Context, db *mongo.Database, in PostInput) (*statusmodel.Status, error) {
	if in.OwnerUID == "" || in.Image == "" {
		return nil, errs.ErrArgs.WrapMsg("owner/image empty")
	}
	switch in.Visibility {
	case "":
		in.Visibility = statusmodel.VisibilityFriends
	case statusmodel.VisibilityEveryone, statusmodel.VisibilityFriends:
	default:
		return nil, errs.ErrArgs.WrapMsg("bad visibility", "visibility", in.Visibility)
	}

	st := &statusmodel.Status{
		ID:         ids.GenerateString(),
		OwnerUID:   in.OwnerUID,
		Image:      in.Image,
		Caption:    in.Caption,
		Visibility: in.Visibility,
		ViewedBy:   []string{},
		CreatedAt:  time.Now().UnixMilli(),
	}
	if _, err := statusmodel.Collection(db).InsertOne(ctx, st); err != nil {
		return nil, errs.Wrap(err)
	}
	return st, nil
}

// ListVisible returns the statuses the viewer may see, newest first:
// their own, everyone-visible posts, and friends-only posts from
// their friends.
func ListVisible(ctx context.Context, db *mongo.Database, viewer *usermodel.User, limit int64) ([]statusmodel.Status, error) {
	if viewer == nil {
		return nil, errs.ErrArgs.WrapMsg("viewer nil")
	}
	viewer.Normalize()
	friendUIDs := make([]string, 0, len(viewer.Friends))
	for _, f := range viewer.Friends {
		friendUIDs = append(friendUIDs, f.UID)
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"ownerUid": viewer.UID},
		bson.M{"visibility": statusmodel.VisibilityEveryone},
		bson.M{"visibility": statusmodel.VisibilityFriends, "ownerUid": bson.M{"$in": friendUIDs}},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := statusmodel.Collection(db).Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer func() { _ = cur.Close(ctx) }()

	out := []statusmodel.Status{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.Wrap(err)
	}
	return out, nil
}

// MarkViewed records the viewer once; repeated views do not grow the
// list.
func MarkViewed(ctx context.Context, db *mongo.Database, statusID, viewerUID string) error {
	res, err := statusmodel.Collection(db).UpdateOne(ctx,
		bson.M{"_id": statusID},
		bson.M{"$addToSet": bson.M{"viewedBy": viewerUID}},
	)
	if err != nil {
		return errs.Wrap(err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrStatusNotFound.Wrap()
	}
	return nil
}

// DeleteStatus removes the post and its media. Owner only.
func DeleteStatus(ctx context.Context, db *mongo.Database, statusID, ownerUID string) error {
	var st statusmodel.Status
	err := statusmodel.Collection(db).FindOneAndDelete(ctx,
		bson.M{"_id": statusID, "ownerUid": ownerUID}).Decode(&st)
	if err == mongo.ErrNoDocuments {
		return errs.ErrStatusNotFound.Wrap()
	}
	if err != nil {
		return errs.Wrap(err)
	}
	if b, berr := bucket(db); berr == nil {
		_ = b.Delete(st.Image) // best effort, post is already gone
	}
	return nil
}
