package service

import (
	"context"
	"errors"
	"time"

	"FCProject/logger"
	usermodel "FCProject/module/user/model"
	"FCProject/service/mgo"
	"FCProject/service/notify"
	"FCProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Edges is one user's three relationship lists, detached from the
// document so transitions stay pure and testable.
type Edges struct {
	Friends  []usermodel.FriendRef
	Sent     []usermodel.FriendRef
	Received []usermodel.FriendRef
}

func edgesOf(u *usermodel.User) *Edges {
	u.Normalize()
	return &Edges{Friends: u.Friends, Sent: u.SentRequests, Received: u.ReceivedRequests}
}

func containsRef(list []usermodel.FriendRef, uid string) bool {
	for _, r := range list {
		if r.UID == uid {
			return true
		}
	}
	return false
}

func addRef(list []usermodel.FriendRef, ref usermodel.FriendRef) []usermodel.FriendRef {
	if containsRef(list, ref.UID) {
		return list
	}
	return append(list, ref)
}

func removeRef(list []usermodel.FriendRef, uid string) []usermodel.FriendRef {
	out := list[:0]
	for _, r := range list {
		if r.UID != uid {
			out = append(out, r)
		}
	}
	return out
}

// ---- pure transitions ----

// applySend records a pending request from a to b.
func applySend(a, b *Edges, aRef, bRef usermodel.FriendRef) error {
	if aRef.UID == bRef.UID {
		return errs.ErrArgs.WrapMsg("cannot friend yourself")
	}
	if containsRef(a.Friends, bRef.UID) || containsRef(b.Friends, aRef.UID) {
		return errs.ErrAlreadyFriends.Wrap()
	}
	if containsRef(a.Sent, bRef.UID) || containsRef(b.Sent, aRef.UID) {
		return errs.ErrRequestExists.Wrap()
	}
	a.Sent = addRef(a.Sent, bRef)
	b.Received = addRef(b.Received, aRef)
	return nil
}

// applyAccept turns a pending request into a mutual friendship.
// Requires a matching entry in the accepter's received list, so a
// second accept, or an accept after a reject, fails cleanly.
func applyAccept(requester, accepter *Edges, reqRef, accRef usermodel.FriendRef) error {
	if !containsRef(accepter.Received, reqRef.UID) {
		return errs.ErrRequestNotFound.Wrap()
	}
	clearRequestEdges(requester, accepter, reqRef.UID, accRef.UID)
	requester.Friends = addRef(requester.Friends, accRef)
	accepter.Friends = addRef(accepter.Friends, reqRef)
	return nil
}

// applyReject drops the pending request without creating friendship.
func applyReject(requester, accepter *Edges, reqUID, accUID string) error {
	if !containsRef(accepter.Received, reqUID) {
		return errs.ErrRequestNotFound.Wrap()
	}
	clearRequestEdges(requester, accepter, reqUID, accUID)
	return nil
}

// applyUnfriend removes the mutual edge. Idempotent: a second call is
// a no-op.
func applyUnfriend(a, b *Edges, aUID, bUID string) {
	a.Friends = removeRef(a.Friends, bUID)
	b.Friends = removeRef(b.Friends, aUID)
}

// clearRequestEdges strips every request edge between the pair from
// both sides. Both directions are cleared so crossed requests cannot
// leave a dangling entry.
func clearRequestEdges(x, y *Edges, xUID, yUID string) {
	x.Sent = removeRef(x.Sent, yUID)
	x.Received = removeRef(x.Received, yUID)
	y.Sent = removeRef(y.Sent, xUID)
	y.Received = removeRef(y.Received, xUID)
}

// ---- transactional operations ----

// pairTxn loads both documents inside one transaction, applies fn to
// their edges and writes both back. Either both users change or
// neither does.
func pairTxn(ctx context.Context, db *mongo.Database, aUID, bUID string,
	fn func(a, b *usermodel.User) error) (ua, ub *usermodel.User, err error) {

	err = mgo.WithTransaction(ctx, db, func(sc mongo.SessionContext) (any, error) {
		coll := usermodel.Collection(db)

		a, err := findUserTx(sc, coll, aUID)
		if err != nil {
			return nil, err
		}
		b, err := findUserTx(sc, coll, bUID)
		if err != nil {
			return nil, err
		}
		if err := fn(a, b); err != nil {
			return nil, err
		}
		now := time.Now().UnixMilli()
		for _, u := range []*usermodel.User{a, b} {
			_, err := coll.UpdateOne(sc, bson.M{"uid": u.UID}, bson.M{"$set": bson.M{
				"friends":          u.Friends,
				"sentRequests":     u.SentRequests,
				"receivedRequests": u.ReceivedRequests,
				"updatedAt":        now,
			}})
			if err != nil {
				return nil, err
			}
		}
		ua, ub = a, b
		return nil, nil
	})
	return ua, ub, err
}

func findUserTx(sc mongo.SessionContext, coll *mongo.Collection, uid string) (*usermodel.User, error) {
	var u usermodel.User
	err := coll.FindOne(sc, bson.M{"uid": uid}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrUserNotFound.WrapMsg("user missing", "uid", uid)
	}
	if err != nil {
		return nil, err
	}
	return u.Normalize(), nil
}

func applyEdges(u *usermodel.User, e *Edges) {
	u.Friends = e.Friends
	u.SentRequests = e.Sent
	u.ReceivedRequests = e.Received
}

// SendRequest files a pending friend request and pings the receiver's
// device, best effort.
func SendRequest(ctx context.Context, db *mongo.Database, n *notify.Notifier, fromUID, toUID string) error {
	from, to, err := pairTxn(ctx, db, fromUID, toUID, func(a, b *usermodel.User) error {
		ea, eb := edgesOf(a), edgesOf(b)
		if err := applySend(ea, eb, a.Ref(), b.Ref()); err != nil {
			return err
		}
		applyEdges(a, ea)
		applyEdges(b, eb)
		return nil
	})
	if err != nil {
		return err
	}
	notifyFriendEvent(n, to, from, "Friend Request!", from.DisplayName+" sent you a friend request!")
	return nil
}

// AcceptRequest completes the handshake. The requester is notified.
func AcceptRequest(ctx context.Context, db *mongo.Database, n *notify.Notifier, requesterUID, accepterUID string) error {
	requester, accepter, err := pairTxn(ctx, db, requesterUID, accepterUID, func(a, b *usermodel.User) error {
		ea, eb := edgesOf(a), edgesOf(b)
		if err := applyAccept(ea, eb, a.Ref(), b.Ref()); err != nil {
			return err
		}
		applyEdges(a, ea)
		applyEdges(b, eb)
		return nil
	})
	if err != nil {
		return err
	}
	notifyFriendEvent(n, requester, accepter, "Friend Request Accepted!", accepter.DisplayName+" accepted your friend request!")
	return nil
}

// RejectRequest drops the pending request. The requester is not told.
func RejectRequest(ctx context.Context, db *mongo.Database, requesterUID, accepterUID string) error {
	_, _, err := pairTxn(ctx, db, requesterUID, accepterUID, func(a, b *usermodel.User) error {
		ea, eb := edgesOf(a), edgesOf(b)
		if err := applyReject(ea, eb, a.UID, b.UID); err != nil {
			return err
		}
		applyEdges(a, ea)
		applyEdges(b, eb)
		return nil
	})
	return err
}

// Unfriend removes the mutual edge from both sides.
func Unfriend(ctx context.Context, db *mongo.Database, aUID, bUID string) error {
	_, _, err := pairTxn(ctx, db, aUID, bUID, func(a, b *usermodel.User) error {
		ea, eb := edgesOf(a), edgesOf(b)
		applyUnfriend(ea, eb, a.UID, b.UID)
		applyEdges(a, ea)
		applyEdges(b, eb)
		return nil
	})
	return err
}

func notifyFriendEvent(n *notify.Notifier, target, sender *usermodel.User, title, body string) {
	if n == nil || target == nil || target.DeviceToken == "" {
		return
	}
	logger.Debugf("[friends] notify uid=%s title=%q", target.UID, title)
	n.SendAsync(notify.Notification{
		Notification: notify.Body{Title: title, Content: body, ImageURL: sender.PhotoURL},
		Data: map[string]string{
			"senderUID":         sender.UID,
			"senderDisplayName": sender.DisplayName,
			"senderPhotoURL":    sender.PhotoURL,
		},
		Token: target.DeviceToken,
	})
}
