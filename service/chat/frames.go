package chat

import (
	"encoding/json"
	"errors"
	"time"

	"FCProject/tools/decode"
	"FCProject/tools/errs"
)

// Frame types on the websocket. Client sends watch/unwatch/send/ping,
// server pushes ack/message/presence/error.
const (
	FrameWatch     = "watch"
	FrameUnwatch   = "unwatch"
	FrameFeedWatch = "feed.watch"
	FrameSend      = "send"
	FramePing      = "ping"
	FrameAck       = "ack"
	FrameMessage   = "message"
	FramePresence  = "presence"
	FrameFeed      = "feed"
	FrameError     = "error"
)

type Frame struct {
	Type string         `json:"type"`
	Seq  int64          `json:"seq,omitempty"`
	Ts   int64          `json:"ts,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errs.ErrArgs.WrapMsg("unmarshal frame failed")
	}
	if f.Type == "" {
		return nil, errs.ErrArgs.WrapMsg("frame type empty")
	}
	return f, nil
}

// WatchPayload subscribes the session to a direct room's live feed.
type WatchPayload struct {
	PeerUID string `json:"peerUid"`
}

// SendPayload carries one outgoing message.
type SendPayload struct {
	PeerUID string `json:"peerUid"`
	Text    string `json:"text,omitempty"`
	Image   string `json:"image,omitempty"`
}

func ExtractWatchPayload(f *Frame) (*WatchPayload, error) {
	if f == nil || f.Data == nil {
		return nil, errs.ErrArgs.WrapMsg("watch payload empty")
	}
	return decode.DecodeMap[WatchPayload](f.Data)
}

func ExtractSendPayload(f *Frame) (*SendPayload, error) {
	if f == nil || f.Data == nil {
		return nil, errs.ErrArgs.WrapMsg("send payload empty")
	}
	return decode.DecodeMap[SendPayload](f.Data)
}

// ---- server-built frames ----

func BuildAck(seq int64, data map[string]any) []byte {
	b, _ := json.Marshal(Frame{
		Type: FrameAck,
		Seq:  seq,
		Ts:   time.Now().UnixMilli(),
		Data: data,
	})
	return b
}

func BuildError(seq int64, err error) []byte {
	data := map[string]any{"msg": err.Error()}
	var ce *errs.CodeError
	if errors.As(err, &ce) {
		data["code"] = ce.Code
		data["msg"] = ce.Msg
	}
	b, _ := json.Marshal(Frame{
		Type: FrameError,
		Seq:  seq,
		Ts:   time.Now().UnixMilli(),
		Data: data,
	})
	return b
}

func BuildPush(frameType string, data map[string]any) []byte {
	b, _ := json.Marshal(Frame{
		Type: frameType,
		Ts:   time.Now().UnixMilli(),
		Data: data,
	})
	return b
}
