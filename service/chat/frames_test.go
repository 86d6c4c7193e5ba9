package chat

import (
	"encoding/json"
	"testing"

	"FCProject/tools/errs"
)

func TestParseFrame(t *testing.T) {
	raw := []byte(`{"type":"send","seq":7,"data":{"peerUid":"bob","text":"hi"}}`)
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if f.Type != FrameSend || f.Seq != 7 {
		t.Errorf("frame = %+v", f)
	}

	p, err := ExtractSendPayload(f)
	if err != nil {
		t.Fatalf("ExtractSendPayload: %v", err)
	}
	if p.PeerUID != "bob" || p.Text != "hi" {
		t.Errorf("payload = %+v", p)
	}
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	if _, err := ParseFrame([]byte("not json")); !errs.ErrArgs.Is(err) {
		t.Errorf("garbage: got %v, want ErrArgs", err)
	}
	if _, err := ParseFrame([]byte(`{"seq":1}`)); !errs.ErrArgs.Is(err) {
		t.Errorf("missing type: got %v, want ErrArgs", err)
	}
}

func TestExtractWatchPayload(t *testing.T) {
	f, err := ParseFrame([]byte(`{"type":"watch","data":{"peerUid":"carol"}}`))
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	p, err := ExtractWatchPayload(f)
	if err != nil {
		t.Fatalf("ExtractWatchPayload: %v", err)
	}
	if p.PeerUID != "carol" {
		t.Errorf("peer = %q", p.PeerUID)
	}

	if _, err := ExtractWatchPayload(&Frame{Type: FrameWatch}); err == nil {
		t.Error("empty payload must fail")
	}
}

func TestBuildErrorCarriesCode(t *testing.T) {
	raw := BuildError(3, errs.ErrRequestNotFound.Wrap())
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Type != FrameError || f.Seq != 3 {
		t.Errorf("frame = %+v", f)
	}
	if code, ok := f.Data["code"].(float64); !ok || int(code) != errs.ErrRequestNotFound.Code {
		t.Errorf("code = %v", f.Data["code"])
	}
}
