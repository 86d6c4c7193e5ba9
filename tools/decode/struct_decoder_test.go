package decode

import "testing"

type samplePayload struct {
	PeerUID string         `json:"peerUid"`
	Count   int64          `json:"count"`
	Extra   map[string]any `json:"extra"`
}

func TestDecodeMap(t *testing.T) {
	in := map[string]any{
		"peerUid": "bob",
		"count":   float64(42), // JSON numbers arrive as float64
		"extra":   `{"a":"b"}`, // embedded JSON string
	}
	out, err := DecodeMap[samplePayload](in)
	if err != nil {
		t.Fatalf("DecodeMap: %v", err)
	}
	if out.PeerUID != "bob" || out.Count != 42 {
		t.Errorf("decoded = %+v", out)
	}
	if out.Extra["a"] != "b" {
		t.Errorf("extra = %v", out.Extra)
	}
}

func TestDecodeMapNil(t *testing.T) {
	if _, err := DecodeMap[samplePayload](nil); err == nil {
		t.Error("nil map must fail")
	}
}
