package ids

import (
	"strconv"
	"sync"
	"time"
)

// 41-bit millisecond timestamp | 10-bit node | 12-bit sequence
const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = (1 << nodeBits) - 1
	seqMask  = (1 << seqBits) - 1
)

// custom epoch keeps ids short; never change once ids are stored
var epochMS = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

type node struct {
	mu     sync.Mutex
	id     int64
	seq    int64
	lastMS int64
}

var def = &node{id: 1}

// SetNodeID pins this process's node id (0..1023). Call once at boot,
// before any id is handed out.
func SetNodeID(id int64) {
	if id < 0 || id > maxNode {
		id = 1
	}
	def.mu.Lock()
	def.id = id
	def.mu.Unlock()
}

// Generate returns a time-ordered unique id.
func Generate() int64 { return def.next() }

// GenerateString is Generate rendered base 10, the form used for
// document ids.
func GenerateString() string { return strconv.FormatInt(Generate(), 10) }

func (n *node) next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now().UnixMilli()
	for now < n.lastMS {
		// clock went backwards, wait it out
		time.Sleep(time.Duration(n.lastMS-now) * time.Millisecond)
		now = time.Now().UnixMilli()
	}
	if now == n.lastMS {
		n.seq = (n.seq + 1) & seqMask
		if n.seq == 0 {
			for now <= n.lastMS {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		n.seq = 0
	}
	n.lastMS = now

	return ((now - epochMS) << (nodeBits + seqBits)) | (n.id << seqBits) | n.seq
}
