package natsx

import (
	"context"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go"
)

type NatsxConsumer struct {
	c   *NatsxClient
	mws []NatsxMiddleware
}

func NewNatsxConsumer(c *NatsxClient, mws ...NatsxMiddleware) *NatsxConsumer {
	return &NatsxConsumer{c: c, mws: mws}
}

// Subscribe consumes a registered biz route. The subscription lives
// until the client is closed.
func (cs *NatsxConsumer) Subscribe(biz string, h NatsxHandler) error {
	r, ok := cs.c.route(biz)
	if !ok {
		return fmt.Errorf("route not found: %s", biz)
	}
	_, err := cs.subscribe(r.Subject, r.Queue, h)
	return err
}

// SubscribeSubject consumes an ad hoc subject (per-room listeners).
// The returned cancel func drains just this subscription; callers own
// the handle and must release it on teardown.
func (cs *NatsxConsumer) SubscribeSubject(subject, queue string, h NatsxHandler) (func(), error) {
	return cs.subscribe(subject, queue, h)
}

func (cs *NatsxConsumer) subscribe(subject, queue string, h NatsxHandler) (func(), error) {
	h = NatsxChain(h, cs.mws...)

	cb := func(m *nats.Msg) {
		_ = h(context.Background(), NatsxMessage{
			Subject: m.Subject,
			Data:    append([]byte(nil), m.Data...),
			Header:  headerToMap(m.Header),
		})
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue == "" {
		sub, err = cs.c.nc.Subscribe(subject, cb)
	} else {
		sub, err = cs.c.nc.QueueSubscribe(subject, queue, cb)
	}
	if err != nil {
		return nil, err
	}
	_ = sub.SetPendingLimits(1_000_000, 64*1024*1024)

	cs.c.mu.Lock()
	cs.c.nextID++
	id := subject + "#" + strconv.Itoa(cs.c.nextID)
	cs.c.subs[id] = sub
	cs.c.mu.Unlock()

	cancel := func() {
		cs.c.mu.Lock()
		delete(cs.c.subs, id)
		cs.c.mu.Unlock()
		_ = sub.Drain()
	}
	return cancel, nil
}
