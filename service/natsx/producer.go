package natsx

import (
	"fmt"
)

type NatsxProducer struct{ c *NatsxClient }

func NewNatsxProducer(c *NatsxClient) *NatsxProducer { return &NatsxProducer{c: c} }

// Publish sends on a registered biz route.
func (p *NatsxProducer) Publish(biz string, data []byte, hdr map[string]string) error {
	r, ok := p.c.route(biz)
	if !ok {
		return fmt.Errorf("route not found: %s", biz)
	}
	return p.c.sendCore(r.Subject, data, hdr)
}

// PublishSubject sends on an ad hoc subject (per-room events).
func (p *NatsxProducer) PublishSubject(subject string, data []byte, hdr map[string]string) error {
	return p.c.sendCore(subject, data, hdr)
}
