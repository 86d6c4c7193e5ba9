package natsx

import "golang.org/x/net/context"

// NatsxMessage is the unified message object handed to handlers.
type NatsxMessage struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

type NatsxHandler func(ctx context.Context, msg NatsxMessage) error

// NatsxMiddleware wraps handlers (logging, metrics, retry...).
type NatsxMiddleware func(NatsxHandler) NatsxHandler

func NatsxChain(h NatsxHandler, mws ...NatsxMiddleware) NatsxHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
