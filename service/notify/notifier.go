package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"FCProject/logger"
	"FCProject/tools/safe"
)

// Body is the visible part of a push notification.
type Body struct {
	Title    string `json:"title"`
	Content  string `json:"body"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Notification targets one device token. Data values are always
// strings; nested structures are JSON-serialized by the caller.
type Notification struct {
	Notification Body              `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Token        string            `json:"token"`
}

type envelope struct {
	NotificationData Notification `json:"notificationData"`
}

type Config struct {
	Endpoint string // relay URL, e.g. https://relay.example.com/send-notification
	Timeout  time.Duration
}

type Notifier struct {
	cfg    Config
	client *http.Client
}

func NewNotifier(cfg Config) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Send POSTs the notification to the relay. No response contract is
// enforced beyond logging the status.
func (n *Notifier) Send(ctx context.Context, note Notification) error {
	if n == nil || n.cfg.Endpoint == "" || note.Token == "" {
		return nil
	}
	b, err := json.Marshal(envelope{NotificationData: note})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	logger.Infof("[notify] relay status=%d title=%q", resp.StatusCode, note.Notification.Title)
	return nil
}

// SendAsync is the fire-and-forget form used in the message and
// friend-request paths; failure is logged, never surfaced to the
// sender.
func (n *Notifier) SendAsync(note Notification) {
	if n == nil {
		return
	}
	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
		defer cancel()
		if err := n.Send(ctx, note); err != nil {
			logger.Warnf("[notify] send failed title=%q: %v", note.Notification.Title, err)
		}
	})
}
