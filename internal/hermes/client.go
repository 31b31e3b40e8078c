// Package hermes connects quill to the swarm's NATS bus. Reaction triggers
// arrive here from the slack forwarder, and pipeline outcomes are announced
// back onto it.
package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects quill listens on and publishes to.
const (
	// SubjectReaction carries Slack reaction events from the forwarder.
	SubjectReaction = "swarm.slack.reaction"
	// SubjectRecordCreated announces a finished decision record page.
	SubjectRecordCreated = "swarm.quill.record.created"
	// SubjectRecordFailed announces a failed pipeline run and its artifact.
	SubjectRecordFailed = "swarm.quill.record.failed"
	// SubjectRegistered announces agent startup.
	SubjectRegistered = "swarm.agent.quill.registered"
)

// RecordCreated is the payload published on SubjectRecordCreated.
type RecordCreated struct {
	PipelineID string   `json:"pipeline_id"`
	Workspace  string   `json:"workspace"`
	Channel    string   `json:"channel"`
	PageID     string   `json:"page_id"`
	PageURL    string   `json:"page_url"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags"`
}

// RecordFailed is the payload published on SubjectRecordFailed.
type RecordFailed struct {
	PipelineID  string `json:"pipeline_id"`
	Workspace   string `json:"workspace"`
	Channel     string `json:"channel"`
	Error       string `json:"error"`
	ArtifactURL string `json:"artifact_url,omitempty"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
