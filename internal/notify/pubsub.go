package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// pubsubPublisher implements the Publisher interface for GCP Pub/Sub.
type pubsubPublisher struct {
	id    string
	typ   string
	topic *pubsub.Topic
	log   Logger
}

// newPubSubPublisher creates a new Pub/Sub publisher with the given configuration.
func newPubSubPublisher(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.PubSub == nil {
		return nil, fmt.Errorf("publisher %q missing pubsub configuration", cfg.ID)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var opts []option.ClientOption
	if cfg.PubSub.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.PubSub.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &pubsubPublisher{
		id:    cfg.ID,
		typ:   TypePubSub,
		topic: client.Topic(cfg.PubSub.Topic),
		log:   ensureLogger(log),
	}, nil
}

func (p *pubsubPublisher) ID() string   { return p.id }
func (p *pubsubPublisher) Type() string { return p.typ }

// Publish sends the event to the configured Pub/Sub topic.
func (p *pubsubPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"round": evt.RoundAttr(),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		p.log.ErrorObj("pubsub publisher send failed", "publisher_pubsub_error", map[string]any{
			"publisher_id": p.id,
			"error":        err.Error(),
		})
		return fmt.Errorf("publish to pubsub: %w", err)
	}
	p.log.DebugObj("pubsub publisher delivered event", "publisher_pubsub_delivery", map[string]any{
		"publisher_id": p.id,
		"round":        evt.Round,
	})
	return nil
}
