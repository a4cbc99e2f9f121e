package notify

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
)

func TestPubSubPublisherPublishes(t *testing.T) {
	// Use the in-memory Pub/Sub emulator.
	server := pstest.NewServer()
	defer server.Close()
	defer os.Unsetenv("PUBSUB_EMULATOR_HOST")
	os.Setenv("PUBSUB_EMULATOR_HOST", server.Addr)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if _, err := client.CreateTopic(ctx, "round-synced"); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	pub, err := newPubSubPublisher(ctx, PublisherConfig{
		ID:   "gcp-feed",
		Type: TypePubSub,
		PubSub: &PubSubConfig{
			ProjectID: "test-project",
			Topic:     "round-synced",
		},
	}, nil)
	if err != nil {
		t.Fatalf("newPubSubPublisher: %v", err)
	}

	if err := pub.Publish(ctx, testEvent(1190)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}
