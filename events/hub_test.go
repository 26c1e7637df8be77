package events

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/meghashyamc/clinicsearch/config"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

func receive(t *testing.T, subscriber *Subscriber) Message {
	t.Helper()
	select {
	case msg := <-subscriber.C():
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func TestPublishReachesTopicSubscribers(t *testing.T) {
	assert := require.New(t)
	hub := NewHub(testLogger)

	first := hub.Subscribe("session-a")
	second := hub.Subscribe("session-a")
	other := hub.Subscribe("session-b")
	defer first.Close()
	defer second.Close()
	defer other.Close()

	msg := Message{Topic: "session-a", Event: EventHighlight, HighlightID: "medical-6", Page: "Equipment"}
	assert.NoError(hub.Publish(context.Background(), msg))

	assert.Equal(msg, receive(t, first))
	assert.Equal(msg, receive(t, second))
	select {
	case unexpected := <-other.C():
		t.Fatalf("other topic received %v", unexpected)
	default:
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	assert := require.New(t)
	hub := NewHub(testLogger)

	subscriber := hub.Subscribe("session-a")
	assert.Equal(1, hub.Subscribers("session-a"))

	subscriber.Close()
	subscriber.Close()
	assert.Zero(hub.Subscribers("session-a"))

	_, open := <-subscriber.C()
	assert.False(open)

	// publishing to a topic nobody listens on is fine
	assert.NoError(hub.Publish(context.Background(), Message{Topic: "session-a", Event: EventClear}))
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	assert := require.New(t)
	hub := NewHub(testLogger)
	subscriber := hub.Subscribe("session-a")
	defer subscriber.Close()

	for i := 0; i < subscriberBufferSize+5; i++ {
		assert.NoError(hub.Publish(context.Background(), Message{Topic: "session-a", Event: EventHighlight}))
	}
	assert.Len(subscriber.C(), subscriberBufferSize)
}

func TestPublishWithoutTopic(t *testing.T) {
	assert := require.New(t)
	hub := NewHub(testLogger)
	subscriber := hub.Subscribe("")
	defer subscriber.Close()

	assert.NoError(hub.Publish(context.Background(), Message{Event: EventHighlight}))
	assert.Empty(subscriber.C())
}

func TestNewRedisBusRequiresAddress(t *testing.T) {
	assert := require.New(t)
	t.Setenv("ENV", "test")
	cfg, err := config.Load()
	assert.NoError(err, "could not load config")
	cfg.Set("REDIS_ADDR", "")

	_, err = NewRedisBus(testLogger, cfg, NewHub(testLogger))
	assert.ErrorIs(err, ErrRedisNotConfigured)
}
