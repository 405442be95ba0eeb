package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel carries status table events between server instances
const DefaultRedisChannel = "people_status:changes"

// RedisFeed publishes events on a Redis channel and relays every message it
// receives, including its own, into a local Hub. Local subscribers are only
// notified through the relay so each event reaches them once per instance.
type RedisFeed struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	hub     *Hub

	closeOnce sync.Once
	done      chan struct{}
}

// NewRedisFeed subscribes client to channel and starts the relay. It returns
// once Redis has confirmed the subscription.
func NewRedisFeed(ctx context.Context, client *redis.Client, channel string) (*RedisFeed, error) {
	if channel == "" {
		channel = DefaultRedisChannel
	}

	pubsub := client.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed so no publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	f := &RedisFeed{
		client:  client,
		channel: channel,
		pubsub:  pubsub,
		hub:     NewHub(),
		done:    make(chan struct{}),
	}

	go f.relay()

	glog.Infof("[feed]redis relay on channel %s", channel)
	return f, nil
}

// relay forwards every message received on the channel into the local hub
func (f *RedisFeed) relay() {
	defer close(f.done)

	for msg := range f.pubsub.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			glog.Errorf("[feed]bad event on %s: %v", msg.Channel, err)
			continue
		}
		if err := f.hub.Publish(context.Background(), event); err != nil {
			glog.Errorf("[feed]relay %s: %v", event.ID, err)
		}
	}
}

// Publish sends event to every instance listening on the channel, this one included
func (f *RedisFeed) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe registers handler on the local hub
func (f *RedisFeed) Subscribe(table string, handler Handler) func() {
	return f.hub.Subscribe(table, handler)
}

// Close stops the relay and drops local subscriptions. The client is left open.
func (f *RedisFeed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		err = f.pubsub.Close()
		<-f.done
		f.hub.Close()
	})
	return err
}
