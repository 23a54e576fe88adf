package events

import (
	"context"
	"encoding/json"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const eventTypePrefix = "com.cims."

// ToCloudEvent wraps a domain event in a CloudEvents envelope
func ToCloudEvent(event Event, source string) (cloudevents.Event, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(uuid.NewString())
	ce.SetSource(source)
	ce.SetType(eventTypePrefix + event.Type())
	ce.SetSubject(event.StreamID())
	ce.SetTime(event.Timestamp())
	ce.SetExtension("streamversion", event.Version())
	if err := ce.SetData(cloudevents.ApplicationJSON, event.Data()); err != nil {
		return ce, fmt.Errorf("failed to set event data: %w", err)
	}
	if err := ce.Validate(); err != nil {
		return ce, fmt.Errorf("invalid cloud event: %w", err)
	}
	return ce, nil
}

// RedisPublisher publishes CloudEvents JSON on a Redis pub/sub channel
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	source  string
}

func NewRedisPublisher(client redis.UniversalClient, channel, source string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, source: source}
}

var _ Publisher = (*RedisPublisher)(nil)

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	ce, err := ToCloudEvent(event, p.source)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.Type(), err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type(), err)
	}
	return nil
}

// Subscribe delivers decoded events from channel to fn until ctx is done
func Subscribe(ctx context.Context, client redis.UniversalClient, channel string, fn func(cloudevents.Event)) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ce cloudevents.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ce); err != nil {
				continue
			}
			fn(ce)
		}
	}
}
