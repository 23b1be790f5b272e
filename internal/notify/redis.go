package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// UserChannel is the pub/sub channel carrying events for one user. The
// realtime gateway pattern-subscribes to UserChannelPattern and routes
// each message to that user's sockets.
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

const UserChannelPattern = "user:*"

// Envelope is the wire form of one published event.
type Envelope struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeEnvelope marshals a topic and payload into the wire form.
func EncodeEnvelope(topic string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return json.Marshal(Envelope{Topic: topic, Payload: data})
}

// RedisPublisher fans events out over per-user Redis channels.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, recipients []uuid.UUID, payload any) error {
	msg, err := EncodeEnvelope(topic, payload)
	if err != nil {
		return err
	}

	for _, rcpt := range recipients {
		if err := p.client.Publish(ctx, UserChannel(rcpt), msg).Err(); err != nil {
			return fmt.Errorf("publish %s to %s: %w", topic, rcpt, err)
		}
	}
	return nil
}

// NewRedisClient builds the shared client for publishing and the gateway
// subscription.
func NewRedisClient(addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}
