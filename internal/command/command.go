// Package command is the fire-and-forget signaling path to a live worker.
// Messages are published to a per-bot channel with at-most-once delivery
// and no persistence. A worker that is not subscribed at publish time
// simply never sees the message, which is acceptable: commands only make
// sense for a running worker, and the durable lifecycle record lives in
// the event log, never here.
package command

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// publishTimeout bounds a single publish so a slow broker cannot stall the
// calling request.
const publishTimeout = 5 * time.Second

// Channel derives the per-bot channel name.
func Channel(botID string) string {
	return "bot_" + botID
}

// message is the wire form of a command.
type message struct {
	Command string `json:"command"`
}

// Bus publishes commands to live workers. Send is best-effort: an error
// means the notification was not delivered, never that the underlying
// lifecycle operation failed.
type Bus interface {
	Send(ctx context.Context, botID, cmd string) error
}

// RedisBus publishes over Redis pub/sub.
type RedisBus struct {
	client redis.UniversalClient
}

// NewRedisBus builds a bus from a redis URL such as redis://host:6379/0.
func NewRedisBus(url string) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBus{client: redis.NewClient(opts)}, nil
}

// NewRedisBusWithClient wraps an existing client, mainly for tests.
func NewRedisBusWithClient(client redis.UniversalClient) *RedisBus {
	return &RedisBus{client: client}
}

// Send publishes {"command":<cmd>} to the bot's channel.
func (b *RedisBus) Send(ctx context.Context, botID, cmd string) error {
	payload, err := json.Marshal(message{Command: cmd})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return b.client.Publish(ctx, Channel(botID), payload).Err()
}

// Close releases the underlying connection pool.
func (b *RedisBus) Close() error {
	return b.client.Close()
}

// MemoryBus is an in-process Bus recording every publish, for tests and
// single-node development runs.
type MemoryBus struct {
	mu       sync.Mutex
	messages map[string][]string
	failWith error
}

// NewMemoryBus returns an empty in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{messages: make(map[string][]string)}
}

// FailWith makes every subsequent Send return err. Pass nil to recover.
func (b *MemoryBus) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWith = err
}

// Send records the serialized command on the bot's channel.
func (b *MemoryBus) Send(_ context.Context, botID, cmd string) error {
	payload, err := json.Marshal(message{Command: cmd})
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return b.failWith
	}
	ch := Channel(botID)
	b.messages[ch] = append(b.messages[ch], string(payload))
	return nil
}

// Messages returns a copy of everything published to a channel.
func (b *MemoryBus) Messages(channel string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.messages[channel]))
	copy(out, b.messages[channel])
	return out
}
