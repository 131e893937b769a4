// Package queue adapts the shared work queue used in shared-queue
// deployment mode. A fixed pool of long-lived workers consumes deferred
// run tasks keyed by bot id; retry and backoff policy belong to the queue,
// not to the enqueuing side.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// TaskTypeRunBot identifies the deferred run task.
const TaskTypeRunBot = "bot:run"

// enqueueTimeout bounds a single enqueue call.
const enqueueTimeout = 5 * time.Second

// runTaskMaxRetry lets the queue retry a crashed worker run a few times
// before giving up; the state machine records the terminal failure.
const runTaskMaxRetry = 3

// RunBotPayload is the task body.
type RunBotPayload struct {
	BotID string `json:"bot_id"`
}

// NewRunBotTask builds the deferred run task for a bot. The task id is
// derived from the bot id so a duplicate enqueue of the same bot is
// rejected by the queue instead of running the bot twice.
func NewRunBotTask(botID string) (*asynq.Task, error) {
	payload, err := json.Marshal(RunBotPayload{BotID: botID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRunBot, payload,
		asynq.TaskID(TaskTypeRunBot+":"+botID),
		asynq.MaxRetry(runTaskMaxRetry),
	), nil
}

// Client enqueues run tasks onto the shared queue.
type Client struct {
	inner *asynq.Client
}

// NewClient connects to the queue's redis backend.
func NewClient(redisURL string) (*Client, error) {
	opts, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	return &Client{inner: asynq.NewClient(opts)}, nil
}

// EnqueueRun schedules the bot's run task. A duplicate of an already
// pending task is treated as success: the bot is queued either way.
func (c *Client) EnqueueRun(ctx context.Context, botID string) error {
	task, err := NewRunBotTask(botID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	_, err = c.inner.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// Close releases the queue connection.
func (c *Client) Close() error {
	return c.inner.Close()
}

// RunHandler processes one bot run on the worker side.
type RunHandler func(ctx context.Context, botID string) error

// RegisterRunHandler wires a RunHandler into an asynq mux, decoding the
// payload and rejecting malformed tasks without retry.
func RegisterRunHandler(mux *asynq.ServeMux, h RunHandler) {
	mux.HandleFunc(TaskTypeRunBot, func(ctx context.Context, task *asynq.Task) error {
		var p RunBotPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return errors.Join(err, asynq.SkipRetry)
		}
		if p.BotID == "" {
			return errors.Join(errors.New("run task missing bot_id"), asynq.SkipRetry)
		}
		return h(ctx, p.BotID)
	})
}
