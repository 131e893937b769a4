// Package launcher decides how a bot's worker actually gets started. The
// deployment mode is fixed at construction: isolated-compute provisions a
// dedicated ephemeral worker per bot, shared-queue defers the bot to a
// fixed pool of long-lived workers through the shared work queue. Nothing
// reads the mode ambiently at call time.
package launcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-meetbot-backend/internal/provision"
)

// Mode selects the launch mechanism.
type Mode string

const (
	// ModeIsolatedCompute provisions one ephemeral worker per bot.
	ModeIsolatedCompute Mode = "isolated-compute"
	// ModeSharedQueue enqueues the bot for the long-lived worker pool.
	ModeSharedQueue Mode = "shared-queue"
)

// ParseMode validates a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeIsolatedCompute, ModeSharedQueue:
		return Mode(s), nil
	}
	return "", fmt.Errorf("launcher: unknown deployment mode %q", s)
}

// ErrLaunchFailed wraps any launch outcome that did not start or schedule
// a worker.
var ErrLaunchFailed = errors.New("bot launch failed")

// WorkerProvisioner creates ephemeral worker units. Provision never raises
// past its boundary; failures arrive as data in the Result.
type WorkerProvisioner interface {
	Provision(ctx context.Context, botID, workerName string) provision.Result
}

// TaskQueue schedules a deferred run for the shared worker pool. Duplicate
// suppression is the queue's responsibility.
type TaskQueue interface {
	EnqueueRun(ctx context.Context, botID string) error
}

// botLaunchesTotal counts launch attempts by mode and outcome.
var botLaunchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bot_launches_total",
		Help: "Total number of bot launch attempts.",
	},
	[]string{"mode", "outcome"},
)

func init() {
	prometheus.MustRegister(botLaunchesTotal)
}

// Launcher starts workers for bots through whichever mechanism the
// deployment uses.
type Launcher struct {
	mode        Mode
	provisioner WorkerProvisioner
	queue       TaskQueue
}

// New builds a Launcher for the given mode. The collaborator the mode
// needs must be non-nil; the other may be nil.
func New(mode Mode, prov WorkerProvisioner, q TaskQueue) (*Launcher, error) {
	switch mode {
	case ModeIsolatedCompute:
		if prov == nil {
			return nil, errors.New("launcher: isolated-compute mode requires a provisioner")
		}
	case ModeSharedQueue:
		if q == nil {
			return nil, errors.New("launcher: shared-queue mode requires a task queue")
		}
	default:
		return nil, fmt.Errorf("launcher: unknown deployment mode %q", mode)
	}
	return &Launcher{mode: mode, provisioner: prov, queue: q}, nil
}

// Mode reports the mechanism this launcher was built for.
func (l *Launcher) Mode() Mode {
	return l.mode
}

// Launch starts the bot's worker. Both paths are safe against duplicate
// invocation: a duplicate provision request is reported as success without
// a second unit, and duplicate queue tasks are suppressed by the queue.
// Launch does not retry on its own.
func (l *Launcher) Launch(ctx context.Context, botID string) error {
	switch l.mode {
	case ModeIsolatedCompute:
		return l.launchIsolated(ctx, botID)
	default:
		return l.launchQueued(ctx, botID)
	}
}

func (l *Launcher) launchIsolated(ctx context.Context, botID string) error {
	res := l.provisioner.Provision(ctx, botID, "")
	if res.Err != "" {
		botLaunchesTotal.WithLabelValues(string(l.mode), "failed").Inc()
		log.Error().Str("bot_id", botID).Str("worker", res.Name).Str("reason", res.Err).
			Msg("worker provisioning failed")
		return fmt.Errorf("%w: %s", ErrLaunchFailed, res.Err)
	}

	outcome := "provisioned"
	if !res.Created {
		outcome = "duplicate"
	}
	botLaunchesTotal.WithLabelValues(string(l.mode), outcome).Inc()
	log.Info().Str("bot_id", botID).Str("worker", res.Name).Bool("created", res.Created).
		Msg("worker provisioned")
	return nil
}

func (l *Launcher) launchQueued(ctx context.Context, botID string) error {
	if err := l.queue.EnqueueRun(ctx, botID); err != nil {
		botLaunchesTotal.WithLabelValues(string(l.mode), "failed").Inc()
		log.Error().Err(err).Str("bot_id", botID).Msg("run task enqueue failed")
		return fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}
	botLaunchesTotal.WithLabelValues(string(l.mode), "enqueued").Inc()
	log.Info().Str("bot_id", botID).Msg("run task enqueued")
	return nil
}
