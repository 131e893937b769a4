// Package services – EventService
//
// This file implements the EventService, the authoritative manager of a
// bot's lifecycle ledger. Every state change is driven by an appended
// BotEvent; the cached Bot.State column is advanced in the same transaction
// through a compare-and-swap guarded by the event's legal source states, so
// two concurrent transition attempts on the same bot can never both succeed
// from the same stale read. The loser receives ErrIllegalTransition and
// nothing is recorded.
//
// Observability: CreateEvent is OpenTelemetry-instrumented and increments a
// per-event-type Prometheus counter on success.
package services

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-meetbot-backend/internal/domain"
	"github.com/tbourn/go-meetbot-backend/internal/repo"
)

// botEventsTotal counts successfully recorded lifecycle events by type.
var botEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bot_events_total",
		Help: "Total number of recorded bot lifecycle events.",
	},
	[]string{"type"},
)

func init() {
	prometheus.MustRegister(botEventsTotal)
}

// EventService appends lifecycle events and keeps the cached bot state
// consistent with the event log. It is safe for concurrent use.
type EventService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewEventService constructs an EventService bound to db.
func NewEventService(db *gorm.DB) *EventService {
	return &EventService{DB: db}
}

// CreateEvent appends eventType for the bot identified by its internal id
// and advances the cached state, all within one transaction.
//
// Semantics:
//   - Unknown event types and events whose legal-source set excludes the
//     bot's current state fail with ErrIllegalTransition; neither the event
//     nor the state change is persisted.
//   - A missing bot fails with ErrBotNotFound.
//   - subType and metadata are optional qualifiers stored on the event.
//
// Concurrency: the state column update is a compare-and-swap over the
// event's legal source states. Of two racing calls, exactly one observes a
// matching state; the other's guard matches zero rows and the transaction
// rolls back with ErrIllegalTransition.
func (s *EventService) CreateEvent(ctx context.Context, botID string, eventType domain.BotEventType, subType domain.BotEventSubType, metadata map[string]any) (*domain.BotEvent, error) {
	tr := otel.Tracer("services/EventService")
	ctx, span := tr.Start(ctx, "CreateEvent",
		trace.WithAttributes(
			attribute.String("bot.id", botID),
			attribute.String("event.type", string(eventType)),
		),
	)
	defer span.End()

	var created *domain.BotEvent
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev, err := s.CreateEventIn(ctx, tx, botID, eventType, subType, metadata)
		if err != nil {
			return err
		}
		created = ev
		return nil
	})
	if err != nil {
		return nil, err
	}

	botEventsTotal.WithLabelValues(string(eventType)).Inc()
	return created, nil
}

// CreateEventIn is the transaction-scoped core of CreateEvent. The caller
// supplies the transaction handle; the append and the state CAS either both
// commit with it or both roll back. Used by BotService to raise the initial
// JOIN_REQUESTED event inside the creation transaction.
func (s *EventService) CreateEventIn(ctx context.Context, tx *gorm.DB, botID string, eventType domain.BotEventType, subType domain.BotEventSubType, metadata map[string]any) (*domain.BotEvent, error) {
	sources, known := domain.LegalSources(eventType)
	if !known {
		return nil, ErrIllegalTransition
	}
	next, _ := domain.Result(eventType)

	if _, err := repo.GetBot(ctx, tx, botID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}

	moved, err := repo.TransitionBotState(ctx, tx, botID, sources, next)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, ErrIllegalTransition
	}

	return repo.AppendEvent(ctx, tx, botID, eventType, subType, metadata)
}

// ReplayState recomputes a bot's state by folding its full event history.
// It exists for audits and tests: the result must always equal the cached
// Bot.State column.
func (s *EventService) ReplayState(ctx context.Context, botID string) (domain.BotState, error) {
	events, err := repo.ListEvents(ctx, s.DB, botID)
	if err != nil {
		return "", err
	}
	return domain.Fold(events), nil
}
