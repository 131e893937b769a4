// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the BotEvent
// model. Events are append-only: there are deliberately no update or delete
// helpers here.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-meetbot-backend/internal/domain"
)

// AppendEvent inserts a new immutable BotEvent row. Callers are expected to
// run it inside the transaction that also advances the bot's cached state.
func AppendEvent(ctx context.Context, db *gorm.DB, botID string, eventType domain.BotEventType, subType domain.BotEventSubType, metadata map[string]any) (*domain.BotEvent, error) {
	ev := &domain.BotEvent{
		ID:           uuid.NewString(),
		BotID:        botID,
		EventType:    eventType,
		EventSubType: subType,
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// ListEvents returns the full event history for a bot in insertion order.
func ListEvents(ctx context.Context, db *gorm.DB, botID string) ([]domain.BotEvent, error) {
	var out []domain.BotEvent
	err := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// CountEvents returns the number of events recorded for a bot.
func CountEvents(ctx context.Context, db *gorm.DB, botID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.BotEvent{}).
		Where("bot_id = ?", botID).
		Count(&total).Error
	return total, err
}
