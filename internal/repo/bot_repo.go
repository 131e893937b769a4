// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Bot model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a bot is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-meetbot-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

const objectIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewBotObjectID generates an opaque external bot identifier of the form
// "bot_" followed by 16 random alphanumeric characters.
func NewBotObjectID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a UUID
		// fragment rather than panicking in a request path.
		return "bot_" + uuid.NewString()[:16]
	}
	for i, b := range buf {
		buf[i] = objectIDAlphabet[int(b)%len(objectIDAlphabet)]
	}
	return "bot_" + string(buf)
}

// CreateBot inserts a new Bot row for the given project. The internal ID is
// a UUID, the external ObjectID is generated via NewBotObjectID, and the
// initial state is StateReady. On success the persisted Bot is returned.
func CreateBot(ctx context.Context, db *gorm.DB, projectID, meetingURL, name string, settings domain.BotSettings, metadata map[string]any) (*domain.Bot, error) {
	b := &domain.Bot{
		ID:         uuid.NewString(),
		ObjectID:   NewBotObjectID(),
		ProjectID:  projectID,
		MeetingURL: meetingURL,
		Name:       name,
		Settings:   settings,
		Metadata:   metadata,
		State:      domain.StateReady,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, err
	}
	return b, nil
}

// GetBot fetches a bot by its internal ID, or ErrNotFound.
func GetBot(ctx context.Context, db *gorm.DB, id string) (*domain.Bot, error) {
	var b domain.Bot
	if err := db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBotByObjectID fetches a bot by its external identifier scoped to a
// project, or ErrNotFound when missing or owned by another project.
func GetBotByObjectID(ctx context.Context, db *gorm.DB, objectID, projectID string) (*domain.Bot, error) {
	var b domain.Bot
	err := db.WithContext(ctx).
		Where("object_id = ? AND project_id = ?", objectID, projectID).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FindBotByObjectID fetches a bot by its external identifier without a
// project scope. Reserved for the trusted worker-callback path, which
// authenticates with a shared token instead of a project identity.
func FindBotByObjectID(ctx context.Context, db *gorm.DB, objectID string) (*domain.Bot, error) {
	var b domain.Bot
	if err := db.WithContext(ctx).Where("object_id = ?", objectID).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// CountBots returns the total number of bots owned by projectID.
func CountBots(ctx context.Context, db *gorm.DB, projectID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Bot{}).
		Where("project_id = ?", projectID).
		Count(&total).Error
	return total, err
}

// ListBotsPage returns a paginated slice of bots for projectID, ordered by
// creation time descending. The caller computes offset and limit.
func ListBotsPage(ctx context.Context, db *gorm.DB, projectID string, offset, limit int) ([]domain.Bot, error) {
	var out []domain.Bot
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TransitionBotState is a compare-and-swap on the cached state column:
// the row moves to next only if its current state is one of from. It returns
// true when the bot row was updated, false when the guard did not match
// (the caller treats that as an illegal transition). Run inside the same
// transaction as the event insert so the cache and the log cannot diverge.
func TransitionBotState(ctx context.Context, db *gorm.DB, botID string, from []domain.BotState, next domain.BotState) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Bot{}).
		Where("id = ? AND state IN ?", botID, from).
		Update("state", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
