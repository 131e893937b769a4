// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Recording
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-meetbot-backend/internal/domain"
)

// CreateRecording inserts a recording row for a bot. The creation workflow
// inserts exactly one recording with isDefault=true per bot.
func CreateRecording(ctx context.Context, db *gorm.DB, botID string, recType domain.RecordingType, trType domain.TranscriptionType, provider domain.TranscriptionProvider, isDefault bool) (*domain.Recording, error) {
	r := &domain.Recording{
		ID:                    uuid.NewString(),
		BotID:                 botID,
		RecordingType:         recType,
		TranscriptionType:     trType,
		TranscriptionProvider: provider,
		IsDefault:             isDefault,
		CreatedAt:             time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// GetDefaultRecording returns the bot's default recording, or ErrNotFound.
func GetDefaultRecording(ctx context.Context, db *gorm.DB, botID string) (*domain.Recording, error) {
	var r domain.Recording
	err := db.WithContext(ctx).
		Where("bot_id = ? AND is_default = ?", botID, true).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecordings returns all recordings for a bot, oldest first.
func ListRecordings(ctx context.Context, db *gorm.DB, botID string) ([]domain.Recording, error) {
	var out []domain.Recording
	err := db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
