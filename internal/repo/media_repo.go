// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for MediaBlob and
// BotMediaRequest. Blobs are content-addressed: the same payload uploaded
// twice within a project maps to a single row.
package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-meetbot-backend/internal/domain"
)

// BlobChecksum computes the content address of a media payload: the SHA-256
// of the raw bytes followed by the content type.
func BlobChecksum(data []byte, contentType string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte(contentType))
	return hex.EncodeToString(h.Sum(nil))
}

// GetOrCreateMediaBlob returns the existing blob matching (project, checksum)
// or inserts a new one. Safe to call inside the bot-creation transaction.
func GetOrCreateMediaBlob(ctx context.Context, db *gorm.DB, projectID string, data []byte, contentType string) (*domain.MediaBlob, error) {
	checksum := BlobChecksum(data, contentType)

	var existing domain.MediaBlob
	err := db.WithContext(ctx).
		Where("project_id = ? AND checksum = ?", projectID, checksum).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	blob := &domain.MediaBlob{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Checksum:    checksum,
		ContentType: contentType,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(blob).Error; err != nil {
		return nil, err
	}
	return blob, nil
}

// CreateMediaRequest links a bot to a media blob in the enqueued state.
func CreateMediaRequest(ctx context.Context, db *gorm.DB, botID, blobID string) (*domain.BotMediaRequest, error) {
	req := &domain.BotMediaRequest{
		ID:          uuid.NewString(),
		BotID:       botID,
		MediaBlobID: blobID,
		MediaType:   "image",
		State:       domain.MediaRequestEnqueued,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(req).Error; err != nil {
		return nil, err
	}
	return req, nil
}

// CountMediaRequests returns the number of media requests for a bot.
func CountMediaRequests(ctx context.Context, db *gorm.DB, botID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.BotMediaRequest{}).
		Where("bot_id = ?", botID).
		Count(&total).Error
	return total, err
}
