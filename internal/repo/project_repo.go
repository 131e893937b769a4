// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Project and
// Credential rows. Credentials are read-only from the perspective of the
// lifecycle core: creation validation checks presence, nothing mutates them.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-meetbot-backend/internal/domain"
)

// CreateProject inserts a new project with the given name and starting
// credit balance. Used by seeding and tests; projects are otherwise managed
// outside this core.
func CreateProject(ctx context.Context, db *gorm.DB, name string, creditBalance float64) (*domain.Project, error) {
	p := &domain.Project{
		ID:            uuid.NewString(),
		Name:          name,
		CreditBalance: creditBalance,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetProject fetches a project by ID, or ErrNotFound.
func GetProject(ctx context.Context, db *gorm.DB, id string) (*domain.Project, error) {
	var p domain.Project
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ProjectCredits returns the current credit balance for a project.
func ProjectCredits(ctx context.Context, db *gorm.DB, projectID string) (float64, error) {
	p, err := GetProject(ctx, db, projectID)
	if err != nil {
		return 0, err
	}
	return p.CreditBalance, nil
}

// CreateCredential registers a credential of the given type on a project.
func CreateCredential(ctx context.Context, db *gorm.DB, projectID string, credType domain.CredentialType) (*domain.Credential, error) {
	c := &domain.Credential{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Type:      credType,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// HasCredential reports whether the project holds a credential of credType.
func HasCredential(ctx context.Context, db *gorm.DB, projectID string, credType domain.CredentialType) (bool, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Credential{}).
		Where("project_id = ? AND type = ?", projectID, credType).
		Count(&total).Error
	return total > 0, err
}
