package domain

import "time"

// Idempotency records the outcome of a previously processed bot-creation
// request, keyed by (project_id, key). Retried POST /bots calls carrying the
// same Idempotency-Key return the originally created bot instead of creating
// (and launching) a second one.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ProjectID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_project_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_project_key,priority:2"`
	BotID     string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
