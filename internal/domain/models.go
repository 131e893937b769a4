// Package domain defines the persistence models for projects, bots,
// recordings, and media attachments. These types are mapped with GORM and
// form the core data layer of the bot control plane.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Project is the long-lived container that owns bots and credentials.
// Bots reference their project but never own it.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Name: human-readable project name.
//   - CreditBalance: remaining credit units. Creation requests are rejected
//     once the balance drops below -1 (a one-unit grace window).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Project struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	Name          string         `json:"name"           gorm:"type:varchar(255);not null"`
	CreditBalance float64        `json:"credit_balance" gorm:"not null;default:0"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for Project.
func (Project) TableName() string { return "projects" }

// CredentialType identifies the provider a credential belongs to.
type CredentialType string

// Known credential types. ZoomOAuth is mandatory for bots that join
// Zoom-classified meeting URLs.
const (
	CredentialZoomOAuth CredentialType = "zoom_oauth"
	CredentialDeepgram  CredentialType = "deepgram"
	CredentialGladia    CredentialType = "gladia"
	CredentialOpenAI    CredentialType = "openai"
)

// Credential is a per-project provider credential. The secret payload itself
// is opaque to this core; creation validation only checks for presence.
// At most one credential per (project, type).
type Credential struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	ProjectID string         `json:"project_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_credential_project_type,priority:1"`
	Type      CredentialType `json:"type"       gorm:"type:varchar(32);not null;uniqueIndex:ux_credential_project_type,priority:2"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	Project Project `json:"-" gorm:"foreignKey:ProjectID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Credential.
func (Credential) TableName() string { return "credentials" }

// Bot is the persistent record of a meeting-attendance worker. Its State
// column is a cache of the event-log projection: it always equals
// Fold(ordered events) and is only updated transactionally alongside an
// event insert.
//
// Fields:
//   - ID: UUID primary key (char(36)), internal identity.
//   - ObjectID: opaque external identifier ("bot_" + 16 random chars),
//     the only identity exposed through the API.
//   - ProjectID: owning project (indexed).
//   - MeetingURL: the meeting the bot should join.
//   - Name: display name the bot presents inside the meeting.
//   - Settings: typed settings document (serialized JSON).
//   - Metadata: arbitrary caller-supplied document (serialized JSON).
//   - State: cached lifecycle state, see states.go.
type Bot struct {
	ID         string         `json:"-"           gorm:"type:char(36);primaryKey"`
	ObjectID   string         `json:"id"          gorm:"type:varchar(32);not null;uniqueIndex"`
	ProjectID  string         `json:"project_id"  gorm:"type:char(36);not null;index:idx_project_bots"`
	MeetingURL string         `json:"meeting_url" gorm:"type:varchar(2048);not null"`
	Name       string         `json:"name"        gorm:"type:varchar(255);not null"`
	Settings   BotSettings    `json:"settings"    gorm:"serializer:json"`
	Metadata   map[string]any `json:"metadata"    gorm:"serializer:json"`
	State      BotState       `json:"state"       gorm:"type:varchar(16);not null;default:'ready'"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`

	Project Project `json:"-" gorm:"foreignKey:ProjectID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Bot.
func (Bot) TableName() string { return "bots" }

// RecordingType selects which media streams a recording captures.
type RecordingType string

// TranscriptionType selects when transcription happens.
type TranscriptionType string

// TranscriptionProvider identifies the transcription backend.
type TranscriptionProvider string

const (
	RecordingAudioAndVideo RecordingType = "audio_and_video"
	RecordingAudioOnly     RecordingType = "audio_only"

	TranscriptionNonRealtime TranscriptionType = "non_realtime"
	TranscriptionRealtime    TranscriptionType = "realtime"

	ProviderDeepgram TranscriptionProvider = "deepgram"
	ProviderGladia   TranscriptionProvider = "gladia"
	ProviderOpenAI   TranscriptionProvider = "openai"
)

// Recording is a capture artifact owned by a bot. Exactly one recording per
// bot carries IsDefault=true, created alongside the bot itself.
type Recording struct {
	ID                    string                `json:"id"                     gorm:"type:char(36);primaryKey"`
	BotID                 string                `json:"bot_id"                 gorm:"type:char(36);not null;index"`
	RecordingType         RecordingType         `json:"recording_type"         gorm:"type:varchar(32);not null"`
	TranscriptionType     TranscriptionType     `json:"transcription_type"     gorm:"type:varchar(32);not null"`
	TranscriptionProvider TranscriptionProvider `json:"transcription_provider" gorm:"type:varchar(32);not null"`
	IsDefault             bool                  `json:"is_default"             gorm:"not null;default:false"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
	DeletedAt             gorm.DeletedAt        `json:"-"                      gorm:"index"`

	// Recordings are cascade-deleted with their bot.
	Bot Bot `json:"-" gorm:"foreignKey:BotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Recording.
func (Recording) TableName() string { return "recordings" }

// MediaBlob stores a small media payload (bot avatar image) content-addressed
// by the SHA-256 of its bytes and content type. Uploading the same image
// twice within a project reuses the existing row.
type MediaBlob struct {
	ID          string         `json:"id"           gorm:"type:char(36);primaryKey"`
	ProjectID   string         `json:"project_id"   gorm:"type:char(36);not null;index;uniqueIndex:ux_blob_project_checksum,priority:1"`
	Checksum    string         `json:"checksum"     gorm:"type:char(64);not null;uniqueIndex:ux_blob_project_checksum,priority:2"`
	ContentType string         `json:"content_type" gorm:"type:varchar(64);not null"`
	Data        []byte         `json:"-"            gorm:"type:blob;not null"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`

	Project Project `json:"-" gorm:"foreignKey:ProjectID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MediaBlob.
func (MediaBlob) TableName() string { return "media_blobs" }

// MediaRequestState tracks delivery of a media request to the worker.
type MediaRequestState string

const (
	MediaRequestEnqueued MediaRequestState = "enqueued"
	MediaRequestSent     MediaRequestState = "sent"
	MediaRequestFailed   MediaRequestState = "failed"
)

// BotMediaRequest asks a bot's worker to present a media asset (currently
// only images) inside the meeting. Created in the same transaction as the
// bot; a failed blob aborts the whole creation.
type BotMediaRequest struct {
	ID          string            `json:"id"            gorm:"type:char(36);primaryKey"`
	BotID       string            `json:"bot_id"        gorm:"type:char(36);not null;index"`
	MediaBlobID string            `json:"media_blob_id" gorm:"type:char(36);not null;index"`
	MediaType   string            `json:"media_type"    gorm:"type:varchar(16);not null;default:'image'"`
	State       MediaRequestState `json:"state"         gorm:"type:varchar(16);not null;default:'enqueued'"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	DeletedAt   gorm.DeletedAt    `json:"-"             gorm:"index"`

	Bot       Bot       `json:"-" gorm:"foreignKey:BotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	MediaBlob MediaBlob `json:"-" gorm:"foreignKey:MediaBlobID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for BotMediaRequest.
func (BotMediaRequest) TableName() string { return "bot_media_requests" }
