// Package services – BotService
//
// This file implements BotService, the application-level component that owns
// bot creation and the operator-facing lifecycle operations. Creation checks
// its preconditions in order (credits, request shape, platform credentials)
// and then persists the bot, its default recording, and any media attachment
// in a single transaction that also raises the initial JOIN_REQUESTED event.
// No partial state is ever visible: any failure inside the transaction rolls
// everything back.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// project and bot identifiers.
package services

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-meetbot-backend/internal/domain"
	"github.com/tbourn/go-meetbot-backend/internal/repo"
)

// CreationSource records which surface asked for the bot. It is written into
// the JOIN_REQUESTED event metadata for audit and never affects validation.
type CreationSource string

const (
	SourceAPI       CreationSource = "api"
	SourceDashboard CreationSource = "dashboard"
)

// creditGraceThreshold is the lowest balance at which creation still
// proceeds. Balances strictly below it are rejected.
const creditGraceThreshold = -1

// maxImageBytes caps decoded avatar payloads.
const maxImageBytes = 2 << 20

// maxBotNameRunes caps stored display names.
const maxBotNameRunes = 255

// BotImage is an optional avatar attachment supplied at creation.
type BotImage struct {
	// ContentType must be one of image/png, image/jpeg, image/gif.
	ContentType string `json:"type"`
	// Data is the base64-encoded payload.
	Data string `json:"data"`
}

// CreateBotRequest is the transport-agnostic creation payload.
type CreateBotRequest struct {
	MeetingURL string             `json:"meeting_url"`
	BotName    string             `json:"bot_name"`
	Settings   domain.BotSettings `json:"settings"`
	Image      *BotImage          `json:"bot_image,omitempty"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
}

// BotService coordinates bot creation and lifecycle operations.
type BotService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Events is the lifecycle event manager; every state change goes
	// through it.
	Events *EventService
}

// NewBotService constructs a BotService sharing the given handle with its
// event manager.
func NewBotService(db *gorm.DB) *BotService {
	return &BotService{DB: db, Events: NewEventService(db)}
}

// Create validates the request and, when every precondition holds, persists
// the bot, its default recording, and any media attachment atomically,
// raising JOIN_REQUESTED as the final step of the same transaction.
//
// Preconditions, checked in order and short-circuiting:
//  1. the project's credit balance is at least -1, else ErrInsufficientCredits;
//  2. the request is well-formed (URL, settings, image payload), else a
//     *ValidationError naming the offending field;
//  3. Zoom-classified URLs require a zoom_oauth credential on the project,
//     else ErrMissingCredentials.
//
// On any failure the database is untouched: no bot, recording, media row,
// or event survives a rolled-back creation.
func (s *BotService) Create(ctx context.Context, projectID string, req CreateBotRequest, source CreationSource) (*domain.Bot, error) {
	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("project.id", projectID)),
	)
	defer span.End()

	project, err := repo.GetProject(ctx, s.DB, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	// Credit gate first: a small grace window below zero is allowed.
	if project.CreditBalance < creditGraceThreshold {
		return nil, ErrInsufficientCredits
	}

	platform, imageData, verr := s.validate(&req)
	if verr != nil {
		return nil, verr
	}

	if platform == PlatformZoom {
		has, err := repo.HasCredential(ctx, s.DB, projectID, domain.CredentialZoomOAuth)
		if err != nil {
			return nil, err
		}
		if !has {
			return nil, ErrMissingCredentials
		}
	}

	name := strings.TrimSpace(req.BotName)
	if name == "" {
		name = DefaultBotName(platform)
	}

	recType := domain.RecordingAudioAndVideo
	if req.Settings.Recording.AudioOnly {
		recType = domain.RecordingAudioOnly
	}
	trType := domain.TranscriptionNonRealtime
	provider := ProviderForMeeting(req.MeetingURL, req.Settings.Transcription)

	var bot *domain.Bot
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := repo.CreateBot(ctx, tx, projectID, req.MeetingURL, name, req.Settings, req.Metadata)
		if err != nil {
			return err
		}

		if _, err := repo.CreateRecording(ctx, tx, b.ID, recType, trType, provider, true); err != nil {
			return err
		}

		if req.Image != nil {
			blob, err := repo.GetOrCreateMediaBlob(ctx, tx, projectID, imageData, req.Image.ContentType)
			if err != nil {
				// Blob persistence failure aborts the whole creation and is
				// reported as a single human-readable validation error.
				return invalidField("bot_image", "error creating the image blob: "+firstLine(err.Error()))
			}
			if _, err := repo.CreateMediaRequest(ctx, tx, b.ID, blob.ID); err != nil {
				return err
			}
		}

		if _, err := s.Events.CreateEventIn(ctx, tx, b.ID, domain.EventJoinRequested, "",
			map[string]any{"source": string(source)}); err != nil {
			return err
		}

		bot = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The cached state changed inside the transaction; reflect it.
	bot.State = domain.StateJoining
	return bot, nil
}

// validate checks the request shape and decodes the image payload, if any.
// It has no side effects.
func (s *BotService) validate(req *CreateBotRequest) (MeetingPlatform, []byte, *ValidationError) {
	meetingURL := strings.TrimSpace(req.MeetingURL)
	if meetingURL == "" {
		return PlatformUnknown, nil, invalidField("meeting_url", "is required")
	}
	req.MeetingURL = meetingURL

	if !strings.HasPrefix(meetingURL, "https://") && !strings.HasPrefix(meetingURL, "http://") {
		return PlatformUnknown, nil, invalidField("meeting_url", "must be an absolute http(s) URL")
	}
	platform := PlatformFromURL(meetingURL)
	if platform == PlatformUnknown {
		return PlatformUnknown, nil, invalidField("meeting_url", "unrecognized meeting platform")
	}

	if utf8.RuneCountInString(req.BotName) > maxBotNameRunes {
		return platform, nil, invalidField("bot_name", "too long")
	}

	if ts := req.Settings.Transcription; ts.Provider != "" {
		switch ts.Provider {
		case domain.ProviderDeepgram, domain.ProviderGladia, domain.ProviderOpenAI:
		default:
			return platform, nil, invalidField("transcription_settings.provider", "unknown provider")
		}
	}
	if rtmp := req.Settings.RTMP; rtmp.DestinationURL != "" {
		if !strings.HasPrefix(rtmp.DestinationURL, "rtmp://") && !strings.HasPrefix(rtmp.DestinationURL, "rtmps://") {
			return platform, nil, invalidField("rtmp_settings.destination_url", "must be an rtmp(s) URL")
		}
	}

	var imageData []byte
	if req.Image != nil {
		switch req.Image.ContentType {
		case "image/png", "image/jpeg", "image/gif":
		default:
			return platform, nil, invalidField("bot_image.type", "unsupported content type")
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Image.Data)
		if err != nil {
			return platform, nil, invalidField("bot_image.data", "invalid base64 payload")
		}
		if len(decoded) == 0 {
			return platform, nil, invalidField("bot_image.data", "empty payload")
		}
		if len(decoded) > maxImageBytes {
			return platform, nil, invalidField("bot_image.data", "payload too large")
		}
		imageData = decoded
	}

	return platform, imageData, nil
}

// Get returns a bot with its full event history, scoped to a project.
func (s *BotService) Get(ctx context.Context, projectID, objectID string) (*domain.Bot, []domain.BotEvent, error) {
	bot, err := repo.GetBotByObjectID(ctx, s.DB, objectID, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrBotNotFound
		}
		return nil, nil, err
	}
	events, err := repo.ListEvents(ctx, s.DB, bot.ID)
	if err != nil {
		return nil, nil, err
	}
	return bot, events, nil
}

// GetByObjectID returns a bot by external id without a project scope.
// Reserved for the trusted worker-callback path.
func (s *BotService) GetByObjectID(ctx context.Context, objectID string) (*domain.Bot, error) {
	bot, err := repo.FindBotByObjectID(ctx, s.DB, objectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}
	return bot, nil
}

// ListPage returns a page of the project's bots and the total count.
// It applies defaults for invalid page/pageSize.
func (s *BotService) ListPage(ctx context.Context, projectID string, page, pageSize int) ([]domain.Bot, int64, error) {
	tr := otel.Tracer("services/BotService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountBots(ctx, s.DB, projectID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Bot{}, 0, nil
	}

	items, err := repo.ListBotsPage(ctx, s.DB, projectID, offset, pageSize)
	return items, total, err
}

// RequestLeave records a LEAVE_REQUESTED event for the bot and returns the
// refreshed row. The command-channel notification to the live worker is the
// caller's concern: it is best-effort and must stay outside the event
// transaction.
func (s *BotService) RequestLeave(ctx context.Context, projectID, objectID string, subType domain.BotEventSubType) (*domain.Bot, error) {
	bot, err := repo.GetBotByObjectID(ctx, s.DB, objectID, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}

	if _, err := s.Events.CreateEvent(ctx, bot.ID, domain.EventLeaveRequested, subType, nil); err != nil {
		return nil, err
	}
	return repo.GetBot(ctx, s.DB, bot.ID)
}

// RecordWorkerEvent applies a worker-reported transition (joined_meeting or
// left_meeting) to the bot identified by external id. Other event types are
// rejected as illegal: workers do not get to request joins or leaves.
func (s *BotService) RecordWorkerEvent(ctx context.Context, objectID string, eventType domain.BotEventType) (*domain.Bot, error) {
	if eventType != domain.EventJoinedMeeting && eventType != domain.EventLeftMeeting && eventType != domain.EventFatalError {
		return nil, ErrIllegalTransition
	}

	bot, err := s.GetByObjectID(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Events.CreateEvent(ctx, bot.ID, eventType, "", nil); err != nil {
		return nil, err
	}
	return repo.GetBot(ctx, s.DB, bot.ID)
}

// firstLine trims an error message to its first line for user display.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
