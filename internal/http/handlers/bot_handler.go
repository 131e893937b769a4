// Bot HTTP handlers.
//
// This file exposes REST endpoints for bot resources:
//   - POST   /bots                      (create and launch)
//   - GET    /bots                      (list, paginated, ETag support)
//   - GET    /bots/{object_id}          (fetch with event history)
//   - POST   /bots/{object_id}/leave    (request leave)
//
// plus the worker-callback endpoint mounted under /internal. Handlers are
// transport-thin: they validate input, call application services, and
// translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-meetbot-backend/internal/domain"
	"github.com/tbourn/go-meetbot-backend/internal/http/middleware"
	"github.com/tbourn/go-meetbot-backend/internal/repo"
	"github.com/tbourn/go-meetbot-backend/internal/services"
	"github.com/tbourn/go-meetbot-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// BotService defines bot lifecycle operations consumed by HTTP handlers.
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type BotService interface {
	// Create validates the request and persists the bot atomically with its
	// default recording and the initial JOIN_REQUESTED event.
	Create(ctx context.Context, projectID string, req services.CreateBotRequest, source services.CreationSource) (*domain.Bot, error)
	// Get returns a bot with its full event history, scoped to a project.
	Get(ctx context.Context, projectID, objectID string) (*domain.Bot, []domain.BotEvent, error)
	// ListPage returns a page of the project's bots and the total count.
	ListPage(ctx context.Context, projectID string, page, pageSize int) ([]domain.Bot, int64, error)
	// RequestLeave records a LEAVE_REQUESTED event for the bot.
	RequestLeave(ctx context.Context, projectID, objectID string, subType domain.BotEventSubType) (*domain.Bot, error)
	// RecordWorkerEvent applies a worker-reported transition.
	RecordWorkerEvent(ctx context.Context, objectID string, eventType domain.BotEventType) (*domain.Bot, error)
}

// BotLauncher starts the worker for a freshly created bot.
type BotLauncher interface {
	Launch(ctx context.Context, botID string) error
}

// CommandSender notifies an already-running worker. Delivery is best-effort.
type CommandSender interface {
	Send(ctx context.Context, botID, cmd string) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for bots and worker callbacks.
type Handlers struct {
	botSvc         BotService
	launcher       BotLauncher
	bus            CommandSender
	db             *gorm.DB // stats + idempotency persistence
	idempotencyTTL time.Duration
}

// New constructs a Handlers instance bound to the given collaborators.
func New(botSvc BotService, l BotLauncher, bus CommandSender, db *gorm.DB, idemTTL time.Duration) *Handlers {
	return &Handlers{botSvc: botSvc, launcher: l, bus: bus, db: db, idempotencyTTL: idemTTL}
}

// projectID extracts the project identity from the Gin context (set by
// upstream middleware), falling back to the "X-Project-ID" header and then
// to a development default.
func projectID(c *gin.Context) string {
	if v, ok := c.Get("projectID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Project-ID")); h != "" {
			return h
		}
	}
	return "demo-project"
}

//
// DTOs
//

// LeaveBotRequest optionally qualifies who initiated the leave.
type LeaveBotRequest struct {
	// SubType is one of user_requested, auto_leave_timeout,
	// platform_initiated. Defaults to user_requested.
	SubType string `json:"sub_type" example:"user_requested"`
}

// WorkerEventRequest is the payload workers post to report a transition.
type WorkerEventRequest struct {
	EventType string `json:"event_type" binding:"required" example:"joined_meeting"`
}

// BotResponse is a bot with its event history attached.
type BotResponse struct {
	*domain.Bot
	Events []domain.BotEvent `json:"events,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListBotsResponse wraps a page of bots and pagination information.
type ListBotsResponse struct {
	Bots       []domain.Bot `json:"bots"`
	Pagination Pagination   `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// failCreate translates creation errors into HTTP responses.
func failCreate(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, verr.Error())
	case errors.Is(err, services.ErrInsufficientCredits):
		fail(c, http.StatusPaymentRequired, ErrCodeInsufficientCredits, "insufficient credits to create a bot")
	case errors.Is(err, services.ErrMissingCredentials):
		fail(c, http.StatusBadRequest, ErrCodeMissingCredentials, "project has no credentials for this meeting platform")
	case errors.Is(err, services.ErrProjectNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "project not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
	}
}

//
// Handlers
//

// CreateBot godoc
// @ID          createBot
// @Summary     Create a meeting bot
// @Description Creates a bot for the current project, records JOIN_REQUESTED, and launches the worker.
// @Tags        Bots
// @Accept      json
// @Produce     json
//
// @Param       X-Project-ID     header  string  false "Project ID (demo header)"  example(proj123)
// @Param       Idempotency-Key  header  string  false "Dedup key for safe retries"
// @Param       body             body    services.CreateBotRequest  true  "Create bot payload"
//
// @Success     201  {object}  domain.Bot
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     402  {object}  handlers.ErrorResponse  "Insufficient credits"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /bots [post]
func (h *Handlers) CreateBot(c *gin.Context) {
	ctx := c.Request.Context()
	pid := projectID(c)

	// A replayed creation returns the previously created bot without
	// joining the meeting twice.
	if middleware.IsReplay(c) {
		if key, keyOK := middleware.GetIdempotencyKey(c); keyOK {
			rec, err := repo.GetIdempotency(ctx, h.db, pid, key, time.Now().UTC())
			if err == nil && rec != nil && rec.BotID != "" {
				if bot, err := repo.GetBot(ctx, h.db, rec.BotID); err == nil {
					ok(c, http.StatusOK, bot)
					return
				}
			}
		}
	}

	var req services.CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	bot, err := h.botSvc.Create(ctx, pid, req, services.SourceAPI)
	if err != nil {
		failCreate(c, err)
		return
	}

	if key, ok := middleware.GetIdempotencyKey(c); ok {
		// Best-effort: a failed record only disables replay for this key.
		if _, err := repo.CreateIdempotency(ctx, h.db, pid, key, bot.ID, http.StatusCreated, h.idempotencyTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record failed")
		}
	}

	// The bot exists and JOIN_REQUESTED is recorded regardless of launch
	// outcome; a failed launch is retried by the operator, not rolled back.
	if err := h.launcher.Launch(ctx, bot.ID); err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Str("bot_id", bot.ID).Msg("bot launch failed")
	}

	ok(c, http.StatusCreated, bot)
}

// ListBots godoc
// @ID          listBots
// @Summary     List bots (paginated)
// @Description Returns a page of the project's bots. Supports weak ETag via If-None-Match.
// @Tags        Bots
// @Produce     json
//
// @Param       X-Project-ID   header  string  false "Project ID (demo header)"    example(proj123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListBotsResponse
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /bots [get]
func (h *Handlers) ListBots(c *gin.Context) {
	ctx := c.Request.Context()
	pid := projectID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.db != nil {
		count, maxTS, err := repo.BotsStats(ctx, h.db, pid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"bots:%s:%d:%d"`, pid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.botSvc.ListPage(ctx, pid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListBotsResponse{
		Bots: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// GetBot godoc
// @ID          getBot
// @Summary     Fetch a bot with its event history
// @Tags        Bots
// @Produce     json
//
// @Param       X-Project-ID  header  string  false "Project ID (demo header)"  example(proj123)
// @Param       object_id     path    string  true  "Bot external id"           example(bot_a1B2c3D4e5F6g7H8)
//
// @Success     200  {object} handlers.BotResponse
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Router      /bots/{object_id} [get]
func (h *Handlers) GetBot(c *gin.Context) {
	bot, events, err := h.botSvc.Get(c.Request.Context(), projectID(c), c.Param("object_id"))
	if err != nil {
		if errors.Is(err, services.ErrBotNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "bot not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, BotResponse{Bot: bot, Events: events})
}

// LeaveBot godoc
// @ID          leaveBot
// @Summary     Ask a bot to leave its meeting
// @Description Records LEAVE_REQUESTED and notifies the live worker. The
// @Description notification is best-effort; the state transition is durable
// @Description even when the worker is unreachable.
// @Tags        Bots
// @Accept      json
// @Produce     json
//
// @Param       X-Project-ID  header  string  false "Project ID (demo header)"  example(proj123)
// @Param       object_id     path    string  true  "Bot external id"
// @Param       body          body    handlers.LeaveBotRequest  false  "Leave qualifier"
//
// @Success     200  {object} domain.Bot
// @Failure     404  {object} handlers.ErrorResponse "Bot not found"
// @Failure     409  {object} handlers.ErrorResponse "Illegal transition"
// @Router      /bots/{object_id}/leave [post]
func (h *Handlers) LeaveBot(c *gin.Context) {
	var req LeaveBotRequest
	// Body is optional.
	_ = c.ShouldBindJSON(&req)

	subType := domain.SubTypeLeaveUserRequested
	switch domain.BotEventSubType(req.SubType) {
	case "":
	case domain.SubTypeLeaveUserRequested, domain.SubTypeLeaveAutoTimeout, domain.SubTypeLeavePlatformInitiated:
		subType = domain.BotEventSubType(req.SubType)
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown leave sub_type")
		return
	}

	bot, err := h.botSvc.RequestLeave(c.Request.Context(), projectID(c), c.Param("object_id"), subType)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBotNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "bot not found")
		case errors.Is(err, services.ErrIllegalTransition):
			fail(c, http.StatusConflict, ErrCodeIllegalTransition, "bot state does not allow leaving")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	// Best-effort signal to the live worker, outside the event transaction.
	// The recorded transition stands even if nobody hears the message.
	if err := h.bus.Send(c.Request.Context(), bot.ID, "leave"); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("bot_id", bot.ID).Msg("leave command publish failed")
	}

	ok(c, http.StatusOK, bot)
}

// WorkerEvent handles worker-reported transitions (joined_meeting,
// left_meeting, fatal_error) on the internal callback route guarded by
// WorkerAuth. Workers address bots by external id.
func (h *Handlers) WorkerEvent(c *gin.Context) {
	var req WorkerEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "event_type required")
		return
	}

	bot, err := h.botSvc.RecordWorkerEvent(c.Request.Context(), c.Param("object_id"), domain.BotEventType(req.EventType))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBotNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "bot not found")
		case errors.Is(err, services.ErrIllegalTransition):
			fail(c, http.StatusConflict, ErrCodeIllegalTransition, "bot state does not allow this event")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, bot)
}
