package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meetbot-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newBotDB(t *testing.T) (*gorm.DB, *domain.Project) {
	t.Helper()
	db := newRepoDB(t, &domain.Project{}, &domain.Bot{}, &domain.BotEvent{})
	p, err := CreateProject(context.Background(), db, "test project", 10)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return db, p
}

func TestNewBotObjectID_Format(t *testing.T) {
	re := regexp.MustCompile(`^bot_[A-Za-z0-9-]{16}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := NewBotObjectID()
		if !re.MatchString(id) {
			t.Fatalf("unexpected object id format: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate object id generated: %q", id)
		}
		seen[id] = true
	}
}

func TestCreateBot_PersistsAndDefaults(t *testing.T) {
	db, p := newBotDB(t)

	bot, err := CreateBot(context.Background(), db, p.ID, "https://zoom.us/j/123", "Notetaker",
		domain.BotSettings{}, map[string]any{"team": "sales"})
	if err != nil {
		t.Fatalf("CreateBot: %v", err)
	}
	if bot.ID == "" || bot.ObjectID == "" {
		t.Fatalf("missing identifiers: %+v", bot)
	}
	if bot.State != domain.StateReady {
		t.Fatalf("initial state = %s; want %s", bot.State, domain.StateReady)
	}

	got, err := GetBotByObjectID(context.Background(), db, bot.ObjectID, p.ID)
	if err != nil {
		t.Fatalf("GetBotByObjectID: %v", err)
	}
	if got.MeetingURL != "https://zoom.us/j/123" || got.Metadata["team"] != "sales" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestGetBotByObjectID_WrongProject(t *testing.T) {
	db, p := newBotDB(t)
	other, err := CreateProject(context.Background(), db, "other", 0)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	bot, err := CreateBot(context.Background(), db, p.ID, "https://meet.google.com/abc", "b", domain.BotSettings{}, nil)
	if err != nil {
		t.Fatalf("CreateBot: %v", err)
	}
	if _, err := GetBotByObjectID(context.Background(), db, bot.ObjectID, other.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound across projects, got %v", err)
	}
}

func TestTransitionBotState_CAS(t *testing.T) {
	db, p := newBotDB(t)
	ctx := context.Background()

	bot, err := CreateBot(ctx, db, p.ID, "https://zoom.us/j/1", "b", domain.BotSettings{}, nil)
	if err != nil {
		t.Fatalf("CreateBot: %v", err)
	}

	ok, err := TransitionBotState(ctx, db, bot.ID, []domain.BotState{domain.StateReady}, domain.StateJoining)
	if err != nil || !ok {
		t.Fatalf("first transition: ok=%v err=%v", ok, err)
	}

	// Same guard again: state is now joining, CAS must not match.
	ok, err = TransitionBotState(ctx, db, bot.ID, []domain.BotState{domain.StateReady}, domain.StateJoining)
	if err != nil {
		t.Fatalf("second transition err: %v", err)
	}
	if ok {
		t.Fatal("CAS matched from stale state")
	}

	got, err := GetBot(ctx, db, bot.ID)
	if err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if got.State != domain.StateJoining {
		t.Fatalf("state = %s; want joining", got.State)
	}
}

func TestListBotsPage_OrderAndCount(t *testing.T) {
	db, p := newBotDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := CreateBot(ctx, db, p.ID, fmt.Sprintf("https://zoom.us/j/%d", i), "b", domain.BotSettings{}, nil); err != nil {
			t.Fatalf("CreateBot: %v", err)
		}
	}

	total, err := CountBots(ctx, db, p.ID)
	if err != nil || total != 3 {
		t.Fatalf("CountBots = (%d, %v); want 3", total, err)
	}

	page, err := ListBotsPage(ctx, db, p.ID, 0, 2)
	if err != nil {
		t.Fatalf("ListBotsPage: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d; want 2", len(page))
	}
}
