package launcher

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-meetbot-backend/internal/provision"
)

type stubProvisioner struct {
	result provision.Result
	calls  int
	lastID string
}

func (s *stubProvisioner) Provision(_ context.Context, botID, _ string) provision.Result {
	s.calls++
	s.lastID = botID
	return s.result
}

type stubQueue struct {
	err    error
	calls  int
	lastID string
}

func (s *stubQueue) EnqueueRun(_ context.Context, botID string) error {
	s.calls++
	s.lastID = botID
	return s.err
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("isolated-compute"); err != nil || m != ModeIsolatedCompute {
		t.Fatalf("ParseMode = (%s, %v)", m, err)
	}
	if m, err := ParseMode("shared-queue"); err != nil || m != ModeSharedQueue {
		t.Fatalf("ParseMode = (%s, %v)", m, err)
	}
	if _, err := ParseMode("bare-metal"); err == nil {
		t.Fatal("unknown mode accepted")
	}
}

func TestNew_RequiresModeCollaborator(t *testing.T) {
	if _, err := New(ModeIsolatedCompute, nil, &stubQueue{}); err == nil {
		t.Fatal("isolated-compute without provisioner accepted")
	}
	if _, err := New(ModeSharedQueue, &stubProvisioner{}, nil); err == nil {
		t.Fatal("shared-queue without queue accepted")
	}
	if _, err := New(Mode("bogus"), &stubProvisioner{}, &stubQueue{}); err == nil {
		t.Fatal("bogus mode accepted")
	}
}

func TestLaunch_IsolatedCompute(t *testing.T) {
	prov := &stubProvisioner{result: provision.Result{Name: "bot-42-cafe0123", Created: true}}
	l, err := New(ModeIsolatedCompute, prov, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := l.Launch(context.Background(), "42"); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if prov.calls != 1 || prov.lastID != "42" {
		t.Fatalf("provisioner calls=%d lastID=%q", prov.calls, prov.lastID)
	}
}

func TestLaunch_IsolatedDuplicateIsSuccess(t *testing.T) {
	prov := &stubProvisioner{result: provision.Result{Name: "bot-42-cafe0123", Created: false}}
	l, err := New(ModeIsolatedCompute, prov, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Launch(context.Background(), "42"); err != nil {
		t.Fatalf("duplicate launch treated as failure: %v", err)
	}
}

func TestLaunch_IsolatedFailureSurfaced(t *testing.T) {
	prov := &stubProvisioner{result: provision.Result{Name: "bot-42-cafe0123", Err: "quota exceeded"}}
	l, err := New(ModeIsolatedCompute, prov, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Launch(context.Background(), "42"); !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("err = %v; want ErrLaunchFailed", err)
	}
	// The launcher must not retry on its own.
	if prov.calls != 1 {
		t.Fatalf("provision calls = %d; want 1", prov.calls)
	}
}

func TestLaunch_SharedQueue(t *testing.T) {
	q := &stubQueue{}
	l, err := New(ModeSharedQueue, nil, q)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := l.Launch(context.Background(), "abc"); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if q.calls != 1 || q.lastID != "abc" {
		t.Fatalf("queue calls=%d lastID=%q", q.calls, q.lastID)
	}

	q.err = errors.New("redis gone")
	if err := l.Launch(context.Background(), "abc"); !errors.Is(err, ErrLaunchFailed) {
		t.Fatalf("err = %v; want ErrLaunchFailed", err)
	}
}
