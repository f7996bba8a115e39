package handshake

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/consentgate/internal/cache"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/store/memory"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, actionURL, bearerToken string) (*RetryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, actionURL)
	if f.err != nil {
		return nil, f.err
	}
	return &RetryResult{StatusCode: 200, Body: `{"ok":true}`}, nil
}

func newService(t *testing.T, ttl time.Duration, d Dispatcher) (*Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()

	st := memory.New()
	if _, err := st.Create(ctx, "frontend-app"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	banking, err := st.Create(ctx, "banking-api")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.AddCapability(ctx, banking.ID, "withdraw"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := New(Config{
		TTL:          ttl,
		ConsentUIURL: "http://ui.local/consent",
		CallbackURL:  "http://api.local/api/v1/consent/callback",
	}, cache.NewMemory("test"), st, d)
	return svc, st
}

func withdrawTuple(user string) repository.ConsentTuple {
	return repository.ConsentTuple{
		UserID:             user,
		RequestingAppName:  "frontend-app",
		DestinationAppName: "banking-api",
		Capability:         "withdraw",
	}
}

func TestIssueBuildsConsentURL(t *testing.T) {
	svc, _ := newService(t, time.Minute, nil)

	ch, err := svc.Issue(context.Background(), withdrawTuple("u1"), "tok", "http://banking.local/withdraw")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ch.State == "" {
		t.Fatal("state is empty")
	}

	u, err := url.Parse(ch.ConsentURL)
	if err != nil {
		t.Fatalf("consent url: %v", err)
	}
	q := u.Query()
	if q.Get("requesting_app") != "frontend-app" ||
		q.Get("destination_app") != "banking-api" ||
		q.Get("capability") != "withdraw" {
		t.Fatalf("consent url missing tuple params: %s", ch.ConsentURL)
	}
	if q.Get("state") != ch.State {
		t.Fatal("consent url state mismatch")
	}
	if q.Get("callback_url") == "" {
		t.Fatal("consent url missing callback_url")
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	svc, _ := newService(t, time.Minute, nil)
	ctx := context.Background()

	ch, err := svc.Issue(ctx, withdrawTuple("u1"), "tok", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for i := 0; i < 2; i++ {
		info, err := svc.Peek(ctx, ch.State)
		if err != nil {
			t.Fatalf("peek %d: %v", i, err)
		}
		if info.Capability != "withdraw" {
			t.Fatalf("peek capability = %s", info.Capability)
		}
	}
}

func TestCompleteGrantsAndDispatchesOnce(t *testing.T) {
	disp := &fakeDispatcher{}
	svc, st := newService(t, time.Minute, disp)
	ctx := context.Background()

	ch, err := svc.Issue(ctx, withdrawTuple("u1"), "tok", "http://banking.local/withdraw")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	out, err := svc.Complete(ctx, ch.State, true, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !out.Granted {
		t.Fatal("want granted")
	}
	if out.Retry == nil || !out.Retry.Dispatched || out.Retry.StatusCode != 200 {
		t.Fatalf("retry = %+v", out.Retry)
	}
	if len(disp.calls) != 1 || disp.calls[0] != "http://banking.local/withdraw" {
		t.Fatalf("dispatch calls = %v", disp.calls)
	}

	ok, err := st.IsGranted(ctx, withdrawTuple("u1"))
	if err != nil || !ok {
		t.Fatalf("grant not persisted: ok=%v err=%v", ok, err)
	}
}

func TestCompleteReplayFails(t *testing.T) {
	svc, _ := newService(t, time.Minute, nil)
	ctx := context.Background()

	ch, err := svc.Issue(ctx, withdrawTuple("u1"), "tok", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.Complete(ctx, ch.State, true, ""); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if _, err := svc.Complete(ctx, ch.State, true, ""); !errors.Is(err, ErrInvalidCallback) {
		t.Fatalf("replay must fail with ErrInvalidCallback, got %v", err)
	}
}

func TestCompleteDenialConsumesState(t *testing.T) {
	disp := &fakeDispatcher{}
	svc, st := newService(t, time.Minute, disp)
	ctx := context.Background()

	ch, err := svc.Issue(ctx, withdrawTuple("u1"), "tok", "http://banking.local/withdraw")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	out, err := svc.Complete(ctx, ch.State, false, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.Granted {
		t.Fatal("want denial")
	}
	if out.Retry != nil {
		t.Fatal("denial must not dispatch a retry")
	}
	if len(disp.calls) != 0 {
		t.Fatalf("dispatch calls = %v", disp.calls)
	}

	if ok, _ := st.IsGranted(ctx, withdrawTuple("u1")); ok {
		t.Fatal("denial must not grant")
	}

	// A denied state is just as dead as a granted one.
	if _, err := svc.Complete(ctx, ch.State, true, ""); !errors.Is(err, ErrInvalidCallback) {
		t.Fatalf("state must be consumed on denial, got %v", err)
	}
}

func TestCompleteExpiredState(t *testing.T) {
	svc, _ := newService(t, 10*time.Millisecond, nil)
	ctx := context.Background()

	ch, err := svc.Issue(ctx, withdrawTuple("u1"), "tok", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if _, err := svc.Complete(ctx, ch.State, true, ""); !errors.Is(err, ErrInvalidCallback) {
		t.Fatalf("expired state must fail, got %v", err)
	}
}

func TestCompleteUnknownState(t *testing.T) {
	svc, _ := newService(t, time.Minute, nil)

	if _, err := svc.Complete(context.Background(), "forged-state", true, ""); !errors.Is(err, ErrInvalidCallback) {
		t.Fatalf("forged state must fail, got %v", err)
	}
	if _, err := svc.Complete(context.Background(), "", true, ""); !errors.Is(err, ErrInvalidCallback) {
		t.Fatalf("empty state must fail, got %v", err)
	}
}

func TestCompleteSubjectMismatch(t *testing.T) {
	svc, st := newService(t, time.Minute, nil)
	ctx := context.Background()

	ch, err := svc.Issue(ctx, withdrawTuple("u1"), "tok", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.Complete(ctx, ch.State, true, "u2"); !errors.Is(err, ErrInvalidCallback) {
		t.Fatalf("want ErrInvalidCallback, got %v", err)
	}
	if ok, _ := st.IsGranted(ctx, withdrawTuple("u1")); ok {
		t.Fatal("mismatched callback must not grant")
	}
}

func TestCompleteRetryFailureIsReported(t *testing.T) {
	disp := &fakeDispatcher{err: errors.New("connection refused")}
	svc, _ := newService(t, time.Minute, disp)
	ctx := context.Background()

	ch, err := svc.Issue(ctx, withdrawTuple("u1"), "tok", "http://banking.local/withdraw")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	out, err := svc.Complete(ctx, ch.State, true, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !out.Granted {
		t.Fatal("grant must survive a failed retry")
	}
	if out.Retry == nil || out.Retry.Error == "" {
		t.Fatalf("retry failure not reported: %+v", out.Retry)
	}
	if len(disp.calls) != 1 {
		t.Fatalf("failed retry must not be re-dispatched, calls = %v", disp.calls)
	}
}
