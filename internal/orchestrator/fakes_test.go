package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rodinstudio/internal/domain"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []clockWaiter
}

type clockWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, clockWaiter{at: c.now.Add(d), ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	kept := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
			continue
		}
		kept = append(kept, w)
	}
	c.waiters = kept
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// blockUntil waits for n timers to be armed, so an Advance cannot race ahead
// of the goroutine that arms them.
func (c *fakeClock) blockUntil(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return c.pending() >= n }, 2*time.Second, time.Millisecond,
		"expected %d pending timers, have %d", n, c.pending())
}

type fakeTransport struct {
	mu           sync.Mutex
	submitFn     func(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error)
	statusFn     func(ctx context.Context, call int) ([]domain.JobStatus, error)
	statuses     [][]domain.JobStatus
	resolveFn    func(ctx context.Context, taskUUID string) (domain.ResolvedArtifact, error)
	submits      []domain.Submission
	statusCalls  int
	resolveCalls int
}

func (f *fakeTransport) Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	f.mu.Lock()
	f.submits = append(f.submits, sub)
	fn := f.submitFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, sub)
	}
	return domain.SubmissionResult{TaskUUID: "u1", SubscriptionKey: "sk1"}, nil
}

func (f *fakeTransport) CheckStatus(ctx context.Context, key string) ([]domain.JobStatus, error) {
	f.mu.Lock()
	call := f.statusCalls
	f.statusCalls++
	fn := f.statusFn
	var list []domain.JobStatus
	if len(f.statuses) > 0 {
		idx := call
		if idx >= len(f.statuses) {
			idx = len(f.statuses) - 1
		}
		list = f.statuses[idx]
	}
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, call)
	}
	return list, nil
}

func (f *fakeTransport) ResolveDownload(ctx context.Context, taskUUID string) (domain.ResolvedArtifact, error) {
	f.mu.Lock()
	f.resolveCalls++
	fn := f.resolveFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, taskUUID)
	}
	return domain.ResolvedArtifact{Files: []domain.ArtifactFile{{Name: "model.glb", URL: "https://x/model.glb"}}}, nil
}

func (f *fakeTransport) counts() (submits, statuses, resolves int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits), f.statusCalls, f.resolveCalls
}

func jobsOf(states ...domain.JobState) []domain.JobStatus {
	out := make([]domain.JobStatus, len(states))
	for i, st := range states {
		out[i] = domain.JobStatus{UUID: string(rune('a' + i)), Status: st}
	}
	return out
}

func newTestSession(t *testing.T, tr *fakeTransport, clock *fakeClock, cfg Config) *Session {
	t.Helper()
	s := NewSession("s-1", Deps{
		Transport: tr,
		Clock:     clock,
		Config:    cfg,
	})
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, s *Session, what string, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = s.Snapshot()
		return pred(snap)
	}, 2*time.Second, time.Millisecond, "waiting for %s", what)
	return snap
}

func prompt(text string) domain.Submission {
	return domain.Submission{Prompt: text}
}
