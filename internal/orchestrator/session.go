// Package orchestrator drives one generation lifecycle per session: submit,
// poll the job list, resolve the artifact, and expose the result to observers.
package orchestrator

import (
	"context"
	"net/url"
	"sync"
	"time"

	"rodinstudio/internal/domain"
	"rodinstudio/internal/estimate"
	"rodinstudio/internal/i18n"
	"rodinstudio/internal/infra"
	"rodinstudio/internal/jobs"
	"rodinstudio/internal/metrics"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultProxyPath    = "/api/proxy-download"
)

// Transport is the upstream surface a session needs.
type Transport interface {
	Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error)
	CheckStatus(ctx context.Context, subscriptionKey string) ([]domain.JobStatus, error)
	ResolveDownload(ctx context.Context, taskUUID string) (domain.ResolvedArtifact, error)
}

// Config tunes session behavior.
type Config struct {
	PollInterval        time.Duration
	MaxPollDuration     time.Duration
	PlaceholderModelURL string
	ProxyPath           string
	Locale              string
}

// Deps are shared by every session of a Manager.
type Deps struct {
	Transport Transport
	Clock     Clock
	Estimator *estimate.Estimator
	Config    Config
	Logger    *infra.Logger
	Metrics   *metrics.Collector
}

func (d *Deps) normalize() {
	if d.Logger == nil {
		d.Logger = infra.NopLogger()
	}
	if d.Clock == nil {
		d.Clock = RealClock()
	}
	if d.Estimator == nil {
		d.Estimator = estimate.New()
	}
	if d.Config.PollInterval <= 0 {
		d.Config.PollInterval = DefaultPollInterval
	}
	if d.Config.ProxyPath == "" {
		d.Config.ProxyPath = DefaultProxyPath
	}
	if d.Config.Locale == "" {
		d.Config.Locale = i18n.LocaleEnglish
	}
}

// Session owns one user's generation state. All writes from a lifecycle go
// through commit, which drops writes from superseded epochs.
type Session struct {
	id   string
	deps Deps
	log  infra.Logger

	root       context.Context
	cancelRoot context.CancelFunc

	mu      sync.Mutex
	epoch   uint64
	cancel  context.CancelFunc
	locale  string
	st      sessionState
	subs    map[int]chan Snapshot
	nextSub int
	closed  bool
}

// NewSession creates an idle session.
func NewSession(id string, deps Deps) *Session {
	deps.normalize()
	root, cancel := context.WithCancel(context.Background())
	return &Session{
		id:         id,
		deps:       deps,
		log:        deps.Logger.With().Str("session_id", id).Logger(),
		root:       root,
		cancelRoot: cancel,
		locale:     deps.Config.Locale,
		st:         idleState(deps.Config.PlaceholderModelURL, deps.Clock.Now()),
		subs:       map[int]chan Snapshot{},
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Submit validates sub and, when valid, starts a new lifecycle that supersedes
// any running one. A validation error leaves the session untouched. The
// returned epoch identifies the new lifecycle.
func (s *Session) Submit(sub domain.Submission, locale string) (uint64, error) {
	sub.Options.Normalize()
	sub.Options.MeshMode = "Quad"
	sub.Options.MeshSimplify = true
	sub.Options.MeshSmooth = true
	if err := sub.Validate(); err != nil {
		return 0, err
	}

	est := s.deps.Estimator.Seconds(estimate.Params{
		Quality:    sub.Options.Quality,
		Tier:       sub.Options.Tier,
		UseHyper:   sub.Options.UseHyper,
		ImageCount: len(sub.Images),
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, context.Canceled
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.epoch++
	epoch := s.epoch
	ctx, cancel := context.WithCancel(s.root)
	s.cancel = cancel
	if locale != "" {
		s.locale = locale
	}
	now := s.deps.Clock.Now()
	s.st = sessionState{
		state:     StateSubmitting,
		loading:   true,
		agg:       domain.AggregateState{Phase: domain.PhaseNotStarted},
		estimate:  est,
		startedAt: now,
		updatedAt: now,
	}
	s.publishLocked()
	s.mu.Unlock()

	s.log.Info().
		Uint64("epoch", epoch).
		Int("images", len(sub.Images)).
		Str("quality", sub.Options.Quality).
		Int("estimate_seconds", est).
		Msg("generation submitted")

	go s.run(ctx, epoch, sub)
	return epoch, nil
}

// Reset abandons any lifecycle and restores idle defaults. Safe in every state.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.abandonLocked()
	s.publishLocked()
}

// abandonLocked cancels the running lifecycle and restores idle state
// without notifying subscribers.
func (s *Session) abandonLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.epoch++
	s.st = idleState(s.deps.Config.PlaceholderModelURL, s.deps.Clock.Now())
}

// Close abandons the lifecycle and closes every subscription without a final
// snapshot, so subscribers observe only the channel close. Further submits fail.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.abandonLocked()
	s.closed = true
	s.cancelRoot()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Epoch returns the current lifecycle token.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Snapshot returns the current observable state in the session's locale.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.locale)
}

// SnapshotFor returns the current state with errors localized to locale.
func (s *Session) SnapshotFor(locale string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(locale)
}

// Subscribe returns a channel that receives the current snapshot and every
// later change. Slow readers only ever see the latest snapshot. The returned
// func unsubscribes.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked(s.locale)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
		})
	}
}

// commit applies mutate when epoch is still current and reports whether it did.
func (s *Session) commit(epoch uint64, mutate func(st *sessionState)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch || s.closed {
		return false
	}
	mutate(&s.st)
	s.st.updatedAt = s.deps.Clock.Now()
	s.publishLocked()
	return true
}

func (s *Session) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return epoch == s.epoch && !s.closed
}

func (s *Session) publishLocked() {
	snap := s.snapshotLocked(s.locale)
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked(locale string) Snapshot {
	st := s.st
	snap := Snapshot{
		ID:                   s.id,
		State:                st.state,
		Epoch:                s.epoch,
		IsLoading:            st.loading,
		IsPolling:            st.polling,
		ModelURL:             st.modelURL,
		DownloadURL:          st.downloadURL,
		IsDefaultModel:       st.isDefault,
		JobStatuses:          append([]domain.JobStatus(nil), st.jobs...),
		EstimatedTimeSeconds: st.estimate,
		TaskUUID:             st.taskUUID,
		Files:                append([]domain.ArtifactFile(nil), st.files...),
		UpdatedAt:            st.updatedAt,
		Progress: Progress{
			Completed:     st.agg.Completed,
			Total:         st.agg.Total,
			Percent:       jobs.Percent(st.agg),
			Indeterminate: len(st.jobs) == 0,
		},
	}
	if st.err != nil {
		ue := i18n.UserError(locale, st.err)
		snap.Error = &ue
	}
	if !st.startedAt.IsZero() {
		started := st.startedAt
		snap.StartedAt = &started
	}
	if !st.finishedAt.IsZero() {
		finished := st.finishedAt
		snap.FinishedAt = &finished
	}
	if st.loading && !st.startedAt.IsZero() {
		snap.ElapsedTimeSeconds = int(s.deps.Clock.Now().Sub(st.startedAt) / time.Second)
	}
	return snap
}

// proxied rewrites an artifact URL to go through the download proxy.
func (s *Session) proxied(raw string) string {
	return s.deps.Config.ProxyPath + "?url=" + url.QueryEscape(raw)
}
