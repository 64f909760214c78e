package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rodinstudio/internal/domain"
	"rodinstudio/internal/jobs"
)

// run executes one lifecycle for epoch. Every state write is epoch-checked, so
// a superseded run exits silently at its next commit.
func (s *Session) run(ctx context.Context, epoch uint64, sub domain.Submission) {
	res, err := s.deps.Transport.Submit(ctx, sub)
	if err != nil {
		s.fail(epoch, err)
		return
	}
	ok := s.commit(epoch, func(st *sessionState) {
		st.state = StatePolling
		st.polling = true
		st.taskUUID = res.TaskUUID
	})
	if !ok {
		return
	}
	s.log.Debug().Uint64("epoch", epoch).Str("task_uuid", res.TaskUUID).Msg("polling started")
	s.poll(ctx, epoch, res, sub.Options.Extension())
}

// poll checks job status strictly sequentially: a new check is only issued
// after the previous one returned and the interval elapsed.
func (s *Session) poll(ctx context.Context, epoch uint64, res domain.SubmissionResult, ext string) {
	var deadline <-chan time.Time
	if limit := s.deps.Config.MaxPollDuration; limit > 0 {
		deadline = s.deps.Clock.After(limit)
	}

	for {
		s.deps.Metrics.PollCheck()
		list, err := s.deps.Transport.CheckStatus(ctx, res.SubscriptionKey)
		if !s.current(epoch) {
			return
		}
		if err != nil {
			s.fail(epoch, err)
			return
		}

		agg := jobs.Aggregate(list)
		switch agg.Phase {
		case domain.PhaseAnyFailed:
			s.commit(epoch, func(st *sessionState) {
				st.jobs = list
				st.agg = agg
			})
			s.fail(epoch, &domain.Error{
				Kind:   domain.KindGenerationFailed,
				Op:     "status",
				Detail: describeJobs(list),
				Err:    fmt.Errorf("%d of %d jobs failed", countFailed(list), len(list)),
			})
			return
		case domain.PhaseAllDone:
			ok := s.commit(epoch, func(st *sessionState) {
				st.jobs = list
				st.agg = agg
				st.polling = false
				st.state = StateResolving
			})
			if ok {
				s.resolve(ctx, epoch, res.TaskUUID, ext)
			}
			return
		}

		ok := s.commit(epoch, func(st *sessionState) {
			st.jobs = list
			st.agg = agg
		})
		if !ok {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-deadline:
			s.fail(epoch, &domain.Error{
				Kind: domain.KindTimeout,
				Op:   "status",
				Err:  fmt.Errorf("%w after %s", domain.ErrPollTimeout, s.deps.Config.MaxPollDuration),
			})
			return
		case <-s.deps.Clock.After(s.deps.Config.PollInterval):
		}
	}
}

func (s *Session) resolve(ctx context.Context, epoch uint64, taskUUID, ext string) {
	art, err := s.deps.Transport.ResolveDownload(ctx, taskUUID)
	if !s.current(epoch) {
		return
	}
	if err != nil {
		s.fail(epoch, err)
		return
	}
	file, found := art.Select(ext)
	if !found {
		s.fail(epoch, domain.Resolution(describeFiles(art.Files), fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, ext)))
		return
	}

	var started time.Time
	ok := s.commit(epoch, func(st *sessionState) {
		st.state = StateReady
		st.loading = false
		st.polling = false
		st.modelURL = s.proxied(file.URL)
		st.downloadURL = file.URL
		st.isDefault = false
		st.files = art.Files
		st.finishedAt = s.deps.Clock.Now()
		started = st.startedAt
	})
	if !ok {
		return
	}
	s.deps.Metrics.JobFinished(string(StateReady), s.deps.Clock.Now().Sub(started))
	s.log.Info().Uint64("epoch", epoch).Str("task_uuid", taskUUID).Str("file", file.Name).Msg("generation ready")
}

// fail moves the lifecycle to Failed. Raw upstream detail goes to the log only.
func (s *Session) fail(epoch uint64, err error) {
	var started time.Time
	ok := s.commit(epoch, func(st *sessionState) {
		st.state = StateFailed
		st.loading = false
		st.polling = false
		st.err = err
		st.finishedAt = s.deps.Clock.Now()
		started = st.startedAt
	})
	if !ok {
		return
	}
	kind := domain.KindOf(err)
	s.deps.Metrics.JobFinished(string(kind), s.deps.Clock.Now().Sub(started))
	s.log.Warn().
		Err(err).
		Uint64("epoch", epoch).
		Str("kind", string(kind)).
		Str("detail", domain.DetailOf(err)).
		Msg("generation failed")
}

func describeJobs(list []domain.JobStatus) string {
	parts := make([]string, 0, len(list))
	for _, j := range list {
		parts = append(parts, j.UUID+"="+string(j.Status))
	}
	return strings.Join(parts, ",")
}

func describeFiles(files []domain.ArtifactFile) string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return strings.Join(names, ",")
}

func countFailed(list []domain.JobStatus) int {
	n := 0
	for _, j := range list {
		if j.Status == domain.JobFailed {
			n++
		}
	}
	return n
}
