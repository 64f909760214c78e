package jobs

import "rodinstudio/internal/domain"

// Aggregate reduces sub-job statuses to one phase and a progress counter.
//
// Once jobs exist the submission itself counts as one completed unit, so a
// single running job reports 1/2. This is a display convention only.
func Aggregate(list []domain.JobStatus) domain.AggregateState {
	if len(list) == 0 {
		return domain.AggregateState{Phase: domain.PhaseNotStarted}
	}
	done := 0
	failed := false
	for _, j := range list {
		switch j.Status {
		case domain.JobDone:
			done++
		case domain.JobFailed:
			failed = true
		}
	}
	state := domain.AggregateState{
		Completed: done + 1,
		Total:     len(list) + 1,
	}
	switch {
	case failed:
		state.Phase = domain.PhaseAnyFailed
	case done == len(list):
		state.Phase = domain.PhaseAllDone
	default:
		state.Phase = domain.PhaseRunning
	}
	return state
}

// Percent is the completed share in [0, 100]; 0 when nothing is known yet.
func Percent(s domain.AggregateState) float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}
