package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"rodinstudio/internal/domain"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		jobs []domain.JobStatus
		want domain.AggregateState
	}{
		{
			name: "empty list is not started",
			want: domain.AggregateState{Phase: domain.PhaseNotStarted},
		},
		{
			name: "single processing job",
			jobs: []domain.JobStatus{{UUID: "j1", Status: domain.JobProcessing}},
			want: domain.AggregateState{Phase: domain.PhaseRunning, Completed: 1, Total: 2},
		},
		{
			name: "queued and done",
			jobs: []domain.JobStatus{{UUID: "j1", Status: domain.JobQueued}, {UUID: "j2", Status: domain.JobDone}},
			want: domain.AggregateState{Phase: domain.PhaseRunning, Completed: 2, Total: 3},
		},
		{
			name: "all done",
			jobs: []domain.JobStatus{{UUID: "j1", Status: domain.JobDone}, {UUID: "j2", Status: domain.JobDone}},
			want: domain.AggregateState{Phase: domain.PhaseAllDone, Completed: 3, Total: 3},
		},
		{
			name: "failure wins over done",
			jobs: []domain.JobStatus{{UUID: "j1", Status: domain.JobDone}, {UUID: "j2", Status: domain.JobFailed}},
			want: domain.AggregateState{Phase: domain.PhaseAnyFailed, Completed: 2, Total: 3},
		},
		{
			name: "unknown status keeps running",
			jobs: []domain.JobStatus{{UUID: "j1", Status: "Waiting"}},
			want: domain.AggregateState{Phase: domain.PhaseRunning, Completed: 1, Total: 2},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Aggregate(tc.jobs))
		})
	}
}

var jobStates = []domain.JobState{domain.JobQueued, domain.JobProcessing, domain.JobDone, domain.JobFailed}

func jobListGen() *rapid.Generator[[]domain.JobStatus] {
	return rapid.SliceOfN(rapid.Custom(func(t *rapid.T) domain.JobStatus {
		return domain.JobStatus{
			UUID:   rapid.StringMatching(`[a-z0-9]{4}`).Draw(t, "uuid"),
			Status: rapid.SampledFrom(jobStates).Draw(t, "status"),
		}
	}), 0, 12)
}

func TestAggregateAnyFailedProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		list := jobListGen().Draw(rt, "jobs")
		pos := rapid.IntRange(0, len(list)).Draw(rt, "pos")
		list = append(list[:pos:pos], append([]domain.JobStatus{{UUID: "bad", Status: domain.JobFailed}}, list[pos:]...)...)

		got := Aggregate(list)
		if got.Phase != domain.PhaseAnyFailed {
			rt.Fatalf("phase = %s, want any_failed for %v", got.Phase, list)
		}
	})
}

func TestAggregateAllDoneProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")
		list := make([]domain.JobStatus, n)
		for i := range list {
			list[i] = domain.JobStatus{UUID: "j", Status: domain.JobDone}
		}
		got := Aggregate(list)
		if got.Phase != domain.PhaseAllDone || got.Completed != got.Total || got.Total != n+1 {
			rt.Fatalf("unexpected aggregate %+v for %d done jobs", got, n)
		}
	})
}

func TestAggregateCountersProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		list := jobListGen().Draw(rt, "jobs")
		got := Aggregate(list)
		if len(list) == 0 {
			if got.Total != 0 || got.Completed != 0 || got.Phase != domain.PhaseNotStarted {
				rt.Fatalf("empty list aggregate = %+v", got)
			}
			return
		}
		if got.Completed < 1 || got.Completed > got.Total {
			rt.Fatalf("completed %d outside [1, %d]", got.Completed, got.Total)
		}
	})
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(domain.AggregateState{}))
	assert.InDelta(t, 50.0, Percent(domain.AggregateState{Completed: 1, Total: 2}), 1e-9)
}
