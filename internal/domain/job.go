package domain

// JobState enumerates the statuses the remote service reports for a sub-job.
type JobState string

const (
	JobQueued     JobState = "Queued"
	JobProcessing JobState = "Processing"
	JobDone       JobState = "Done"
	JobFailed     JobState = "Failed"
)

// JobStatus is one entry of the service's job list for a submission.
type JobStatus struct {
	UUID   string   `json:"uuid"`
	Status JobState `json:"status"`
}

// SubmissionResult carries the identifiers returned by a successful submit.
type SubmissionResult struct {
	TaskUUID        string `json:"uuid"`
	SubscriptionKey string `json:"subscription_key"`
}

// Phase is the single derived status of all sub-jobs of a submission.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseRunning    Phase = "running"
	PhaseAllDone    Phase = "all_done"
	PhaseAnyFailed  Phase = "any_failed"
)

// AggregateState is derived from a job list and never stored.
type AggregateState struct {
	Phase     Phase `json:"phase"`
	Completed int   `json:"completed"`
	Total     int   `json:"total"`
}

// Terminal reports whether polling must stop for this phase.
func (a AggregateState) Terminal() bool {
	return a.Phase == PhaseAllDone || a.Phase == PhaseAnyFailed
}
