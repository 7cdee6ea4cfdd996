package application

import (
	"context"

	"github.com/hirewire/pipeline-go/domain/rule"
)

// InterviewScheduler is the interview booking collaborator.
type InterviewScheduler interface {
	// ScheduleInterview asks the collaborator to book a slot.
	ScheduleInterview(ctx context.Context, candidateID string, req rule.ScheduleInterviewAction) error
}

// NoteAppender is the candidate record collaborator for notes.
type NoteAppender interface {
	// AppendNote adds a note to the candidate's record.
	AppendNote(ctx context.Context, candidateID, text, author string) error
}

// JobAssigner links candidates to job openings.
type JobAssigner interface {
	// AssignJob associates the candidate with a job.
	AssignJob(ctx context.Context, candidateID, jobID string) error
}

// SnapshotInvalidator drops cached candidate snapshots after a status
// transition. Implemented by the redis snapshot cache; nil when no
// cache is configured.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, candidateID string) error
}
