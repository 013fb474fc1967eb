package models

import "time"

// UnitStatus is the lifecycle status of a project or a batch video slot.
type UnitStatus string

const (
	UnitStatusDraft             UnitStatus = "draft"
	UnitStatusAwaitingEditor    UnitStatus = "awaiting_editor"
	UnitStatusInProgress        UnitStatus = "in_progress"
	UnitStatusInReview          UnitStatus = "in_review"
	UnitStatusRevisionRequested UnitStatus = "revision_requested"
	UnitStatusPendingApproval   UnitStatus = "pending_approval"
	UnitStatusCompleted         UnitStatus = "completed"
	UnitStatusCancelled         UnitStatus = "cancelled"
)

// UnitStatuses lists every status a unit of work can hold.
var UnitStatuses = []UnitStatus{
	UnitStatusDraft,
	UnitStatusAwaitingEditor,
	UnitStatusInProgress,
	UnitStatusInReview,
	UnitStatusRevisionRequested,
	UnitStatusPendingApproval,
	UnitStatusCompleted,
	UnitStatusCancelled,
}

// InitialRevisionCount is the revision counter of a unit that has never
// been sent back. Each paid revision adds one.
const InitialRevisionCount = 1

// UnitKind distinguishes single-video projects from batch slots.
type UnitKind string

const (
	UnitKindProject    UnitKind = "project"
	UnitKindBatchVideo UnitKind = "batch_video"
)

// Project is an engagement between a creator and an editor. Batch projects
// only carry a coarse status; each BatchVideo tracks its own lifecycle.
type Project struct {
	ID             string     `db:"id" json:"id"`
	Title          string     `db:"title" json:"title"`
	CreatorID      string     `db:"creator_id" json:"creatorId"`
	EditorID       *string    `db:"editor_id" json:"editorId,omitempty"`
	IsBatch        bool       `db:"is_batch" json:"isBatch"`
	Status         UnitStatus `db:"status" json:"status"`
	RevisionCount  int        `db:"revision_count" json:"revisionCount"`
	CurrentVersion int        `db:"current_version" json:"currentVersion"`
	Deadline       *time.Time `db:"deadline" json:"deadline,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// BatchVideo is one slot within a batch project.
type BatchVideo struct {
	ID             string     `db:"id" json:"id"`
	ProjectID      string     `db:"project_id" json:"projectId"`
	SequenceOrder  int        `db:"sequence_order" json:"sequenceOrder"`
	Title          string     `db:"title" json:"title"`
	EditorID       *string    `db:"editor_id" json:"editorId,omitempty"`
	Status         UnitStatus `db:"status" json:"status"`
	RevisionCount  int        `db:"revision_count" json:"revisionCount"`
	CurrentVersion int        `db:"current_version" json:"currentVersion"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// UnitOfWork is the status-bearing view shared by projects and batch slots.
type UnitOfWork struct {
	Kind           UnitKind   `json:"kind"`
	ID             string     `json:"id"`
	ProjectID      string     `json:"projectId"`
	SequenceOrder  *int       `json:"sequenceOrder,omitempty"`
	Status         UnitStatus `json:"status"`
	RevisionCount  int        `json:"revisionCount"`
	CurrentVersion int        `json:"currentVersion"`
	ProducerID     *string    `json:"producerId,omitempty"`
}

// Unit returns the unit-of-work view of a single-video project.
func (p *Project) Unit() UnitOfWork {
	return UnitOfWork{
		Kind:           UnitKindProject,
		ID:             p.ID,
		ProjectID:      p.ID,
		Status:         p.Status,
		RevisionCount:  revisionFloor(p.RevisionCount),
		CurrentVersion: p.CurrentVersion,
		ProducerID:     p.EditorID,
	}
}

// Unit returns the unit-of-work view of a batch slot. The slot inherits the
// project editor when it has no dedicated one.
func (v *BatchVideo) Unit(parent *Project) UnitOfWork {
	order := v.SequenceOrder
	producer := v.EditorID
	if producer == nil && parent != nil {
		producer = parent.EditorID
	}
	return UnitOfWork{
		Kind:           UnitKindBatchVideo,
		ID:             v.ID,
		ProjectID:      v.ProjectID,
		SequenceOrder:  &order,
		Status:         v.Status,
		RevisionCount:  revisionFloor(v.RevisionCount),
		CurrentVersion: v.CurrentVersion,
		ProducerID:     producer,
	}
}

// revisionFloor lifts rows written before the counter started at one.
func revisionFloor(count int) int {
	if count < InitialRevisionCount {
		return InitialRevisionCount
	}
	return count
}

// IsMember reports whether the user participates in the project.
func (p *Project) IsMember(userID string) bool {
	if p == nil || userID == "" {
		return false
	}
	return p.CreatorID == userID || (p.EditorID != nil && *p.EditorID == userID)
}
