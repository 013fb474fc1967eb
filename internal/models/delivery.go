package models

import "time"

// DeliveryStatus tracks the review outcome of a single delivery.
type DeliveryStatus string

const (
	DeliveryStatusPendingReview     DeliveryStatus = "pending_review"
	DeliveryStatusApproved          DeliveryStatus = "approved"
	DeliveryStatusRevisionRequested DeliveryStatus = "revision_requested"
)

// DeliveryScope identifies the unit of work a delivery belongs to. It is
// either a ProjectScope or a BatchVideoScope.
type DeliveryScope interface {
	ProjectID() string
	// Key is unique per unit of work and scopes the version sequence.
	Key() string
	isDeliveryScope()
}

// ProjectScope targets a single-video project as a whole.
type ProjectScope struct {
	Project string
}

func (s ProjectScope) ProjectID() string { return s.Project }
func (s ProjectScope) Key() string       { return "project:" + s.Project }
func (ProjectScope) isDeliveryScope()    {}

// BatchVideoScope targets one slot of a batch project.
type BatchVideoScope struct {
	Project string
	Video   string
}

func (s BatchVideoScope) ProjectID() string    { return s.Project }
func (s BatchVideoScope) BatchVideoID() string { return s.Video }
func (s BatchVideoScope) Key() string          { return "video:" + s.Video }
func (BatchVideoScope) isDeliveryScope()       {}

// NewDeliveryScope builds the scope variant from optional request fields.
func NewDeliveryScope(projectID string, batchVideoID *string) DeliveryScope {
	if batchVideoID != nil && *batchVideoID != "" {
		return BatchVideoScope{Project: projectID, Video: *batchVideoID}
	}
	return ProjectScope{Project: projectID}
}

// ScopeRef is the flat wire form of a DeliveryScope.
type ScopeRef struct {
	ProjectID    string  `json:"projectId"`
	BatchVideoID *string `json:"batchVideoId,omitempty"`
}

// RefOf flattens a scope for events and responses.
func RefOf(scope DeliveryScope) ScopeRef {
	ref := ScopeRef{ProjectID: scope.ProjectID()}
	if video, ok := scope.(BatchVideoScope); ok {
		id := video.Video
		ref.BatchVideoID = &id
	}
	return ref
}

// Delivery is one submitted artifact. Version is scoped to ScopeKey.
type Delivery struct {
	ID             string         `db:"id" json:"id"`
	ProjectID      string         `db:"project_id" json:"projectId"`
	BatchVideoID   *string        `db:"batch_video_id" json:"batchVideoId,omitempty"`
	ScopeKey       string         `db:"scope_key" json:"-"`
	ProducerID     string         `db:"producer_id" json:"producerId"`
	ArtifactURL    string         `db:"artifact_url" json:"artifactUrl"`
	Version        int            `db:"version" json:"version"`
	Status         DeliveryStatus `db:"status" json:"status"`
	Note           *string        `db:"note" json:"note,omitempty"`
	Feedback       *string        `db:"feedback" json:"feedback,omitempty"`
	IdempotencyKey *string        `db:"idempotency_key" json:"-"`
	SubmittedAt    time.Time      `db:"submitted_at" json:"submittedAt"`
	ReviewedBy     *string        `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time     `db:"reviewed_at" json:"reviewedAt,omitempty"`
}

// Scope rebuilds the scope variant from the stored columns.
func (d *Delivery) Scope() DeliveryScope {
	return NewDeliveryScope(d.ProjectID, d.BatchVideoID)
}

// Editable reports whether annotations may still change.
func (d *Delivery) Editable() bool {
	return d != nil && d.Status == DeliveryStatusPendingReview
}
