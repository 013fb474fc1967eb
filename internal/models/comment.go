package models

import "time"

// CommentTag categorises reviewer feedback.
type CommentTag string

const (
	CommentTagTiming CommentTag = "timing"
	CommentTagAudio  CommentTag = "audio"
	CommentTagColor  CommentTag = "color"
	CommentTagText   CommentTag = "text"
	CommentTagCut    CommentTag = "cut"
	CommentTagOther  CommentTag = "other"
)

// Comment is a timestamped annotation attached to one delivery.
type Comment struct {
	ID            string      `db:"id" json:"id"`
	DeliveryID    string      `db:"delivery_id" json:"deliveryId"`
	AuthorID      string      `db:"author_id" json:"authorId"`
	AuthorRole    UserRole    `db:"author_role" json:"authorRole"`
	Content       string      `db:"content" json:"content"`
	OffsetSeconds float64     `db:"offset_seconds" json:"offsetSeconds"`
	Tag           *CommentTag `db:"tag" json:"tag,omitempty"`
	Resolved      bool        `db:"resolved" json:"resolved"`
	ResolvedBy    *string     `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt    *time.Time  `db:"resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	Replies       []Reply     `db:"-" json:"replies"`
}

// Reply is a threaded answer to a comment.
type Reply struct {
	ID         string    `db:"id" json:"id"`
	CommentID  string    `db:"comment_id" json:"commentId"`
	AuthorID   string    `db:"author_id" json:"authorId"`
	AuthorRole UserRole  `db:"author_role" json:"authorRole"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
