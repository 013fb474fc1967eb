package dto

// CreateCommentRequest adds an annotation at a point in the media.
type CreateCommentRequest struct {
	Content       string  `json:"content" validate:"required,max=4000"`
	OffsetSeconds float64 `json:"offsetSeconds" validate:"gte=0"`
	Tag           string  `json:"tag" validate:"omitempty,oneof=timing audio color text cut other"`
}

// SetResolvedRequest carries the target resolution state. Sending the
// desired value instead of a toggle keeps client retries idempotent.
type SetResolvedRequest struct {
	Resolved *bool `json:"resolved" validate:"required"`
}

// CreateReplyRequest answers an existing comment.
type CreateReplyRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}
