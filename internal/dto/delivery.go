package dto

import "github.com/noah-isme/cutroom-api/internal/models"

// SubmitDeliveryRequest is sent by the editor when uploading a new cut.
type SubmitDeliveryRequest struct {
	ProjectID      string  `json:"-"`
	BatchVideoID   *string `json:"batchVideoId"`
	ArtifactURL    string  `json:"artifactUrl" validate:"required"`
	Note           string  `json:"note" validate:"max=4000"`
	IdempotencyKey string  `json:"idempotencyKey" validate:"max=128"`
}

// ReviewDeliveryRequest carries optional feedback for approve and revision decisions.
type ReviewDeliveryRequest struct {
	Feedback string `json:"feedback" validate:"max=4000"`
}

// DeliveryHistoryQuery selects the version history of one scope.
type DeliveryHistoryQuery struct {
	ProjectID    string
	BatchVideoID *string
}

// AvailableActionsResponse lists the actions a caller may attempt next.
type AvailableActionsResponse struct {
	Unit    models.UnitOfWork         `json:"unit"`
	Actions []models.StatusTransition `json:"actions"`
}

// DeliveryDetail bundles a delivery with its annotations.
type DeliveryDetail struct {
	Delivery   *models.Delivery `json:"delivery"`
	Comments   []models.Comment `json:"comments"`
	Unresolved int              `json:"unresolved"`
}
