package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/cutroom-api/internal/models"
)

// ErrVersionConflict is returned when an insert loses the race for a
// (scope_key, version) or (scope_key, idempotency_key) slot.
var ErrVersionConflict = errors.New("delivery version already taken")

const uniqueViolation = "23505"

const deliveryColumns = `id, project_id, batch_video_id, scope_key, producer_id, artifact_url, version, status,
       note, feedback, idempotency_key, submitted_at, reviewed_by, reviewed_at`

// LedgerTx groups the statements the delivery ledger issues in one transaction.
type LedgerTx interface {
	LockProject(ctx context.Context, projectID string) (*models.Project, error)
	LockBatchVideo(ctx context.Context, projectID, videoID string) (*models.BatchVideo, error)
	ListBatchVideos(ctx context.Context, projectID string) ([]models.BatchVideo, error)
	GetDelivery(ctx context.Context, id string) (*models.Delivery, error)
	LockDelivery(ctx context.Context, id string) (*models.Delivery, error)
	CountDeliveries(ctx context.Context, scopeKey string) (int, error)
	FindByIdempotencyKey(ctx context.Context, scopeKey, key string) (*models.Delivery, error)
	InsertDelivery(ctx context.Context, delivery *models.Delivery) error
	UpdateDeliveryReview(ctx context.Context, params ReviewDeliveryParams) error
	UpdateProjectState(ctx context.Context, project *models.Project) error
	UpdateBatchVideoState(ctx context.Context, video *models.BatchVideo) error
	CountUnresolvedComments(ctx context.Context, deliveryID string) (int, error)
}

// ReviewDeliveryParams closes a pending delivery.
type ReviewDeliveryParams struct {
	ID         string
	Status     models.DeliveryStatus
	Feedback   *string
	ReviewedBy string
	ReviewedAt time.Time
}

// DeliveryRepository persists deliveries and the unit-of-work state they drive.
type DeliveryRepository struct {
	db *sqlx.DB
}

// NewDeliveryRepository constructs the repository.
func NewDeliveryRepository(db *sqlx.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// WithinTx runs fn in a transaction, committing when fn returns nil.
func (r *DeliveryRepository) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delivery tx: %w", err)
	}
	if err := fn(&ledgerTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("commit delivery tx: %w", err)
	}
	return nil
}

// GetByID fetches a delivery.
func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`
	var delivery models.Delivery
	if err := r.db.GetContext(ctx, &delivery, query, id); err != nil {
		return nil, err
	}
	return &delivery, nil
}

// ListByScope returns the version history of a scope, oldest first.
func (r *DeliveryRepository) ListByScope(ctx context.Context, scopeKey string) ([]models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE scope_key = $1 ORDER BY version ASC`
	var deliveries []models.Delivery
	if err := r.db.SelectContext(ctx, &deliveries, query, scopeKey); err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return deliveries, nil
}

type ledgerTx struct {
	tx *sqlx.Tx
}

func (t *ledgerTx) LockProject(ctx context.Context, projectID string) (*models.Project, error) {
	const query = `SELECT id, title, creator_id, editor_id, is_batch, status, revision_count, current_version,
       deadline, created_at, updated_at
	FROM projects WHERE id = $1 FOR UPDATE`
	var project models.Project
	if err := t.tx.GetContext(ctx, &project, query, projectID); err != nil {
		return nil, err
	}
	return &project, nil
}

func (t *ledgerTx) LockBatchVideo(ctx context.Context, projectID, videoID string) (*models.BatchVideo, error) {
	const query = `SELECT id, project_id, sequence_order, title, editor_id, status, revision_count, current_version,
       created_at, updated_at
	FROM batch_videos WHERE id = $1 AND project_id = $2 FOR UPDATE`
	var video models.BatchVideo
	if err := t.tx.GetContext(ctx, &video, query, videoID, projectID); err != nil {
		return nil, err
	}
	return &video, nil
}

func (t *ledgerTx) ListBatchVideos(ctx context.Context, projectID string) ([]models.BatchVideo, error) {
	const query = `SELECT id, project_id, sequence_order, title, editor_id, status, revision_count, current_version,
       created_at, updated_at
	FROM batch_videos WHERE project_id = $1 ORDER BY sequence_order ASC`
	var videos []models.BatchVideo
	if err := t.tx.SelectContext(ctx, &videos, query, projectID); err != nil {
		return nil, fmt.Errorf("list batch videos: %w", err)
	}
	return videos, nil
}

func (t *ledgerTx) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`
	var delivery models.Delivery
	if err := t.tx.GetContext(ctx, &delivery, query, id); err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (t *ledgerTx) LockDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1 FOR UPDATE`
	var delivery models.Delivery
	if err := t.tx.GetContext(ctx, &delivery, query, id); err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (t *ledgerTx) CountDeliveries(ctx context.Context, scopeKey string) (int, error) {
	var count int
	if err := t.tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM deliveries WHERE scope_key = $1`, scopeKey); err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return count, nil
}

func (t *ledgerTx) FindByIdempotencyKey(ctx context.Context, scopeKey, key string) (*models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE scope_key = $1 AND idempotency_key = $2`
	var delivery models.Delivery
	if err := t.tx.GetContext(ctx, &delivery, query, scopeKey, key); err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (t *ledgerTx) InsertDelivery(ctx context.Context, delivery *models.Delivery) error {
	if delivery.ID == "" {
		delivery.ID = uuid.NewString()
	}
	if delivery.Status == "" {
		delivery.Status = models.DeliveryStatusPendingReview
	}
	if delivery.SubmittedAt.IsZero() {
		delivery.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO deliveries
	(id, project_id, batch_video_id, scope_key, producer_id, artifact_url, version, status, note, feedback,
	 idempotency_key, submitted_at, reviewed_by, reviewed_at)
	VALUES (:id, :project_id, :batch_video_id, :scope_key, :producer_id, :artifact_url, :version, :status, :note,
	 :feedback, :idempotency_key, :submitted_at, :reviewed_by, :reviewed_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, delivery); err != nil {
		if isUniqueViolation(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// UpdateDeliveryReview only succeeds while the delivery is still pending
// review; a concurrent reviewer that got there first yields sql.ErrNoRows.
func (t *ledgerTx) UpdateDeliveryReview(ctx context.Context, params ReviewDeliveryParams) error {
	const query = `UPDATE deliveries SET status = :status, feedback = :feedback, reviewed_by = :reviewed_by,
	reviewed_at = :reviewed_at
	WHERE id = :id AND status = :pending`
	result, err := t.tx.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"status":      params.Status,
		"feedback":    params.Feedback,
		"reviewed_by": params.ReviewedBy,
		"reviewed_at": params.ReviewedAt,
		"pending":     models.DeliveryStatusPendingReview,
	})
	if err != nil {
		return fmt.Errorf("update delivery review: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delivery review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *ledgerTx) UpdateProjectState(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now().UTC()
	const query = `UPDATE projects SET status = :status, revision_count = :revision_count,
	current_version = :current_version, updated_at = :updated_at WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("update project state: %w", err)
	}
	return nil
}

func (t *ledgerTx) UpdateBatchVideoState(ctx context.Context, video *models.BatchVideo) error {
	video.UpdatedAt = time.Now().UTC()
	const query = `UPDATE batch_videos SET status = :status, revision_count = :revision_count,
	current_version = :current_version, updated_at = :updated_at WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, query, video); err != nil {
		return fmt.Errorf("update batch video state: %w", err)
	}
	return nil
}

func (t *ledgerTx) CountUnresolvedComments(ctx context.Context, deliveryID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM delivery_comments WHERE delivery_id = $1 AND resolved = FALSE`
	if err := t.tx.GetContext(ctx, &count, query, deliveryID); err != nil {
		return 0, fmt.Errorf("count unresolved comments: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
