package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cutroom-api/internal/models"
)

const commentColumns = `id, delivery_id, author_id, author_role, content, offset_seconds, tag, resolved,
       resolved_by, resolved_at, created_at`

// AnnotationTx groups annotation statements that must observe a stable
// delivery status. ShareLockDelivery blocks a concurrent review until commit.
type AnnotationTx interface {
	ShareLockDelivery(ctx context.Context, deliveryID string) (*models.Delivery, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	InsertComment(ctx context.Context, comment *models.Comment) error
	UpdateResolved(ctx context.Context, params ResolveCommentParams) error
	DeleteComment(ctx context.Context, id string) error
	GetReply(ctx context.Context, id string) (*models.Reply, error)
	InsertReply(ctx context.Context, reply *models.Reply) error
	DeleteReply(ctx context.Context, id string) error
	ListReplies(ctx context.Context, commentID string) ([]models.Reply, error)
}

// ResolveCommentParams flips a comment from Expected to Resolved.
type ResolveCommentParams struct {
	ID         string
	Expected   bool
	Resolved   bool
	ResolvedBy *string
	ResolvedAt *time.Time
}

// CommentRepository persists delivery annotations and replies.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// WithinTx runs fn in a transaction, committing when fn returns nil.
func (r *CommentRepository) WithinTx(ctx context.Context, fn func(tx AnnotationTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin annotation tx: %w", err)
	}
	if err := fn(&annotationTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit annotation tx: %w", err)
	}
	return nil
}

// ListByDelivery returns comments ordered by media offset with replies attached.
func (r *CommentRepository) ListByDelivery(ctx context.Context, deliveryID string) ([]models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM delivery_comments WHERE delivery_id = $1
	ORDER BY offset_seconds ASC, created_at ASC`
	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, deliveryID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if len(comments) == 0 {
		return comments, nil
	}

	const replyQuery = `SELECT r.id, r.comment_id, r.author_id, r.author_role, r.content, r.created_at
	FROM delivery_comment_replies r
	JOIN delivery_comments c ON c.id = r.comment_id
	WHERE c.delivery_id = $1
	ORDER BY r.created_at ASC`
	var replies []models.Reply
	if err := r.db.SelectContext(ctx, &replies, replyQuery, deliveryID); err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	attachReplies(comments, replies)
	return comments, nil
}

// GetComment fetches a comment with its replies.
func (r *CommentRepository) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM delivery_comments WHERE id = $1`
	var comment models.Comment
	if err := r.db.GetContext(ctx, &comment, query, id); err != nil {
		return nil, err
	}
	const replyQuery = `SELECT id, comment_id, author_id, author_role, content, created_at
	FROM delivery_comment_replies WHERE comment_id = $1 ORDER BY created_at ASC`
	var replies []models.Reply
	if err := r.db.SelectContext(ctx, &replies, replyQuery, id); err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	comment.Replies = nonNilReplies(replies)
	return &comment, nil
}

// CountUnresolved returns the number of open comments on a delivery.
func (r *CommentRepository) CountUnresolved(ctx context.Context, deliveryID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM delivery_comments WHERE delivery_id = $1 AND resolved = FALSE`
	if err := r.db.GetContext(ctx, &count, query, deliveryID); err != nil {
		return 0, fmt.Errorf("count unresolved comments: %w", err)
	}
	return count, nil
}

type annotationTx struct {
	tx *sqlx.Tx
}

func (t *annotationTx) ShareLockDelivery(ctx context.Context, deliveryID string) (*models.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1 FOR SHARE`
	var delivery models.Delivery
	if err := t.tx.GetContext(ctx, &delivery, query, deliveryID); err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (t *annotationTx) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM delivery_comments WHERE id = $1`
	var comment models.Comment
	if err := t.tx.GetContext(ctx, &comment, query, id); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (t *annotationTx) InsertComment(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO delivery_comments
	(id, delivery_id, author_id, author_role, content, offset_seconds, tag, resolved, resolved_by, resolved_at, created_at)
	VALUES (:id, :delivery_id, :author_id, :author_role, :content, :offset_seconds, :tag, :resolved, :resolved_by,
	 :resolved_at, :created_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// UpdateResolved is a compare-and-set on the resolved flag; sql.ErrNoRows
// means the flag no longer holds the expected value.
func (t *annotationTx) UpdateResolved(ctx context.Context, params ResolveCommentParams) error {
	const query = `UPDATE delivery_comments SET resolved = :resolved, resolved_by = :resolved_by,
	resolved_at = :resolved_at WHERE id = :id AND resolved = :expected`
	result, err := t.tx.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"resolved":    params.Resolved,
		"resolved_by": params.ResolvedBy,
		"resolved_at": params.ResolvedAt,
		"expected":    params.Expected,
	})
	if err != nil {
		return fmt.Errorf("update comment resolution: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check comment resolution rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *annotationTx) DeleteComment(ctx context.Context, id string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM delivery_comment_replies WHERE comment_id = $1`, id); err != nil {
		return fmt.Errorf("delete comment replies: %w", err)
	}
	result, err := t.tx.ExecContext(ctx, `DELETE FROM delivery_comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *annotationTx) GetReply(ctx context.Context, id string) (*models.Reply, error) {
	const query = `SELECT id, comment_id, author_id, author_role, content, created_at
	FROM delivery_comment_replies WHERE id = $1`
	var reply models.Reply
	if err := t.tx.GetContext(ctx, &reply, query, id); err != nil {
		return nil, err
	}
	return &reply, nil
}

func (t *annotationTx) InsertReply(ctx context.Context, reply *models.Reply) error {
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO delivery_comment_replies (id, comment_id, author_id, author_role, content, created_at)
	VALUES (:id, :comment_id, :author_id, :author_role, :content, :created_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, reply); err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	return nil
}

func (t *annotationTx) DeleteReply(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM delivery_comment_replies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *annotationTx) ListReplies(ctx context.Context, commentID string) ([]models.Reply, error) {
	const query = `SELECT id, comment_id, author_id, author_role, content, created_at
	FROM delivery_comment_replies WHERE comment_id = $1 ORDER BY created_at ASC`
	var replies []models.Reply
	if err := t.tx.SelectContext(ctx, &replies, query, commentID); err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return nonNilReplies(replies), nil
}

func attachReplies(comments []models.Comment, replies []models.Reply) {
	index := make(map[string]int, len(comments))
	for i := range comments {
		comments[i].Replies = []models.Reply{}
		index[comments[i].ID] = i
	}
	for _, reply := range replies {
		if i, ok := index[reply.CommentID]; ok {
			comments[i].Replies = append(comments[i].Replies, reply)
		}
	}
}

func nonNilReplies(replies []models.Reply) []models.Reply {
	if replies == nil {
		return []models.Reply{}
	}
	return replies
}
