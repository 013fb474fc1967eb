package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/cutroom-api/internal/models"
)

// ProjectRepository reads projects and batch slots. Writes happen through
// DeliveryRepository transactions.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// GetProject fetches a project by identifier.
func (r *ProjectRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	const query = `SELECT id, title, creator_id, editor_id, is_batch, status, revision_count, current_version,
       deadline, created_at, updated_at
	FROM projects WHERE id = $1`
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetBatchVideo fetches one slot of a batch project.
func (r *ProjectRepository) GetBatchVideo(ctx context.Context, projectID, videoID string) (*models.BatchVideo, error) {
	const query = `SELECT id, project_id, sequence_order, title, editor_id, status, revision_count, current_version,
       created_at, updated_at
	FROM batch_videos WHERE id = $1 AND project_id = $2`
	var video models.BatchVideo
	if err := r.db.GetContext(ctx, &video, query, videoID, projectID); err != nil {
		return nil, err
	}
	return &video, nil
}

// ListBatchVideos returns every slot of a project ordered by sequence.
func (r *ProjectRepository) ListBatchVideos(ctx context.Context, projectID string) ([]models.BatchVideo, error) {
	const query = `SELECT id, project_id, sequence_order, title, editor_id, status, revision_count, current_version,
       created_at, updated_at
	FROM batch_videos WHERE project_id = $1 ORDER BY sequence_order ASC`
	var videos []models.BatchVideo
	if err := r.db.SelectContext(ctx, &videos, query, projectID); err != nil {
		return nil, fmt.Errorf("list batch videos: %w", err)
	}
	return videos, nil
}
