package service

import (
	"math"
	"sort"
	"time"

	"github.com/noah-isme/cutroom-api/internal/models"
)

var statusColumns = map[models.UnitStatus]models.BoardColumn{
	models.UnitStatusAwaitingEditor:    models.ColumnAwaitingEditor,
	models.UnitStatusInProgress:        models.ColumnInProgress,
	models.UnitStatusInReview:          models.ColumnInReview,
	models.UnitStatusPendingApproval:   models.ColumnInReview,
	models.UnitStatusRevisionRequested: models.ColumnRevisionRequested,
	models.UnitStatusCompleted:         models.ColumnCompleted,
}

// MapStatusToColumn returns the kanban column for a video status. Draft and
// cancelled videos are not shown on the board and report false.
func MapStatusToColumn(status models.UnitStatus) (models.BoardColumn, bool) {
	column, ok := statusColumns[status]
	return column, ok
}

// ComputeProgress derives completion figures for a batch. Cancelled videos
// do not count towards the total.
func ComputeProgress(videos []models.BatchVideo, deadlineDays int) models.BatchProgress {
	var progress models.BatchProgress
	outstanding := 0
	for _, video := range videos {
		if video.Status == models.UnitStatusCancelled {
			continue
		}
		progress.Total++
		column, _ := MapStatusToColumn(video.Status)
		switch column {
		case models.ColumnCompleted:
			progress.Completed++
			continue
		case models.ColumnInReview:
			progress.InReview++
		case models.ColumnInProgress, models.ColumnRevisionRequested:
			progress.InProgress++
		}
		outstanding++
	}
	if progress.Total > 0 {
		progress.Percentage = int(math.Round(100 * float64(progress.Completed) / float64(progress.Total)))
	}
	progress.HasDelayed = deadlineDays < 0 && outstanding > 0
	return progress
}

// BuildBoard groups videos into the five board columns ordered by sequence.
func BuildBoard(videos []models.BatchVideo) []models.BoardLane {
	sorted := append([]models.BatchVideo(nil), videos...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SequenceOrder < sorted[j].SequenceOrder
	})

	byColumn := make(map[models.BoardColumn][]models.BatchVideo, len(models.BoardColumns))
	for _, video := range sorted {
		if column, ok := MapStatusToColumn(video.Status); ok {
			byColumn[column] = append(byColumn[column], video)
		}
	}

	lanes := make([]models.BoardLane, 0, len(models.BoardColumns))
	for _, column := range models.BoardColumns {
		videos := byColumn[column]
		if videos == nil {
			videos = []models.BatchVideo{}
		}
		lanes = append(lanes, models.BoardLane{Column: column, Videos: videos})
	}
	return lanes
}

// DeadlineDays returns whole calendar days from now until deadline; negative once passed.
func DeadlineDays(deadline, now time.Time) int {
	d := deadline.UTC().Truncate(24 * time.Hour)
	n := now.UTC().Truncate(24 * time.Hour)
	return int(d.Sub(n).Hours() / 24)
}

// AggregateProjectStatus returns the coarse status a batch project carries:
// completed once every non-cancelled video is completed, in_progress otherwise.
func AggregateProjectStatus(videos []models.BatchVideo) models.UnitStatus {
	active := 0
	for _, video := range videos {
		if video.Status == models.UnitStatusCancelled {
			continue
		}
		active++
		if video.Status != models.UnitStatusCompleted {
			return models.UnitStatusInProgress
		}
	}
	if active == 0 {
		return models.UnitStatusInProgress
	}
	return models.UnitStatusCompleted
}
