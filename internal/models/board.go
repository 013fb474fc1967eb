package models

// BoardColumn is a kanban column on the batch board.
type BoardColumn string

const (
	ColumnAwaitingEditor    BoardColumn = "awaiting_editor"
	ColumnInProgress        BoardColumn = "in_progress"
	ColumnInReview          BoardColumn = "in_review"
	ColumnRevisionRequested BoardColumn = "revision_requested"
	ColumnCompleted         BoardColumn = "completed"
)

// BoardColumns lists the columns in display order.
var BoardColumns = []BoardColumn{
	ColumnAwaitingEditor,
	ColumnInProgress,
	ColumnInReview,
	ColumnRevisionRequested,
	ColumnCompleted,
}

// BatchProgress summarises completion of a batch project.
type BatchProgress struct {
	Percentage int  `json:"percentage"`
	Total      int  `json:"total"`
	Completed  int  `json:"completed"`
	InReview   int  `json:"inReview"`
	InProgress int  `json:"inProgress"`
	HasDelayed bool `json:"hasDelayed"`
}

// BoardLane holds the videos of one column in sequence order.
type BoardLane struct {
	Column BoardColumn  `json:"column"`
	Videos []BatchVideo `json:"videos"`
}

// ProjectBoard is the kanban read model for a batch project.
type ProjectBoard struct {
	ProjectID    string        `json:"projectId"`
	Title        string        `json:"title"`
	Status       UnitStatus    `json:"status"`
	DeadlineDays *int          `json:"deadlineDays,omitempty"`
	Progress     BatchProgress `json:"progress"`
	Lanes        []BoardLane   `json:"lanes"`
}
