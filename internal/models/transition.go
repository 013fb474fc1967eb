package models

// LifecycleAction names a status-changing action on a unit of work.
type LifecycleAction string

const (
	ActionSubmitForReview     LifecycleAction = "submit_for_review"
	ActionRequestRevision     LifecycleAction = "request_revision"
	ActionSubmitCorrections   LifecycleAction = "submit_corrections"
	ActionApproveProject      LifecycleAction = "approve_project"
	ActionPayNewRevision      LifecycleAction = "pay_new_revision"
	ActionApproveFirstVersion LifecycleAction = "approve_first_version"
)

// LifecycleActions lists every action the transition table can name.
var LifecycleActions = []LifecycleAction{
	ActionSubmitForReview,
	ActionRequestRevision,
	ActionSubmitCorrections,
	ActionApproveProject,
	ActionPayNewRevision,
	ActionApproveFirstVersion,
}

// StatusTransition is one legal (from, to, action) triple.
type StatusTransition struct {
	From               UnitStatus      `json:"from"`
	To                 UnitStatus      `json:"to"`
	Action             LifecycleAction `json:"action"`
	RequiresPayment    bool            `json:"requiresPayment"`
	IncrementsRevision bool            `json:"incrementsRevision"`
}
