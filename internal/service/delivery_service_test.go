package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cutroom-api/internal/dto"
	"github.com/noah-isme/cutroom-api/internal/models"
	appErrors "github.com/noah-isme/cutroom-api/pkg/errors"
)

const (
	creatorID = "creator-1"
	editorID  = "editor-1"
)

var (
	creator = &models.JWTClaims{UserID: creatorID, Role: models.RoleCreator}
	editor  = &models.JWTClaims{UserID: editorID, Role: models.RoleEditor}
)

type ledgerFixture struct {
	ledger      *memoryLedger
	annotations *AnnotationService
	deliveries  *DeliveryService
	events      *emitterStub
	payments    *paymentStub
	audit       *auditStub
}

func newLedgerFixture(t *testing.T, opts ...DeliveryServiceOption) *ledgerFixture {
	t.Helper()
	ledger := newMemoryLedger()
	events := &emitterStub{}
	payments := &paymentStub{}
	audit := &auditStub{}
	clock := WithDeliveryClock(func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) })

	annotations := NewAnnotationService(memoryComments{ledger}, ledger, ledger, nil, nil)
	base := []DeliveryServiceOption{
		WithEventEmitter(events),
		WithPaymentGateway(payments),
		WithDeliveryAudit(audit),
		clock,
	}
	deliveries := NewDeliveryService(ledger, ledger, annotations, nil, nil, append(base, opts...)...)
	return &ledgerFixture{
		ledger:      ledger,
		annotations: annotations,
		deliveries:  deliveries,
		events:      events,
		payments:    payments,
		audit:       audit,
	}
}

func (f *ledgerFixture) addSingleProject(id string, status models.UnitStatus) {
	assigned := editorID
	f.ledger.addProject(models.Project{ID: id, Title: "Launch video", CreatorID: creatorID, EditorID: &assigned, Status: status, RevisionCount: 1})
}

func (f *ledgerFixture) submit(t *testing.T, projectID string, videoID *string) *models.Delivery {
	t.Helper()
	delivery, err := f.deliveries.SubmitDelivery(context.Background(), dto.SubmitDeliveryRequest{
		ProjectID:    projectID,
		BatchVideoID: videoID,
		ArtifactURL:  "https://cdn.example.com/cut.mp4",
	}, editor)
	require.NoError(t, err)
	return delivery
}

func (f *ledgerFixture) comment(t *testing.T, deliveryID string, offset float64) *models.Comment {
	t.Helper()
	comment, err := f.annotations.AddComment(context.Background(), deliveryID, dto.CreateCommentRequest{
		Content:       "tighten this cut",
		OffsetSeconds: offset,
		Tag:           "cut",
	}, creator)
	require.NoError(t, err)
	return comment
}

func requireCode(t *testing.T, err error, expected *appErrors.Error) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected app error, got %T", err)
	require.Equal(t, expected.Code, appErr.Code, appErr.Message)
}

func TestSubmitDeliveryFirstVersion(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)

	delivery := f.submit(t, "p1", nil)

	require.Equal(t, 1, delivery.Version)
	require.Equal(t, models.DeliveryStatusPendingReview, delivery.Status)
	require.Equal(t, "project:p1", delivery.ScopeKey)
	project := f.ledger.project("p1")
	require.Equal(t, models.UnitStatusInReview, project.Status)
	require.Equal(t, 1, project.CurrentVersion)

	require.Len(t, f.events.events, 1)
	require.Equal(t, models.EventDeliveryReceived, f.events.events[0].Type)
	require.False(t, f.events.events[0].Batch)
	require.Len(t, f.audit.logs, 1)
	require.Equal(t, models.AuditActionDeliverySubmit, f.audit.logs[0].Action)
}

func TestSubmitDeliveryRejectsBadArtifact(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)

	for _, raw := range []string{"not a url", "ftp://files.example.com/cut.mp4", "/relative/cut.mp4"} {
		_, err := f.deliveries.SubmitDelivery(context.Background(), dto.SubmitDeliveryRequest{ProjectID: "p1", ArtifactURL: raw}, editor)
		requireCode(t, err, appErrors.ErrInvalidArtifactLocator)
	}
	require.Equal(t, 0, f.ledger.deliveryCount())
	require.Equal(t, models.UnitStatusInProgress, f.ledger.project("p1").Status)
}

func TestSubmitDeliveryWhileInReviewIsRejected(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	f.submit(t, "p1", nil)

	_, err := f.deliveries.SubmitDelivery(context.Background(), dto.SubmitDeliveryRequest{
		ProjectID:   "p1",
		ArtifactURL: "https://cdn.example.com/cut-2.mp4",
	}, editor)

	requireCode(t, err, appErrors.ErrTransitionNotAllowed)
	require.Equal(t, 1, f.ledger.deliveryCount())
	require.Equal(t, models.UnitStatusInReview, f.ledger.project("p1").Status)
}

func TestSubmitDeliveryRequiresAssignedEditor(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)

	other := &models.JWTClaims{UserID: "editor-2", Role: models.RoleEditor}
	_, err := f.deliveries.SubmitDelivery(context.Background(), dto.SubmitDeliveryRequest{
		ProjectID:   "p1",
		ArtifactURL: "https://cdn.example.com/cut.mp4",
	}, other)

	requireCode(t, err, appErrors.ErrForbidden)
	require.Equal(t, 0, f.ledger.deliveryCount())
}

func TestSubmitDeliveryBatchNeedsSlot(t *testing.T) {
	f := newLedgerFixture(t)
	assigned := editorID
	f.ledger.addProject(models.Project{ID: "b1", CreatorID: creatorID, EditorID: &assigned, IsBatch: true, Status: models.UnitStatusInProgress, RevisionCount: 1})
	f.ledger.addVideo(models.BatchVideo{ID: "v1", ProjectID: "b1", SequenceOrder: 1, Status: models.UnitStatusInProgress, RevisionCount: 1})

	_, err := f.deliveries.SubmitDelivery(context.Background(), dto.SubmitDeliveryRequest{
		ProjectID:   "b1",
		ArtifactURL: "https://cdn.example.com/cut.mp4",
	}, &models.JWTClaims{UserID: editorID, Role: models.RoleEditor})

	requireCode(t, err, appErrors.ErrAmbiguousScope)
	require.Contains(t, appErrors.FromError(err).Message, "select which video")
	require.Equal(t, 0, f.ledger.deliveryCount())
}

func TestSubmitDeliveryBatchSlotsAreIndependent(t *testing.T) {
	f := newLedgerFixture(t)
	assigned := editorID
	f.ledger.addProject(models.Project{ID: "b1", CreatorID: creatorID, EditorID: &assigned, IsBatch: true, Status: models.UnitStatusInProgress, RevisionCount: 1})
	f.ledger.addVideo(models.BatchVideo{ID: "v1", ProjectID: "b1", SequenceOrder: 1, Status: models.UnitStatusInProgress, RevisionCount: 1})
	f.ledger.addVideo(models.BatchVideo{ID: "v2", ProjectID: "b1", SequenceOrder: 2, Status: models.UnitStatusInProgress, RevisionCount: 1})

	v1, v2 := "v1", "v2"
	first := f.submit(t, "b1", &v1)
	second := f.submit(t, "b1", &v2)

	require.Equal(t, 1, first.Version)
	require.Equal(t, 1, second.Version)
	require.Equal(t, "video:v1", first.ScopeKey)
	require.Equal(t, models.UnitStatusInReview, f.ledger.video("v1").Status)
	require.Equal(t, models.UnitStatusInReview, f.ledger.video("v2").Status)
	require.Equal(t, models.UnitStatusInProgress, f.ledger.project("b1").Status)
	require.True(t, f.events.events[1].Batch)
}

func TestBatchProjectCompletesWithLastSlot(t *testing.T) {
	f := newLedgerFixture(t)
	assigned := editorID
	f.ledger.addProject(models.Project{ID: "b1", CreatorID: creatorID, EditorID: &assigned, IsBatch: true, Status: models.UnitStatusInProgress, RevisionCount: 1})
	f.ledger.addVideo(models.BatchVideo{ID: "v1", ProjectID: "b1", SequenceOrder: 1, Status: models.UnitStatusInProgress, RevisionCount: 1})
	f.ledger.addVideo(models.BatchVideo{ID: "v2", ProjectID: "b1", SequenceOrder: 2, Status: models.UnitStatusCompleted, RevisionCount: 1})
	f.ledger.addVideo(models.BatchVideo{ID: "v3", ProjectID: "b1", SequenceOrder: 3, Status: models.UnitStatusCancelled, RevisionCount: 1})

	v1 := "v1"
	delivery := f.submit(t, "b1", &v1)
	_, err := f.deliveries.ApproveDelivery(context.Background(), delivery.ID, dto.ReviewDeliveryRequest{}, creator)
	require.NoError(t, err)

	require.Equal(t, models.UnitStatusCompleted, f.ledger.video("v1").Status)
	require.Equal(t, models.UnitStatusCompleted, f.ledger.project("b1").Status)
}

func TestApproveFirstVersion(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	delivery := f.submit(t, "p1", nil)

	approved, err := f.deliveries.ApproveDelivery(context.Background(), delivery.ID, dto.ReviewDeliveryRequest{Feedback: "great"}, creator)
	require.NoError(t, err)
	require.Equal(t, models.DeliveryStatusApproved, approved.Status)
	require.Equal(t, "great", *approved.Feedback)
	require.Equal(t, models.UnitStatusCompleted, f.ledger.project("p1").Status)

	require.Len(t, f.payments.releases, 1)
	require.Equal(t, "release:"+delivery.ID, f.payments.releases[0].IdempotencyKey)
	require.Empty(t, f.payments.charges)
	require.Equal(t, models.EventDeliveryApproved, f.events.events[len(f.events.events)-1].Type)

	// Closed deliveries cannot be reviewed again.
	_, err = f.deliveries.ApproveDelivery(context.Background(), delivery.ID, dto.ReviewDeliveryRequest{}, creator)
	requireCode(t, err, appErrors.ErrDeliveryNotEditable)
}

func TestApproveRequiresCreator(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	delivery := f.submit(t, "p1", nil)

	_, err := f.deliveries.ApproveDelivery(context.Background(), delivery.ID, dto.ReviewDeliveryRequest{}, editor)
	requireCode(t, err, appErrors.ErrForbidden)
	require.Equal(t, models.DeliveryStatusPendingReview, f.ledger.delivery(delivery.ID).Status)
}

func TestApprovePaymentFailureLeavesStateUntouched(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	delivery := f.submit(t, "p1", nil)
	f.payments.err = errors.New("gateway down")

	_, err := f.deliveries.ApproveDelivery(context.Background(), delivery.ID, dto.ReviewDeliveryRequest{}, creator)

	requireCode(t, err, appErrors.ErrPaymentFailed)
	require.Equal(t, models.DeliveryStatusPendingReview, f.ledger.delivery(delivery.ID).Status)
	require.Equal(t, models.UnitStatusInReview, f.ledger.project("p1").Status)
}

func TestRequestRevisionWithOpenComments(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	delivery := f.submit(t, "p1", nil)

	first := f.comment(t, delivery.ID, 3)
	f.comment(t, delivery.ID, 12.5)
	resolved := true
	_, err := f.annotations.SetResolved(context.Background(), first.ID, dto.SetResolvedRequest{Resolved: &resolved}, creator)
	require.NoError(t, err)

	reviewed, err := f.deliveries.RequestRevision(context.Background(), delivery.ID, dto.ReviewDeliveryRequest{}, creator)
	require.NoError(t, err)
	require.Equal(t, models.DeliveryStatusRevisionRequested, reviewed.Status)
	project := f.ledger.project("p1")
	require.Equal(t, models.UnitStatusRevisionRequested, project.Status)
	require.Equal(t, models.InitialRevisionCount, project.RevisionCount)

	last := f.events.events[len(f.events.events)-1]
	require.Equal(t, models.EventRevisionRequested, last.Type)
	require.NotNil(t, last.PendingCommentCount)
	require.Equal(t, 1, *last.PendingCommentCount)
}

func TestRequestRevisionWithoutCommentsIsRejected(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	delivery := f.submit(t, "p1", nil)

	_, err := f.deliveries.RequestRevision(context.Background(), delivery.ID, dto.ReviewDeliveryRequest{}, creator)

	requireCode(t, err, appErrors.ErrNoPendingCorrections)
	require.Contains(t, appErrors.FromError(err).Message, "unresolved comment")
	require.Equal(t, models.UnitStatusInReview, f.ledger.project("p1").Status)
	require.Equal(t, models.DeliveryStatusPendingReview, f.ledger.delivery(delivery.ID).Status)

	f.comment(t, delivery.ID, 1)
	_, err = f.deliveries.RequestRevision(context.Background(), delivery.ID, dto.ReviewDeliveryRequest{}, creator)
	require.NoError(t, err)
}

func TestPayNewRevisionChargesAndIncrementsOnce(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)

	v1 := f.submit(t, "p1", nil)
	f.comment(t, v1.ID, 1)
	_, err := f.deliveries.RequestRevision(context.Background(), v1.ID, dto.ReviewDeliveryRequest{}, creator)
	require.NoError(t, err)

	v2 := f.submit(t, "p1", nil)
	require.Equal(t, 2, v2.Version)
	require.Equal(t, models.UnitStatusPendingApproval, f.ledger.project("p1").Status)

	f.comment(t, v2.ID, 4)
	_, err = f.deliveries.RequestRevision(context.Background(), v2.ID, dto.ReviewDeliveryRequest{}, creator)
	require.NoError(t, err)

	project := f.ledger.project("p1")
	require.Equal(t, models.UnitStatusRevisionRequested, project.Status)
	require.Equal(t, 2, project.RevisionCount)
	require.Len(t, f.payments.charges, 1)
	require.Equal(t, "revision:p1:2", f.payments.charges[0].IdempotencyKey)
}

func TestPayNewRevisionPaymentFailure(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	v1 := f.submit(t, "p1", nil)
	f.comment(t, v1.ID, 1)
	_, err := f.deliveries.RequestRevision(context.Background(), v1.ID, dto.ReviewDeliveryRequest{}, creator)
	require.NoError(t, err)
	v2 := f.submit(t, "p1", nil)
	f.comment(t, v2.ID, 2)

	f.payments.err = errors.New("card declined")
	_, err = f.deliveries.RequestRevision(context.Background(), v2.ID, dto.ReviewDeliveryRequest{}, creator)

	requireCode(t, err, appErrors.ErrPaymentFailed)
	project := f.ledger.project("p1")
	require.Equal(t, models.UnitStatusPendingApproval, project.Status)
	require.Equal(t, 1, project.RevisionCount)
	require.Equal(t, models.DeliveryStatusPendingReview, f.ledger.delivery(v2.ID).Status)
}

func TestApproveSupersededVersionIsRejected(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	v1 := f.submit(t, "p1", nil)
	// Simulate a stale pending row left behind by an older flow.
	project := f.ledger.project("p1")
	project.CurrentVersion = 2
	f.ledger.addProject(project)

	_, err := f.deliveries.ApproveDelivery(context.Background(), v1.ID, dto.ReviewDeliveryRequest{}, creator)
	requireCode(t, err, appErrors.ErrDeliveryNotEditable)
	require.Contains(t, appErrors.FromError(err).Message, "superseded")
}

func TestSubmitDeliveryIdempotentReplay(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	req := dto.SubmitDeliveryRequest{ProjectID: "p1", ArtifactURL: "https://cdn.example.com/cut.mp4", IdempotencyKey: "upload-42"}

	first, err := f.deliveries.SubmitDelivery(context.Background(), req, editor)
	require.NoError(t, err)
	second, err := f.deliveries.SubmitDelivery(context.Background(), req, editor)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, f.ledger.deliveryCount())
	require.Len(t, f.events.events, 1)
}

func TestSubmitDeliveryRetriesVersionConflictOnce(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	f.ledger.insertConflicts = 1

	delivery := f.submit(t, "p1", nil)
	require.Equal(t, 1, delivery.Version)
	require.Equal(t, models.UnitStatusInReview, f.ledger.project("p1").Status)
}

func TestSubmitDeliverySurfacesRepeatedConflict(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	f.ledger.insertConflicts = 2

	_, err := f.deliveries.SubmitDelivery(context.Background(), dto.SubmitDeliveryRequest{
		ProjectID:   "p1",
		ArtifactURL: "https://cdn.example.com/cut.mp4",
	}, editor)

	requireCode(t, err, appErrors.ErrVersionConflict)
	require.Equal(t, 0, f.ledger.deliveryCount())
	require.Equal(t, models.UnitStatusInProgress, f.ledger.project("p1").Status)
}

// resubmitTable lets corrections be resubmitted while in review so every
// concurrent writer can succeed against the same scope.
func resubmitTable() TransitionTable {
	return NewTransitionTable(
		models.StatusTransition{From: models.UnitStatusInProgress, To: models.UnitStatusInReview, Action: models.ActionSubmitForReview},
		models.StatusTransition{From: models.UnitStatusInReview, To: models.UnitStatusInReview, Action: models.ActionSubmitCorrections},
	)
}

func TestConcurrentSubmissionsSerializeOnScopeLock(t *testing.T) {
	f := newLedgerFixture(t, WithTransitionTable(resubmitTable()))
	f.addSingleProject("p1", models.UnitStatusInProgress)

	const writers = 12
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.deliveries.SubmitDelivery(context.Background(), dto.SubmitDeliveryRequest{
				ProjectID:   "p1",
				ArtifactURL: fmt.Sprintf("https://cdn.example.com/cut-%d.mp4", i),
			}, editor)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	history, err := f.deliveries.ListDeliveries(context.Background(), dto.DeliveryHistoryQuery{ProjectID: "p1"}, creator)
	require.NoError(t, err)
	require.Len(t, history, writers)
	versions := make([]int, 0, writers)
	for _, d := range history {
		versions = append(versions, d.Version)
	}
	sort.Ints(versions)
	for i, v := range versions {
		require.Equal(t, i+1, v)
	}
	require.Equal(t, writers, f.ledger.project("p1").CurrentVersion)
}

func TestUniqueVersionIndexResolvesLostRace(t *testing.T) {
	f := newLedgerFixture(t, WithTransitionTable(resubmitTable()))
	f.addSingleProject("p1", models.UnitStatusInProgress)
	f.ledger.skipRowLocks = true

	// Both writers count before either inserts, so both pick version 1.
	var counted int32
	var bothCounted sync.WaitGroup
	bothCounted.Add(2)
	f.ledger.afterCount = func() {
		if atomic.AddInt32(&counted, 1) <= 2 {
			bothCounted.Done()
			bothCounted.Wait()
		}
	}

	var wg sync.WaitGroup
	results := make(chan *models.Delivery, 2)
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			delivery, err := f.deliveries.SubmitDelivery(context.Background(), dto.SubmitDeliveryRequest{
				ProjectID:   "p1",
				ArtifactURL: fmt.Sprintf("https://cdn.example.com/race-%d.mp4", i),
			}, editor)
			errs <- err
			results <- delivery
		}(i)
	}
	wg.Wait()
	close(errs)
	close(results)
	for err := range errs {
		require.NoError(t, err)
	}

	var versions []int
	for d := range results {
		versions = append(versions, d.Version)
	}
	sort.Ints(versions)
	require.Equal(t, []int{1, 2}, versions)
	// Two first attempts plus one retry by the writer that lost the insert.
	require.Equal(t, int32(3), atomic.LoadInt32(&counted))
	require.Equal(t, 2, f.ledger.deliveryCount())
}

func TestSubmitDeliveryRejectedOutsideSubmittableStatuses(t *testing.T) {
	for _, status := range []models.UnitStatus{
		models.UnitStatusDraft,
		models.UnitStatusAwaitingEditor,
		models.UnitStatusInReview,
		models.UnitStatusPendingApproval,
		models.UnitStatusCompleted,
		models.UnitStatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newLedgerFixture(t)
			f.addSingleProject("p1", status)
			before := f.ledger.project("p1")

			_, err := f.deliveries.SubmitDelivery(context.Background(), dto.SubmitDeliveryRequest{
				ProjectID:   "p1",
				ArtifactURL: "https://cdn.example.com/cut.mp4",
			}, editor)

			requireCode(t, err, appErrors.ErrTransitionNotAllowed)
			require.Equal(t, 0, f.ledger.deliveryCount())
			require.Equal(t, before, f.ledger.project("p1"))
			require.Empty(t, f.events.events)
		})
	}
}

func TestReviewRejectedOutsideReviewableStatuses(t *testing.T) {
	for _, status := range []models.UnitStatus{
		models.UnitStatusDraft,
		models.UnitStatusAwaitingEditor,
		models.UnitStatusInProgress,
		models.UnitStatusRevisionRequested,
		models.UnitStatusCompleted,
		models.UnitStatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newLedgerFixture(t)
			assigned := editorID
			f.ledger.addProject(models.Project{ID: "p1", CreatorID: creatorID, EditorID: &assigned, Status: status, RevisionCount: 1, CurrentVersion: 1})
			f.ledger.addDelivery(models.Delivery{ID: "d1", ProjectID: "p1", ScopeKey: "project:p1", ProducerID: editorID,
				ArtifactURL: "https://cdn.example.com/cut.mp4", Version: 1, Status: models.DeliveryStatusPendingReview})
			before := f.ledger.project("p1")

			_, err := f.deliveries.ApproveDelivery(context.Background(), "d1", dto.ReviewDeliveryRequest{}, creator)
			requireCode(t, err, appErrors.ErrTransitionNotAllowed)
			_, err = f.deliveries.RequestRevision(context.Background(), "d1", dto.ReviewDeliveryRequest{}, creator)
			requireCode(t, err, appErrors.ErrTransitionNotAllowed)

			require.Equal(t, before, f.ledger.project("p1"))
			require.Equal(t, models.DeliveryStatusPendingReview, f.ledger.delivery("d1").Status)
			require.Empty(t, f.payments.charges)
			require.Empty(t, f.payments.releases)
			require.Empty(t, f.events.events)
		})
	}
}

func TestAmbiguousTransitionTableIsFatal(t *testing.T) {
	table := NewTransitionTable(
		models.StatusTransition{From: models.UnitStatusInProgress, To: models.UnitStatusInReview, Action: models.ActionSubmitForReview},
		models.StatusTransition{From: models.UnitStatusInProgress, To: models.UnitStatusCompleted, Action: models.ActionSubmitForReview},
	)
	f := newLedgerFixture(t, WithTransitionTable(table))
	f.addSingleProject("p1", models.UnitStatusInProgress)

	_, err := f.deliveries.SubmitDelivery(context.Background(), dto.SubmitDeliveryRequest{
		ProjectID:   "p1",
		ArtifactURL: "https://cdn.example.com/cut.mp4",
	}, editor)

	requireCode(t, err, appErrors.ErrAmbiguousAction)
	require.Equal(t, 0, f.ledger.deliveryCount())
}

func TestAvailableActionsFollowStatus(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	f.submit(t, "p1", nil)

	resp, err := f.deliveries.AvailableActions(context.Background(), "p1", nil, creator)
	require.NoError(t, err)
	require.Equal(t, models.UnitStatusInReview, resp.Unit.Status)
	actions := make([]models.LifecycleAction, 0, len(resp.Actions))
	for _, tr := range resp.Actions {
		actions = append(actions, tr.Action)
	}
	require.ElementsMatch(t, []models.LifecycleAction{models.ActionRequestRevision, models.ActionApproveFirstVersion}, actions)
}

func TestGetDeliveryHidesOtherProjects(t *testing.T) {
	f := newLedgerFixture(t)
	f.addSingleProject("p1", models.UnitStatusInProgress)
	delivery := f.submit(t, "p1", nil)

	stranger := &models.JWTClaims{UserID: "someone", Role: models.RoleCreator}
	_, err := f.deliveries.GetDelivery(context.Background(), delivery.ID, stranger)
	requireCode(t, err, appErrors.ErrForbidden)

	got, err := f.deliveries.GetDelivery(context.Background(), delivery.ID, creator)
	require.NoError(t, err)
	require.Equal(t, delivery.ID, got.ID)

	_, err = f.deliveries.GetDelivery(context.Background(), "missing", creator)
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestFreshUnitCarriesInitialRevisionCount(t *testing.T) {
	f := newLedgerFixture(t)
	assigned := editorID
	// A row inserted without an explicit counter.
	f.ledger.addProject(models.Project{ID: "p1", CreatorID: creatorID, EditorID: &assigned, Status: models.UnitStatusInProgress})

	delivery := f.submit(t, "p1", nil)
	require.Equal(t, models.InitialRevisionCount, f.ledger.project("p1").RevisionCount)

	f.comment(t, delivery.ID, 2)
	_, err := f.deliveries.RequestRevision(context.Background(), delivery.ID, dto.ReviewDeliveryRequest{}, creator)
	require.NoError(t, err)
	require.Equal(t, 1, f.ledger.project("p1").RevisionCount)

	actions, err := f.deliveries.AvailableActions(context.Background(), "p1", nil, creator)
	require.NoError(t, err)
	require.Equal(t, 1, actions.Unit.RevisionCount)
}
