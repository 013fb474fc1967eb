package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/cutroom-api/internal/models"
	"github.com/noah-isme/cutroom-api/internal/repository"
)

// memoryState holds rows by value.
type memoryState struct {
	projects   map[string]models.Project
	videos     map[string]models.BatchVideo
	deliveries map[string]models.Delivery
	comments   map[string]models.Comment
	replies    map[string]models.Reply
}

// memoryLedger is an in-memory stand-in for the delivery, comment and project
// repositories. Locking a project or slot holds a per-row mutex until the
// transaction ends, like SELECT ... FOR UPDATE, so transactions on different
// rows interleave. Writes are journaled and undone on error. The unique
// (scope, version) and (scope, idempotency key) indexes are enforced.
type memoryLedger struct {
	mu       sync.Mutex
	state    memoryState
	rowLocks map[string]*sync.Mutex

	// skipRowLocks turns LockProject and LockBatchVideo into plain reads so
	// concurrent submissions race between counting and inserting.
	skipRowLocks bool
	// afterCount runs between CountDeliveries and the caller's insert.
	afterCount func()
	// insertConflicts makes the next N inserts fail as if another writer won.
	insertConflicts int
	commits         int
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		state: memoryState{
			projects:   map[string]models.Project{},
			videos:     map[string]models.BatchVideo{},
			deliveries: map[string]models.Delivery{},
			comments:   map[string]models.Comment{},
			replies:    map[string]models.Reply{},
		},
		rowLocks: map[string]*sync.Mutex{},
	}
}

func (m *memoryLedger) addProject(p models.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.projects[p.ID] = p
}

func (m *memoryLedger) addVideo(v models.BatchVideo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.videos[v.ID] = v
}

func (m *memoryLedger) addDelivery(d models.Delivery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.deliveries[d.ID] = d
}

func (m *memoryLedger) project(id string) models.Project {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.projects[id]
}

func (m *memoryLedger) video(id string) models.BatchVideo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.videos[id]
}

func (m *memoryLedger) delivery(id string) models.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deliveries[id]
}

func (m *memoryLedger) deliveryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.deliveries)
}

// memoryTx tracks the row locks a transaction holds and how to undo its writes.
type memoryTx struct {
	m    *memoryLedger
	held map[string]*sync.Mutex
	undo []func()
}

// lockRow blocks until the transaction owns key. Callers must not hold m.mu.
func (tx *memoryTx) lockRow(key string) {
	if tx.m.skipRowLocks {
		return
	}
	if _, ok := tx.held[key]; ok {
		return
	}
	tx.m.mu.Lock()
	row, ok := tx.m.rowLocks[key]
	if !ok {
		row = &sync.Mutex{}
		tx.m.rowLocks[key] = row
	}
	tx.m.mu.Unlock()
	row.Lock()
	tx.held[key] = row
}

// journal records an undo step. Callers hold m.mu.
func (tx *memoryTx) journal(fn func()) {
	tx.undo = append(tx.undo, fn)
}

// run executes fn as one transaction; each statement takes mu on its own so
// reads outside the transaction do not deadlock.
func (m *memoryLedger) run(fn func(tx *memoryTx) error) error {
	tx := &memoryTx{m: m, held: map[string]*sync.Mutex{}}
	err := fn(tx)

	m.mu.Lock()
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
	} else {
		m.commits++
	}
	m.mu.Unlock()
	for _, row := range tx.held {
		row.Unlock()
	}
	return err
}

// WithinTx satisfies the delivery store.
func (m *memoryLedger) WithinTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error {
	return m.run(func(tx *memoryTx) error { return fn(memoryLedgerTx{tx}) })
}

func (m *memoryLedger) GetByID(ctx context.Context, id string) (*models.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.state.deliveries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &d, nil
}

func (m *memoryLedger) ListByScope(ctx context.Context, scopeKey string) ([]models.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Delivery
	for _, d := range m.state.deliveries {
		if d.ScopeKey == scopeKey {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *memoryLedger) GetProject(ctx context.Context, id string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getProject(id)
}

func (m *memoryLedger) GetBatchVideo(ctx context.Context, projectID, videoID string) (*models.BatchVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getVideo(projectID, videoID)
}

func (m *memoryLedger) ListBatchVideos(ctx context.Context, projectID string) ([]models.BatchVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listVideos(projectID), nil
}

func (m *memoryLedger) getProject(id string) (*models.Project, error) {
	p, ok := m.state.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (m *memoryLedger) getVideo(projectID, videoID string) (*models.BatchVideo, error) {
	v, ok := m.state.videos[videoID]
	if !ok || v.ProjectID != projectID {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (m *memoryLedger) listVideos(projectID string) []models.BatchVideo {
	var out []models.BatchVideo
	for _, v := range m.state.videos {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceOrder < out[j].SequenceOrder })
	return out
}

func (m *memoryLedger) countUnresolved(deliveryID string) int {
	count := 0
	for _, c := range m.state.comments {
		if c.DeliveryID == deliveryID && !c.Resolved {
			count++
		}
	}
	return count
}

type memoryLedgerTx struct {
	*memoryTx
}

func (t memoryLedgerTx) LockProject(ctx context.Context, projectID string) (*models.Project, error) {
	t.lockRow("project:" + projectID)
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.getProject(projectID)
}

func (t memoryLedgerTx) LockBatchVideo(ctx context.Context, projectID, videoID string) (*models.BatchVideo, error) {
	t.lockRow("video:" + videoID)
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.getVideo(projectID, videoID)
}

func (t memoryLedgerTx) ListBatchVideos(ctx context.Context, projectID string) ([]models.BatchVideo, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.listVideos(projectID), nil
}

func (t memoryLedgerTx) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	d, ok := t.m.state.deliveries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &d, nil
}

func (t memoryLedgerTx) LockDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	return t.GetDelivery(ctx, id)
}

func (t memoryLedgerTx) CountDeliveries(ctx context.Context, scopeKey string) (int, error) {
	t.m.mu.Lock()
	count := 0
	for _, d := range t.m.state.deliveries {
		if d.ScopeKey == scopeKey {
			count++
		}
	}
	t.m.mu.Unlock()
	if t.m.afterCount != nil {
		t.m.afterCount()
	}
	return count, nil
}

func (t memoryLedgerTx) FindByIdempotencyKey(ctx context.Context, scopeKey, key string) (*models.Delivery, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, d := range t.m.state.deliveries {
		if d.ScopeKey == scopeKey && d.IdempotencyKey != nil && *d.IdempotencyKey == key {
			found := d
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t memoryLedgerTx) InsertDelivery(ctx context.Context, delivery *models.Delivery) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.m.insertConflicts > 0 {
		t.m.insertConflicts--
		return repository.ErrVersionConflict
	}
	for _, d := range t.m.state.deliveries {
		if d.ScopeKey != delivery.ScopeKey {
			continue
		}
		if d.Version == delivery.Version {
			return repository.ErrVersionConflict
		}
		if d.IdempotencyKey != nil && delivery.IdempotencyKey != nil && *d.IdempotencyKey == *delivery.IdempotencyKey {
			return repository.ErrVersionConflict
		}
	}
	if delivery.ID == "" {
		delivery.ID = uuid.NewString()
	}
	id := delivery.ID
	t.m.state.deliveries[id] = *delivery
	t.journal(func() { delete(t.m.state.deliveries, id) })
	return nil
}

func (t memoryLedgerTx) UpdateDeliveryReview(ctx context.Context, params repository.ReviewDeliveryParams) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	d, ok := t.m.state.deliveries[params.ID]
	if !ok || d.Status != models.DeliveryStatusPendingReview {
		return sql.ErrNoRows
	}
	d.Status = params.Status
	d.Feedback = params.Feedback
	previous := d
	reviewer := params.ReviewedBy
	at := params.ReviewedAt
	d.ReviewedBy = &reviewer
	d.ReviewedAt = &at
	t.m.state.deliveries[d.ID] = d
	t.journal(func() { t.m.state.deliveries[previous.ID] = previous })
	return nil
}

func (t memoryLedgerTx) UpdateProjectState(ctx context.Context, project *models.Project) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	previous, ok := t.m.state.projects[project.ID]
	if !ok {
		return fmt.Errorf("project %s missing", project.ID)
	}
	t.m.state.projects[project.ID] = *project
	t.journal(func() { t.m.state.projects[previous.ID] = previous })
	return nil
}

func (t memoryLedgerTx) UpdateBatchVideoState(ctx context.Context, video *models.BatchVideo) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	previous, ok := t.m.state.videos[video.ID]
	if !ok {
		return fmt.Errorf("video %s missing", video.ID)
	}
	t.m.state.videos[video.ID] = *video
	t.journal(func() { t.m.state.videos[previous.ID] = previous })
	return nil
}

func (t memoryLedgerTx) CountUnresolvedComments(ctx context.Context, deliveryID string) (int, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.countUnresolved(deliveryID), nil
}

// memoryComments exposes the comment half of the ledger as an annotation store.
type memoryComments struct {
	m *memoryLedger
}

func (c memoryComments) WithinTx(ctx context.Context, fn func(tx repository.AnnotationTx) error) error {
	return c.m.run(func(tx *memoryTx) error { return fn(memoryAnnotationTx{tx}) })
}

func (c memoryComments) ListByDelivery(ctx context.Context, deliveryID string) ([]models.Comment, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	var out []models.Comment
	for _, comment := range c.m.state.comments {
		if comment.DeliveryID == deliveryID {
			comment.Replies = c.replies(comment.ID)
			out = append(out, comment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OffsetSeconds < out[j].OffsetSeconds })
	return out, nil
}

func (c memoryComments) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	comment, ok := c.m.state.comments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	comment.Replies = c.replies(id)
	return &comment, nil
}

func (c memoryComments) CountUnresolved(ctx context.Context, deliveryID string) (int, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.countUnresolved(deliveryID), nil
}

func (c memoryComments) replies(commentID string) []models.Reply {
	out := []models.Reply{}
	for _, r := range c.m.state.replies {
		if r.CommentID == commentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type memoryAnnotationTx struct {
	*memoryTx
}

func (t memoryAnnotationTx) ShareLockDelivery(ctx context.Context, deliveryID string) (*models.Delivery, error) {
	return memoryLedgerTx{t.memoryTx}.GetDelivery(ctx, deliveryID)
}

func (t memoryAnnotationTx) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	comment, ok := t.m.state.comments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &comment, nil
}

func (t memoryAnnotationTx) InsertComment(ctx context.Context, comment *models.Comment) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	id := comment.ID
	t.m.state.comments[id] = *comment
	t.journal(func() { delete(t.m.state.comments, id) })
	return nil
}

func (t memoryAnnotationTx) UpdateResolved(ctx context.Context, params repository.ResolveCommentParams) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	comment, ok := t.m.state.comments[params.ID]
	if !ok || comment.Resolved != params.Expected {
		return sql.ErrNoRows
	}
	previous := comment
	t.journal(func() { t.m.state.comments[previous.ID] = previous })
	comment.Resolved = params.Resolved
	comment.ResolvedBy = params.ResolvedBy
	comment.ResolvedAt = params.ResolvedAt
	t.m.state.comments[params.ID] = comment
	return nil
}

func (t memoryAnnotationTx) DeleteComment(ctx context.Context, id string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	previous, ok := t.m.state.comments[id]
	if !ok {
		return sql.ErrNoRows
	}
	for rid, r := range t.m.state.replies {
		if r.CommentID == id {
			reply := r
			delete(t.m.state.replies, rid)
			t.journal(func() { t.m.state.replies[reply.ID] = reply })
		}
	}
	delete(t.m.state.comments, id)
	t.journal(func() { t.m.state.comments[previous.ID] = previous })
	return nil
}

func (t memoryAnnotationTx) GetReply(ctx context.Context, id string) (*models.Reply, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	reply, ok := t.m.state.replies[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &reply, nil
}

func (t memoryAnnotationTx) InsertReply(ctx context.Context, reply *models.Reply) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	id := reply.ID
	t.m.state.replies[id] = *reply
	t.journal(func() { delete(t.m.state.replies, id) })
	return nil
}

func (t memoryAnnotationTx) DeleteReply(ctx context.Context, id string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	previous, ok := t.m.state.replies[id]
	if !ok {
		return sql.ErrNoRows
	}
	delete(t.m.state.replies, id)
	t.journal(func() { t.m.state.replies[previous.ID] = previous })
	return nil
}

func (t memoryAnnotationTx) ListReplies(ctx context.Context, commentID string) ([]models.Reply, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return memoryComments{t.m}.replies(commentID), nil
}

type auditStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

type emitterStub struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
}

func (e *emitterStub) Emit(ctx context.Context, event models.LifecycleEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

type paymentStub struct {
	mu       sync.Mutex
	charges  []PaymentRequest
	releases []PaymentRequest
	err      error
}

func (p *paymentStub) Charge(ctx context.Context, req PaymentRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.charges = append(p.charges, req)
	return nil
}

func (p *paymentStub) Release(ctx context.Context, req PaymentRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.releases = append(p.releases, req)
	return nil
}
