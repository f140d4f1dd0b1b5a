package engine

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shootboard/internal/domain"
	"shootboard/internal/events"
)

// Gateway is CRUD access to the authoritative store. Insert assigns the id.
// Update takes a partial field set.
type Gateway interface {
	List(ctx context.Context, k domain.Kind) ([]domain.Record, error)
	Insert(ctx context.Context, k domain.Kind, rec domain.Record) error
	Update(ctx context.Context, k domain.Kind, id string, fields domain.Record) error
	Delete(ctx context.Context, k domain.Kind, id string) error
}

// Engine forwards mutations to the Gateway and, on success, replaces the
// affected collections with a fresh list. Failures leave the Store as it was
// and are raised on the Notifier.
type Engine struct {
	gw       Gateway
	store    *Store
	notifier *Notifier
	bus      events.Publisher
	logger   *zap.Logger
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithBus(b events.Publisher) Option {
	return func(e *Engine) { e.bus = b }
}

func WithNotifier(n *Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithStore(s *Store) Option {
	return func(e *Engine) { e.store = s }
}

func New(gw Gateway, opts ...Option) *Engine {
	e := &Engine{gw: gw, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = NewStore()
	}
	if e.notifier == nil {
		e.notifier = NewNotifier(DefaultNoticeTTL, e.bus)
	}
	return e
}

func (e *Engine) Store() *Store {
	return e.store
}

func (e *Engine) Notifier() *Notifier {
	return e.notifier
}

// LoadAll fetches the four collections concurrently. Kinds that loaded are
// installed even when another kind failed.
func (e *Engine) LoadAll(ctx context.Context) error {
	kinds := domain.Kinds()
	results := make([][]domain.Record, len(kinds))
	var mu sync.Mutex
	var failed []string
	var firstErr error

	g, gctx := errgroup.WithContext(ctx)
	for i, k := range kinds {
		g.Go(func() error {
			items, err := e.gw.List(gctx, k)
			if err != nil {
				mu.Lock()
				failed = append(failed, string(k))
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	for i, k := range kinds {
		if slices.Contains(failed, string(k)) {
			continue
		}
		e.replace(k, results[i])
	}
	if firstErr != nil {
		slices.Sort(failed)
		return e.fail(&Failure{
			Code:    CodeLoadFailure,
			Op:      OpList,
			Message: "loading " + strings.Join(failed, ", ") + " failed",
			Cause:   firstErr,
		})
	}
	e.logger.Debug("store loaded",
		zap.Int("projects", len(results[0])),
		zap.Int("tasks", len(results[1])),
		zap.Int("directors", len(results[2])),
		zap.Int("creators", len(results[3])))
	return nil
}

// Refresh replaces one collection with the Gateway's current list.
func (e *Engine) Refresh(ctx context.Context, k domain.Kind) error {
	if err := e.refresh(ctx, k); err != nil {
		return e.fail(refreshFailure(k, err))
	}
	return nil
}

func (e *Engine) refresh(ctx context.Context, k domain.Kind) error {
	items, err := e.gw.List(ctx, k)
	if err != nil {
		return err
	}
	e.replace(k, items)
	return nil
}

func (e *Engine) replace(k domain.Kind, items []domain.Record) {
	if err := e.store.Replace(k, items); err != nil {
		e.logger.Warn("store replace rejected", zap.String("kind", string(k)), zap.Error(err))
		return
	}
	e.publish(events.Change{Type: events.StoreReplaced, Kind: string(k)})
}

func (e *Engine) publish(c events.Change) {
	if e.bus != nil {
		e.bus.Publish(c)
	}
}

// Insert creates a record and reloads its collection.
func (e *Engine) Insert(ctx context.Context, k domain.Kind, rec domain.Record) error {
	clean, err := normalizeInsert(k, rec)
	if err != nil {
		return e.fail(invalidInput(k, OpInsert, err))
	}
	if err := e.gw.Insert(ctx, k, clean); err != nil {
		return e.fail(writeFailure(k, OpInsert, err))
	}
	return e.afterWrite(ctx, k)
}

// Update forwards only the fields that differ from the Store's copy. Nothing
// changed is a successful no-op.
func (e *Engine) Update(ctx context.Context, k domain.Kind, id string, fields domain.Record) error {
	if !k.Valid() {
		return e.fail(invalidInput(k, OpUpdate, errors.New("unknown entity kind")))
	}
	current, ok := e.store.current(k, id)
	if !ok {
		return e.fail(notFound(k, OpUpdate, id))
	}
	changed, err := changedFields(k, current, fields)
	if err != nil {
		return e.fail(invalidInput(k, OpUpdate, err))
	}
	if len(changed) == 0 {
		return nil
	}
	if err := e.gw.Update(ctx, k, id, changed); err != nil {
		return e.fail(writeFailure(k, OpUpdate, err))
	}
	return e.afterWrite(ctx, k)
}

// Delete removes a record. Directors and creators go through the
// referential guard first.
func (e *Engine) Delete(ctx context.Context, k domain.Kind, id string) error {
	switch k {
	case domain.KindDirectors:
		return e.DeletePerson(ctx, domain.RoleDirector, id)
	case domain.KindCreators:
		return e.DeletePerson(ctx, domain.RoleCreator, id)
	}
	if !k.Valid() {
		return e.fail(invalidInput(k, OpDelete, errors.New("unknown entity kind")))
	}
	return e.delete(ctx, k, id)
}

func (e *Engine) delete(ctx context.Context, k domain.Kind, id string) error {
	if err := e.gw.Delete(ctx, k, id); err != nil {
		return e.fail(writeFailure(k, OpDelete, err))
	}
	if err := e.afterWrite(ctx, k); err != nil {
		return err
	}
	// The store drops a project's tasks with it.
	if k == domain.KindProjects {
		return e.afterWrite(ctx, domain.KindTasks)
	}
	return nil
}

func (e *Engine) afterWrite(ctx context.Context, k domain.Kind) error {
	if err := e.refresh(ctx, k); err != nil {
		return e.fail(refreshFailure(k, err))
	}
	return nil
}

// fail logs f, raises its message and returns it.
func (e *Engine) fail(f *Failure) error {
	e.logger.Warn("operation failed",
		zap.String("code", string(f.Code)),
		zap.String("kind", string(f.Kind)),
		zap.String("op", string(f.Op)),
		zap.Error(f.Cause))
	e.notifier.Raise(f.Message)
	return f
}

// NewTask is the user input for a task row. Assignee, default status and
// index label are filled from the project and category.
type NewTask struct {
	Category   domain.Category
	Title      string
	IndexLabel string
	DueDate    string
	Status     string
}

// AddTask creates a task on projectID with the assignee seeded from the
// project's director.
func (e *Engine) AddTask(ctx context.Context, projectID string, in NewTask) error {
	p, ok := e.store.Project(projectID)
	if !ok {
		return e.fail(notFound(domain.KindProjects, OpInsert, projectID))
	}
	rec := domain.Record{
		"project_id":  p.ID,
		"category":    string(in.Category),
		"index_label": in.IndexLabel,
		"title":       in.Title,
		"status":      in.Status,
		"due_date":    in.DueDate,
		"assignee":    p.Director,
	}
	return e.Insert(ctx, domain.KindTasks, rec)
}

func (e *Engine) UpdateTask(ctx context.Context, id string, fields domain.Record) error {
	return e.Update(ctx, domain.KindTasks, id, fields)
}

// ToggleTask flips a checklist task between TODO and DONE.
func (e *Engine) ToggleTask(ctx context.Context, id string) error {
	t, ok := e.store.Task(id)
	if !ok {
		return e.fail(notFound(domain.KindTasks, OpUpdate, id))
	}
	if t.Category == domain.CategoryOpExec {
		return e.fail(invalidInput(domain.KindTasks, OpUpdate, errors.New("post rows have no checklist state")))
	}
	return e.Update(ctx, domain.KindTasks, id, domain.Record{"status": domain.ToggleChecklist(t.Status)})
}

func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	return e.delete(ctx, domain.KindTasks, id)
}

// SaveProject inserts p when it has no id and updates it otherwise.
func (e *Engine) SaveProject(ctx context.Context, p domain.Project) error {
	if p.ID == "" {
		return e.Insert(ctx, domain.KindProjects, p.Record())
	}
	return e.Update(ctx, domain.KindProjects, p.ID, p.Record())
}

func (e *Engine) DeleteProject(ctx context.Context, id string) error {
	return e.delete(ctx, domain.KindProjects, id)
}

// SavePerson inserts or updates a director or creator.
func (e *Engine) SavePerson(ctx context.Context, r domain.Role, p domain.Person) error {
	if p.ID == "" {
		return e.Insert(ctx, r.Kind(), p.Record())
	}
	return e.Update(ctx, r.Kind(), p.ID, p.Record())
}

// DeletePerson refuses while any project references the person by name.
func (e *Engine) DeletePerson(ctx context.Context, r domain.Role, id string) error {
	person, ok := e.store.Person(r, id)
	if !ok {
		return e.fail(notFound(r.Kind(), OpDelete, id))
	}
	if blocking, msg := CanDelete(r, person, e.store.Projects()); len(blocking) > 0 {
		return e.fail(referentialConflict(r, blocking, msg))
	}
	return e.delete(ctx, r.Kind(), id)
}

// persistNextShoot writes the autosave pair as-is, without diffing against
// the optimistically patched Store, then reloads projects.
func (e *Engine) persistNextShoot(ctx context.Context, projectID string, d Draft) error {
	fields := domain.Record{"next_shoot_count": d.Count, "next_shoot_date": d.Date}
	if err := domain.ValidateFields(domain.KindProjects, fields); err != nil {
		return e.fail(&Failure{
			Code:    CodeAutosavePersistFailure,
			Kind:    domain.KindProjects,
			Op:      OpPersist,
			Message: "next shoot save failed: " + err.Error(),
			Cause:   err,
		})
	}
	if err := e.gw.Update(ctx, domain.KindProjects, projectID, fields); err != nil {
		return e.fail(&Failure{
			Code:    CodeAutosavePersistFailure,
			Kind:    domain.KindProjects,
			Op:      OpPersist,
			Message: "next shoot save failed",
			Cause:   err,
		})
	}
	return e.afterWrite(ctx, domain.KindProjects)
}
