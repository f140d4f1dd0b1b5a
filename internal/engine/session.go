package engine

import (
	"context"
	"sync"

	"shootboard/internal/domain"
)

// Session is the application state behind one screen: the open project,
// the autosave controller for it, and the pre-shoot board toggle.
type Session struct {
	eng      *Engine
	autosave *Autosave

	mu           sync.RWMutex
	openID       string
	showPreShoot bool
}

func NewSession(eng *Engine, cfg AutosaveConfig) *Session {
	return &Session{eng: eng, autosave: NewAutosave(eng, cfg)}
}

func (s *Session) Engine() *Engine {
	return s.eng
}

func (s *Session) Autosave() *Autosave {
	return s.autosave
}

// Open navigates to projectID. A project missing from the Store leaves the
// session with no current project and returns false.
func (s *Session) Open(projectID string) bool {
	s.mu.Lock()
	s.openID = projectID
	s.mu.Unlock()
	return s.autosave.Open(projectID)
}

// Leave returns to the dashboard.
func (s *Session) Leave() {
	s.mu.Lock()
	s.openID = ""
	s.mu.Unlock()
	s.autosave.Close()
}

func (s *Session) OpenID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openID
}

func (s *Session) CurrentProject() (domain.Project, bool) {
	return CurrentProject(s.eng.store.Projects(), s.OpenID())
}

// Board returns the open project's tasks for one category.
func (s *Session) Board(c domain.Category) []domain.Task {
	return TasksForBoard(s.eng.store.Tasks(), s.OpenID(), c)
}

// Boards lists the categories to render for the open project.
func (s *Session) Boards() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return BoardCategories(s.showPreShoot)
}

// TogglePreShoot flips the pre-shoot board visibility and returns the new value.
func (s *Session) TogglePreShoot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showPreShoot = !s.showPreShoot
	return s.showPreShoot
}

func (s *Session) Dashboard() []CreatorGroup {
	return ProjectsByCreator(s.eng.store.Projects(), s.eng.store.Creators())
}

// AddTask adds a task to the open project.
func (s *Session) AddTask(ctx context.Context, in NewTask) error {
	return s.eng.AddTask(ctx, s.OpenID(), in)
}
