package engine

import (
	"fmt"
	"slices"
	"sync"

	"shootboard/internal/domain"
)

// Store holds the session copies of the four collections. Replace swaps a
// collection wholesale; nothing merges. Readers get copies.
type Store struct {
	mu        sync.RWMutex
	projects  []domain.Project
	// listed is projects as last loaded, without autosave patches.
	listed    []domain.Project
	tasks     []domain.Task
	directors []domain.Person
	creators  []domain.Person
}

func NewStore() *Store {
	return &Store{}
}

// Replace decodes records and installs them as the kind's collection.
func (s *Store) Replace(k domain.Kind, records []domain.Record) error {
	switch k {
	case domain.KindProjects:
		items := make([]domain.Project, 0, len(records))
		for _, r := range records {
			items = append(items, domain.ProjectFromRecord(r))
		}
		s.mu.Lock()
		s.projects = items
		s.listed = items
		s.mu.Unlock()
	case domain.KindTasks:
		items := make([]domain.Task, 0, len(records))
		for _, r := range records {
			items = append(items, domain.TaskFromRecord(r))
		}
		s.mu.Lock()
		s.tasks = items
		s.mu.Unlock()
	case domain.KindDirectors, domain.KindCreators:
		items := make([]domain.Person, 0, len(records))
		for _, r := range records {
			items = append(items, domain.PersonFromRecord(r))
		}
		s.mu.Lock()
		if k == domain.KindDirectors {
			s.directors = items
		} else {
			s.creators = items
		}
		s.mu.Unlock()
	default:
		return fmt.Errorf("unknown entity kind %q", k)
	}
	return nil
}

func (s *Store) Projects() []domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.projects)
}

func (s *Store) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

func (s *Store) Directors() []domain.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.directors)
}

func (s *Store) Creators() []domain.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.creators)
}

// People returns the collection for a role.
func (s *Store) People(r domain.Role) []domain.Person {
	if r == domain.RoleCreator {
		return s.Creators()
	}
	return s.Directors()
}

// Records re-encodes a collection in wire form, ids included.
func (s *Store) Records(k domain.Kind) []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Record
	switch k {
	case domain.KindProjects:
		for _, p := range s.projects {
			out = append(out, withIdentity(p.Record(), p.ID, p.CreatedAt))
		}
	case domain.KindTasks:
		for _, t := range s.tasks {
			out = append(out, withIdentity(t.Record(), t.ID, t.CreatedAt))
		}
	case domain.KindDirectors:
		for _, p := range s.directors {
			out = append(out, withIdentity(p.Record(), p.ID, p.CreatedAt))
		}
	case domain.KindCreators:
		for _, p := range s.creators {
			out = append(out, withIdentity(p.Record(), p.ID, p.CreatedAt))
		}
	}
	return out
}

func withIdentity(r domain.Record, id, createdAt string) domain.Record {
	r["id"] = id
	if createdAt != "" {
		r["created_at"] = createdAt
	}
	return r
}

func (s *Store) Project(id string) (domain.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CurrentProject(s.projects, id)
}

func (s *Store) Task(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

func (s *Store) Person(r domain.Role, id string) (domain.Person, bool) {
	for _, p := range s.People(r) {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Person{}, false
}

// current returns the Store's copy of a record in wire form. Projects come
// from the last load, so an unsaved next-shoot draft does not count as stored.
func (s *Store) current(k domain.Kind, id string) (domain.Record, bool) {
	switch k {
	case domain.KindProjects:
		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, p := range s.listed {
			if p.ID == id {
				return p.Record(), true
			}
		}
		return domain.Project{}.Record(), false
	case domain.KindTasks:
		t, ok := s.Task(id)
		return t.Record(), ok
	case domain.KindDirectors:
		p, ok := s.Person(domain.RoleDirector, id)
		return p.Record(), ok
	case domain.KindCreators:
		p, ok := s.Person(domain.RoleCreator, id)
		return p.Record(), ok
	}
	return nil, false
}

// patchProject overwrites fields on one project in place. Only the autosave
// controller calls it, for the next-shoot pair.
func (s *Store) patchProject(id string, fields domain.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.projects {
		if p.ID == id {
			next := slices.Clone(s.projects)
			next[i] = p.Apply(fields)
			s.projects = next
			return true
		}
	}
	return false
}
