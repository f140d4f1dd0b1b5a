package engine

import "shootboard/internal/domain"

// UnassignedID and UnassignedName label the dashboard bucket for projects
// whose assigned creator matches no known creator.
const (
	UnassignedID   = "none"
	UnassignedName = "未定"
)

// CreatorGroup is one dashboard column.
type CreatorGroup struct {
	Creator  domain.Person
	Projects []domain.Project
}

// Unassigned reports whether this is the synthetic bucket.
func (g CreatorGroup) Unassigned() bool {
	return g.Creator.ID == UnassignedID
}

// CurrentProject returns the first project with the given id.
func CurrentProject(projects []domain.Project, id string) (domain.Project, bool) {
	if id == "" {
		return domain.Project{}, false
	}
	for _, p := range projects {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Project{}, false
}

// TasksForBoard keeps Store order.
func TasksForBoard(tasks []domain.Task, projectID string, c domain.Category) []domain.Task {
	var out []domain.Task
	for _, t := range tasks {
		if t.ProjectID == projectID && t.Category == c {
			out = append(out, t)
		}
	}
	return out
}

// ProjectsByCreator groups projects by assigned creator name, in creator
// order, followed by the unassigned bucket. Empty groups are omitted.
func ProjectsByCreator(projects []domain.Project, creators []domain.Person) []CreatorGroup {
	known := make(map[string]int, len(creators))
	groups := make([]CreatorGroup, 0, len(creators)+1)
	for _, c := range creators {
		if _, dup := known[c.Name]; dup {
			continue
		}
		known[c.Name] = len(groups)
		groups = append(groups, CreatorGroup{Creator: c})
	}
	unassigned := CreatorGroup{Creator: domain.Person{ID: UnassignedID, Name: UnassignedName}}
	for _, p := range projects {
		if i, ok := known[p.AssignedCreator]; ok {
			groups[i].Projects = append(groups[i].Projects, p)
			continue
		}
		unassigned.Projects = append(unassigned.Projects, p)
	}
	groups = append(groups, unassigned)

	out := groups[:0]
	for _, g := range groups {
		if len(g.Projects) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// NextShootMissing drives the "未設定" header warning.
func NextShootMissing(count, date string) bool {
	return count == "" || date == ""
}

// BoardCategories lists the boards to render. The pre-shoot checklist is
// hidden unless toggled on.
func BoardCategories(showPreShoot bool) []domain.Category {
	if showPreShoot {
		return domain.Categories()
	}
	return []domain.Category{domain.CategoryOpExec, domain.CategoryOpPrep}
}
