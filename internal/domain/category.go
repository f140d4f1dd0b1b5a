package domain

import "slices"

// Category is the task board a task lives on. It never changes after creation.
type Category string

const (
	CategoryPreShoot Category = "PRE_SHOOT"
	CategoryOpExec   Category = "OP_EXEC"
	CategoryOpPrep   Category = "OP_PREP"
)

// Post statuses for the edit/posting schedule (OP_EXEC).
const (
	StatusUnedited = "未編集"
	StatusEditing  = "編集中"
	StatusFixed    = "FIX"
	StatusPosted   = "投稿済み"
)

// Checklist statuses for every other board.
const (
	StatusTodo = "TODO"
	StatusDone = "DONE"
)

// DefaultIndexLabel is given to new OP_EXEC rows created without a label.
const DefaultIndexLabel = "NEW"

var (
	postStatuses      = []string{StatusUnedited, StatusEditing, StatusFixed, StatusPosted}
	checklistStatuses = []string{StatusTodo, StatusDone}
)

// Categories lists the boards in display order.
func Categories() []Category {
	return []Category{CategoryPreShoot, CategoryOpExec, CategoryOpPrep}
}

func (c Category) Valid() bool {
	return slices.Contains(Categories(), c)
}

// Statuses returns the status domain for the category.
func (c Category) Statuses() []string {
	if c == CategoryOpExec {
		return slices.Clone(postStatuses)
	}
	return slices.Clone(checklistStatuses)
}

// AllowsStatus reports whether status belongs to the category's domain.
func (c Category) AllowsStatus(status string) bool {
	if c == CategoryOpExec {
		return slices.Contains(postStatuses, status)
	}
	return slices.Contains(checklistStatuses, status)
}

func (c Category) DefaultStatus() string {
	if c == CategoryOpExec {
		return StatusUnedited
	}
	return StatusTodo
}

// IndexLabel resolves the label stored for a new task: the given label when
// set, "NEW" for OP_EXEC, empty otherwise.
func (c Category) IndexLabel(given string) string {
	if given != "" {
		return given
	}
	if c == CategoryOpExec {
		return DefaultIndexLabel
	}
	return ""
}

// ToggleChecklist flips TODO and DONE. Anything that is not DONE becomes DONE.
func ToggleChecklist(status string) string {
	if status == StatusDone {
		return StatusTodo
	}
	return StatusDone
}
