package domain

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Record is the wire form of a row: column name to text value. The store
// assigns "id" (and "created_at") on insert.
type Record map[string]string

// Clone returns an independent copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Columns returns the writable columns for a kind, excluding id and created_at.
func Columns(k Kind) []string {
	switch k {
	case KindProjects:
		return []string{"client", "director", "assigned_creator", "contract_month", "start_month", "expiry_month", "memo", "next_shoot_count", "next_shoot_date"}
	case KindTasks:
		return []string{"project_id", "category", "index_label", "title", "status", "due_date", "assignee"}
	case KindDirectors, KindCreators:
		return []string{"name", "email", "note"}
	}
	return nil
}

// HasColumn reports whether col is a writable column of k.
func HasColumn(k Kind, col string) bool {
	return slices.Contains(Columns(k), col)
}

func ProjectFromRecord(r Record) Project {
	return Project{
		ID:              r["id"],
		Client:          r["client"],
		Director:        r["director"],
		AssignedCreator: r["assigned_creator"],
		ContractMonth:   r["contract_month"],
		StartMonth:      r["start_month"],
		ExpiryMonth:     r["expiry_month"],
		Memo:            r["memo"],
		NextShootCount:  r["next_shoot_count"],
		NextShootDate:   r["next_shoot_date"],
		CreatedAt:       r["created_at"],
	}
}

// Record returns the writable fields of p.
func (p Project) Record() Record {
	return Record{
		"client":           p.Client,
		"director":         p.Director,
		"assigned_creator": p.AssignedCreator,
		"contract_month":   p.ContractMonth,
		"start_month":      p.StartMonth,
		"expiry_month":     p.ExpiryMonth,
		"memo":             p.Memo,
		"next_shoot_count": p.NextShootCount,
		"next_shoot_date":  p.NextShootDate,
	}
}

// Apply returns p with the given fields overwritten. Unknown keys are ignored.
func (p Project) Apply(fields Record) Project {
	r := p.Record()
	for k, v := range fields {
		if _, ok := r[k]; ok {
			r[k] = v
		}
	}
	r["id"] = p.ID
	r["created_at"] = p.CreatedAt
	return ProjectFromRecord(r)
}

func TaskFromRecord(r Record) Task {
	return Task{
		ID:         r["id"],
		ProjectID:  r["project_id"],
		Category:   Category(r["category"]),
		IndexLabel: r["index_label"],
		Title:      r["title"],
		Status:     r["status"],
		DueDate:    r["due_date"],
		Assignee:   r["assignee"],
		CreatedAt:  r["created_at"],
	}
}

func (t Task) Record() Record {
	return Record{
		"project_id":  t.ProjectID,
		"category":    string(t.Category),
		"index_label": t.IndexLabel,
		"title":       t.Title,
		"status":      t.Status,
		"due_date":    t.DueDate,
		"assignee":    t.Assignee,
	}
}

func PersonFromRecord(r Record) Person {
	return Person{
		ID:        r["id"],
		Name:      r["name"],
		Email:     r["email"],
		Note:      r["note"],
		CreatedAt: r["created_at"],
	}
}

func (p Person) Record() Record {
	return Record{
		"name":  p.Name,
		"email": p.Email,
		"note":  p.Note,
	}
}

// FieldError reports a field that failed validation.
type FieldError struct {
	Kind  Kind
	Field string
	Msg   string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("invalid %s.%s: %s", e.Kind, e.Field, e.Msg)
}

var (
	dateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	monthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)
)

// ValidateFields checks column names and per-column formats. It does not
// check cross-field rules such as the category/status pairing.
func ValidateFields(k Kind, fields Record) error {
	if !k.Valid() {
		return fmt.Errorf("unknown entity kind %q", k)
	}
	for _, col := range slices.Sorted(maps.Keys(fields)) {
		v := fields[col]
		if !HasColumn(k, col) {
			return FieldError{Kind: k, Field: col, Msg: "unknown field"}
		}
		switch col {
		case "next_shoot_count":
			if v == "" {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return FieldError{Kind: k, Field: col, Msg: "must be a positive integer"}
			}
		case "next_shoot_date", "due_date":
			if v != "" && !dateRe.MatchString(v) {
				return FieldError{Kind: k, Field: col, Msg: "must be YYYY-MM-DD"}
			}
		case "contract_month", "start_month", "expiry_month":
			if v != "" && !monthRe.MatchString(v) {
				return FieldError{Kind: k, Field: col, Msg: "must be YYYY-MM"}
			}
		case "client", "name", "project_id":
			if strings.TrimSpace(v) == "" {
				return FieldError{Kind: k, Field: col, Msg: "is required"}
			}
		case "category":
			if !Category(v).Valid() {
				return FieldError{Kind: k, Field: col, Msg: "must be one of PRE_SHOOT, OP_EXEC, OP_PREP"}
			}
		}
	}
	return nil
}

// RequiredOnInsert lists the fields that must be present when creating a record.
func RequiredOnInsert(k Kind) []string {
	switch k {
	case KindProjects:
		return []string{"client"}
	case KindTasks:
		return []string{"project_id", "category"}
	case KindDirectors, KindCreators:
		return []string{"name"}
	}
	return nil
}
