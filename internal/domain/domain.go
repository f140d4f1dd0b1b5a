package domain

// Kind names one of the four tracked collections. The value doubles as the
// table name in the store and the path segment in the HTTP API.
type Kind string

const (
	KindProjects  Kind = "projects"
	KindTasks     Kind = "tasks"
	KindDirectors Kind = "directors"
	KindCreators  Kind = "creators"
)

// Kinds lists every entity kind in load order.
func Kinds() []Kind {
	return []Kind{KindProjects, KindTasks, KindDirectors, KindCreators}
}

// Valid reports whether k is a tracked kind.
func (k Kind) Valid() bool {
	switch k {
	case KindProjects, KindTasks, KindDirectors, KindCreators:
		return true
	}
	return false
}

// Singular is used in user-facing messages ("task update failed").
func (k Kind) Singular() string {
	switch k {
	case KindProjects:
		return "project"
	case KindTasks:
		return "task"
	case KindDirectors:
		return "director"
	case KindCreators:
		return "creator"
	}
	return string(k)
}

// Role distinguishes the two person collections.
type Role string

const (
	RoleDirector Role = "director"
	RoleCreator  Role = "creator"
)

// Kind returns the collection holding people of this role.
func (r Role) Kind() Kind {
	if r == RoleCreator {
		return KindCreators
	}
	return KindDirectors
}

// ParseRole maps "creator" to RoleCreator and anything else to RoleDirector.
func ParseRole(s string) Role {
	if s == string(RoleCreator) {
		return RoleCreator
	}
	return RoleDirector
}

// Project is a client engagement. Director and AssignedCreator hold person
// names, not ids; renaming a person does not cascade here.
type Project struct {
	ID              string `json:"id"`
	Client          string `json:"client"`
	Director        string `json:"director"`
	AssignedCreator string `json:"assigned_creator"`
	ContractMonth   string `json:"contract_month"`
	StartMonth      string `json:"start_month"`
	ExpiryMonth     string `json:"expiry_month"`
	Memo            string `json:"memo"`
	NextShootCount  string `json:"next_shoot_count"`
	NextShootDate   string `json:"next_shoot_date"`
	CreatedAt       string `json:"created_at,omitempty" format:"date-time"`
}

type Task struct {
	ID         string   `json:"id"`
	ProjectID  string   `json:"project_id"`
	Category   Category `json:"category" enum:"PRE_SHOOT,OP_EXEC,OP_PREP"`
	IndexLabel string   `json:"index_label"`
	Title      string   `json:"title"`
	Status     string   `json:"status"`
	DueDate    string   `json:"due_date"`
	Assignee   string   `json:"assignee"`
	CreatedAt  string   `json:"created_at,omitempty" format:"date-time"`
}

// Person is a director or a creator; both collections share one shape.
type Person struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Note      string `json:"note"`
	CreatedAt string `json:"created_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
