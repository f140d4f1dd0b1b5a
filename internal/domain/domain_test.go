package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryStatusDomain(t *testing.T) {
	assert.True(t, CategoryOpExec.AllowsStatus(StatusUnedited))
	assert.True(t, CategoryOpExec.AllowsStatus(StatusPosted))
	assert.False(t, CategoryOpExec.AllowsStatus(StatusDone))

	for _, c := range []Category{CategoryPreShoot, CategoryOpPrep} {
		assert.True(t, c.AllowsStatus(StatusTodo), c)
		assert.True(t, c.AllowsStatus(StatusDone), c)
		assert.False(t, c.AllowsStatus(StatusFixed), c)
		assert.Equal(t, StatusTodo, c.DefaultStatus())
		assert.Equal(t, "", c.IndexLabel(""))
	}

	assert.Equal(t, StatusUnedited, CategoryOpExec.DefaultStatus())
	assert.Equal(t, DefaultIndexLabel, CategoryOpExec.IndexLabel(""))
	assert.Equal(t, "#3", CategoryOpExec.IndexLabel("#3"))
	assert.False(t, Category("OTHER").Valid())
}

func TestStatusesReturnsCopy(t *testing.T) {
	s := CategoryOpExec.Statuses()
	s[0] = "mutated"
	assert.Equal(t, StatusUnedited, CategoryOpExec.Statuses()[0])
}

func TestToggleChecklist(t *testing.T) {
	assert.Equal(t, StatusDone, ToggleChecklist(StatusTodo))
	assert.Equal(t, StatusTodo, ToggleChecklist(StatusDone))
	assert.Equal(t, StatusDone, ToggleChecklist(""))
}

func TestProjectApply(t *testing.T) {
	p := Project{ID: "p1", Client: "Acme", NextShootCount: "1"}
	got := p.Apply(Record{"next_shoot_count": "3", "id": "hijack", "bogus": "x"})
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, "3", got.NextShootCount)
	assert.Equal(t, "Acme", got.Client)
}

func TestRecordRoundTripKeepsIDs(t *testing.T) {
	r := Record{"id": "t1", "project_id": "p1", "category": "OP_EXEC", "title": "ep 1", "created_at": "2024-01-01T00:00:00Z"}
	task := TaskFromRecord(r)
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, CategoryOpExec, task.Category)
	assert.NotContains(t, task.Record(), "id")
}

func TestValidateFields(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		fields Record
		field  string
	}{
		{name: "ok project", kind: KindProjects, fields: Record{"client": "Acme", "next_shoot_count": "2", "next_shoot_date": "2024-05-01", "start_month": "2024-04"}},
		{name: "empty optional", kind: KindProjects, fields: Record{"next_shoot_count": "", "next_shoot_date": ""}},
		{name: "zero count", kind: KindProjects, fields: Record{"next_shoot_count": "0"}, field: "next_shoot_count"},
		{name: "text count", kind: KindProjects, fields: Record{"next_shoot_count": "three"}, field: "next_shoot_count"},
		{name: "bad date", kind: KindProjects, fields: Record{"next_shoot_date": "05/01/2024"}, field: "next_shoot_date"},
		{name: "bad month", kind: KindProjects, fields: Record{"expiry_month": "2024-5"}, field: "expiry_month"},
		{name: "blank client", kind: KindProjects, fields: Record{"client": "  "}, field: "client"},
		{name: "unknown column", kind: KindDirectors, fields: Record{"client": "x"}, field: "client"},
		{name: "bad category", kind: KindTasks, fields: Record{"category": "LATER"}, field: "category"},
		{name: "bad due date", kind: KindTasks, fields: Record{"due_date": "tomorrow"}, field: "due_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFields(tt.kind, tt.fields)
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var fe FieldError
			require.True(t, errors.As(err, &fe), "want FieldError, got %v", err)
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestValidateFieldsUnknownKind(t *testing.T) {
	require.Error(t, ValidateFields(Kind("shoots"), Record{}))
}

func TestRoleKind(t *testing.T) {
	assert.Equal(t, KindCreators, RoleCreator.Kind())
	assert.Equal(t, KindDirectors, RoleDirector.Kind())
	assert.Equal(t, RoleCreator, ParseRole("creator"))
	assert.Equal(t, RoleDirector, ParseRole("anything"))
}
