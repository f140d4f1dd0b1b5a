package shootboardsdk_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"shootboard/internal/db"
	"shootboard/internal/domain"
	"shootboard/internal/engine"
	"shootboard/internal/migrate"
	"shootboard/internal/repo"
	"shootboard/internal/server"
	shootboardsdk "shootboard/sdk/go"
)

func newClient(t *testing.T, secret string) *shootboardsdk.Client {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn, db.SQLite))

	logger := zaptest.NewLogger(t)
	handler, err := server.New(server.Config{
		Repo:   repo.New(conn, db.SQLite, logger),
		Auth:   server.AuthConfig{JWTSecret: secret},
		Logger: logger,
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return shootboardsdk.New(srv.URL)
}

func TestClientRoundTrip(t *testing.T) {
	c := newClient(t, "")
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))
	id, err := c.Create(ctx, domain.KindCreators, domain.Record{"name": "Ken"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, c.Update(ctx, domain.KindCreators, id, domain.Record{"note": "drone"}))
	items, err := c.List(ctx, domain.KindCreators)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "drone", items[0]["note"])

	evts, err := c.Events(ctx, 10, "creators", id)
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, "creators.update", evts[0].Type)

	require.NoError(t, c.Delete(ctx, domain.KindCreators, id))
	err = c.Delete(ctx, domain.KindCreators, id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shootboardsdk.ErrNotFound))

	var apiErr *shootboardsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestClientBadRequest(t *testing.T) {
	c := newClient(t, "")
	err := c.Insert(context.Background(), domain.KindTasks, domain.Record{"project_id": "p1", "category": "NOPE"})

	var apiErr *shootboardsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, "bad_request", apiErr.Code)
	assert.Contains(t, apiErr.Message, "category")
}

func TestClientBearerToken(t *testing.T) {
	c := newClient(t, "s3cret")
	ctx := context.Background()

	_, err := c.List(ctx, domain.KindProjects)
	var apiErr *shootboardsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)

	c.BearerToken, err = server.MintToken("s3cret", "ken", 0)
	require.NoError(t, err)
	_, err = c.List(ctx, domain.KindProjects)
	assert.NoError(t, err)
}

func TestEngineOverHTTP(t *testing.T) {
	c := newClient(t, "")
	ctx := context.Background()
	eng := engine.New(c, engine.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, eng.LoadAll(ctx))

	require.NoError(t, eng.SavePerson(ctx, domain.RoleDirector, domain.Person{Name: "Aoi"}))
	require.NoError(t, eng.SaveProject(ctx, domain.Project{Client: "Acme", Director: "Aoi"}))
	projects := eng.Store().Projects()
	require.Len(t, projects, 1)

	require.NoError(t, eng.AddTask(ctx, projects[0].ID, engine.NewTask{Category: domain.CategoryOpExec, Title: "ep1"}))
	tasks := eng.Store().Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "NEW", tasks[0].IndexLabel)
	assert.Equal(t, domain.StatusUnedited, tasks[0].Status)
	assert.Equal(t, "Aoi", tasks[0].Assignee)

	director := eng.Store().Directors()[0]
	err := eng.DeletePerson(ctx, domain.RoleDirector, director.ID)
	assert.True(t, errors.Is(err, engine.ErrReferentialConflict))

	require.NoError(t, eng.DeleteProject(ctx, projects[0].ID))
	assert.Empty(t, eng.Store().Tasks())
	require.NoError(t, eng.DeletePerson(ctx, domain.RoleDirector, director.ID))
	assert.Empty(t, eng.Store().Directors())
}
