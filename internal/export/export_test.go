package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shootboard/internal/domain"
	"shootboard/internal/engine"
)

func loadedStore(t *testing.T) *engine.Store {
	t.Helper()
	s := engine.NewStore()
	require.NoError(t, s.Replace(domain.KindProjects, []domain.Record{
		{"id": "p1", "client": "Acme", "director": "Aoi", "created_at": "2024-01-01T00:00:00.000000000Z"},
	}))
	require.NoError(t, s.Replace(domain.KindTasks, []domain.Record{
		{"id": "t1", "project_id": "p1", "category": "OP_EXEC", "title": "ep1", "status": "UNEDITED", "index_label": "NEW"},
	}))
	require.NoError(t, s.Replace(domain.KindDirectors, []domain.Record{{"id": "d1", "name": "Aoi"}}))
	require.NoError(t, s.Replace(domain.KindCreators, []domain.Record{{"id": "c1", "name": "Ken"}}))
	return s
}

func TestSnapshotName(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.FixedZone("JST", 9*3600))
	snap := Take(engine.NewStore(), at)
	assert.Equal(t, "shootboard-20240501T003000Z.json", snap.Name())
}

func TestDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	snap := Take(loadedStore(t), time.Now())

	where, err := Write(context.Background(), DirSink{Dir: dir}, snap)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, snap.Name()), where)

	data, err := os.ReadFile(where)
	require.NoError(t, err)
	var got Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got.Projects, 1)
	assert.Equal(t, "Acme", got.Projects[0].Client)
	require.Len(t, got.Tasks, 1)
	assert.Equal(t, domain.CategoryOpExec, got.Tasks[0].Category)
	assert.Equal(t, "Aoi", got.Directors[0].Name)
	assert.Equal(t, "Ken", got.Creators[0].Name)
	assert.True(t, strings.HasPrefix(string(data), "{\n  "))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

type fakePutter struct {
	mu   sync.Mutex
	puts []*s3.PutObjectInput
	body []string
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, in)
	f.body = append(f.body, string(b))
	return &s3.PutObjectOutput{}, nil
}

func TestS3SinkKeys(t *testing.T) {
	cases := []struct {
		prefix string
		want   string
	}{
		{"", "snap.json"},
		{"snapshots/", "snapshots/snap.json"},
		{"/team", "team/snap.json"},
	}
	for _, tc := range cases {
		f := &fakePutter{}
		sink := NewS3SinkWithClient(f, "bucket", tc.prefix)
		where, err := sink.Put(context.Background(), "snap.json", []byte(`{}`))
		require.NoError(t, err)
		assert.Equal(t, "s3://bucket/"+tc.want, where)
		require.Len(t, f.puts, 1)
		assert.Equal(t, tc.want, aws.ToString(f.puts[0].Key))
		assert.Equal(t, "application/json", aws.ToString(f.puts[0].ContentType))
		assert.Equal(t, `{}`, f.body[0])
	}
}

func TestS3SinkError(t *testing.T) {
	f := &fakePutter{err: errors.New("access denied")}
	_, err := NewS3SinkWithClient(f, "bucket", "").Put(context.Background(), "snap.json", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://bucket/snap.json")
}

func TestNewS3SinkRequiresBucket(t *testing.T) {
	_, err := NewS3Sink(context.Background(), S3Config{})
	assert.Error(t, err)
}

// recordingTransport answers every PutObject with 200 and keeps the request.
type recordingTransport struct {
	mu   sync.Mutex
	reqs []*http.Request
	body []string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b, _ := io.ReadAll(req.Body)
	rt.mu.Lock()
	rt.reqs = append(rt.reqs, req)
	rt.body = append(rt.body, string(b))
	rt.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"ETag": {`"etag"`}},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

func TestS3SinkOverHTTP(t *testing.T) {
	rt := &recordingTransport{}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://minio.local")
	})

	snap := Take(loadedStore(t), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	where, err := Write(context.Background(), NewS3SinkWithClient(client, "shoots", "snapshots/"), snap)
	require.NoError(t, err)
	assert.Equal(t, "s3://shoots/snapshots/shootboard-20240501T000000Z.json", where)

	require.Len(t, rt.reqs, 1)
	assert.Equal(t, http.MethodPut, rt.reqs[0].Method)
	assert.Equal(t, "/shoots/snapshots/shootboard-20240501T000000Z.json", rt.reqs[0].URL.Path)
	assert.Contains(t, rt.body[0], `"client": "Acme"`)
}
