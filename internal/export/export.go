package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shootboard/internal/domain"
	"shootboard/internal/engine"
)

const timestampLayout = "20060102T150405Z"

// Snapshot is a point-in-time copy of the Entity Store.
type Snapshot struct {
	TakenAt   time.Time        `json:"taken_at"`
	Projects  []domain.Project `json:"projects"`
	Tasks     []domain.Task    `json:"tasks"`
	Directors []domain.Person  `json:"directors"`
	Creators  []domain.Person  `json:"creators"`
}

// Take copies the four collections out of s.
func Take(s *engine.Store, now time.Time) Snapshot {
	return Snapshot{
		TakenAt:   now.UTC(),
		Projects:  s.Projects(),
		Tasks:     s.Tasks(),
		Directors: s.Directors(),
		Creators:  s.Creators(),
	}
}

// Name is the object or file name the snapshot is written under.
func (s Snapshot) Name() string {
	return "shootboard-" + s.TakenAt.UTC().Format(timestampLayout) + ".json"
}

func (s Snapshot) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sink stores an encoded snapshot and returns where it went.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// Write encodes snap and hands it to sink.
func Write(ctx context.Context, sink Sink, snap Snapshot) (string, error) {
	data, err := snap.Encode()
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return sink.Put(ctx, snap.Name(), data)
}

// DirSink writes snapshots into a local directory.
type DirSink struct {
	Dir string
}

func (d DirSink) Put(_ context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(d.Dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}
