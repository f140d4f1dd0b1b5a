package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shootboard/internal/db"
	"shootboard/internal/domain"
	"shootboard/internal/events"
)

// Repo is the SQL-backed authoritative store. It implements the engine's
// Gateway contract and knows nothing about the sync rules layered on top.
type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
	Events  events.Writer
	Logger  *zap.Logger
	Now     func() time.Time
	NewID   func() string
}

// createdAtLayout is fixed width so rows sort by creation as text.
const createdAtLayout = "2006-01-02T15:04:05.000000Z"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnknownKind  = errors.New("unknown entity kind")
	ErrUnknownField = errors.New("unknown field")
)

// New returns a Repo with default clock, id source and event writer.
func New(conn *sql.DB, d db.Dialect, logger *zap.Logger) Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Repo{
		DB:      conn,
		Dialect: d,
		Events:  events.Writer{Rebind: d.Rebind},
		Logger:  logger,
		Now:     time.Now,
		NewID:   func() string { return uuid.NewString() },
	}
}

func (r Repo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r Repo) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

func (r Repo) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}

func (r Repo) events() events.Writer {
	w := r.Events
	if w.Rebind == nil {
		w.Rebind = r.Dialect.Rebind
	}
	if w.Now == nil {
		w.Now = r.now
	}
	return w
}

func checkKind(k domain.Kind) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	return nil
}

func checkColumns(k domain.Kind, fields domain.Record) ([]string, error) {
	cols := slices.Sorted(maps.Keys(fields))
	for _, c := range cols {
		if !domain.HasColumn(k, c) {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, k, c)
		}
	}
	return cols, nil
}

// List returns every row of a kind ordered by creation.
func (r Repo) List(ctx context.Context, k domain.Kind) ([]domain.Record, error) {
	if err := checkKind(k); err != nil {
		return nil, err
	}
	cols := append([]string{"id"}, domain.Columns(k)...)
	cols = append(cols, "created_at")
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at, id`, strings.Join(cols, ","), k)
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Record{}
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(domain.Record, len(cols))
		for i, c := range cols {
			rec[c] = vals[i].String
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Get returns a single row.
func (r Repo) Get(ctx context.Context, k domain.Kind, id string) (domain.Record, error) {
	if err := checkKind(k); err != nil {
		return nil, err
	}
	cols := append([]string{"id"}, domain.Columns(k)...)
	cols = append(cols, "created_at")
	query := r.Dialect.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE id=?`, strings.Join(cols, ","), k))
	vals := make([]sql.NullString, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	err := r.DB.QueryRowContext(ctx, query, id).Scan(ptrs...)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec := make(domain.Record, len(cols))
	for i, c := range cols {
		rec[c] = vals[i].String
	}
	return rec, nil
}

// Insert satisfies the Gateway contract.
func (r Repo) Insert(ctx context.Context, k domain.Kind, rec domain.Record) error {
	_, err := r.Create(ctx, k, rec)
	return err
}

// Create inserts a row and returns the id the store assigned to it.
func (r Repo) Create(ctx context.Context, k domain.Kind, rec domain.Record) (string, error) {
	if err := checkKind(k); err != nil {
		return "", err
	}
	cols, err := checkColumns(k, rec)
	if err != nil {
		return "", err
	}
	id := r.newID()
	names := append([]string{"id"}, cols...)
	names = append(names, "created_at")
	args := []any{id}
	for _, c := range cols {
		args = append(args, rec[c])
	}
	args = append(args, r.now().UTC().Format(createdAtLayout))
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	query := r.Dialect.Rebind(fmt.Sprintf(`INSERT INTO %s(%s) VALUES (%s)`, k, strings.Join(names, ","), placeholders))

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert %s: %w", k.Singular(), err)
	}
	if err := r.events().Append(ctx, tx, string(k)+".insert", string(k), id, payload(rec)); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	r.logger().Debug("row inserted", zap.String("kind", string(k)), zap.String("id", id))
	return id, nil
}

// Update writes only the given columns.
func (r Repo) Update(ctx context.Context, k domain.Kind, id string, fields domain.Record) error {
	if err := checkKind(k); err != nil {
		return err
	}
	cols, err := checkColumns(k, fields)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	var (
		set  []string
		args []any
	)
	for _, c := range cols {
		set = append(set, c+"=?")
		args = append(args, fields[c])
	}
	args = append(args, id)
	query := r.Dialect.Rebind(fmt.Sprintf(`UPDATE %s SET %s WHERE id=?`, k, strings.Join(set, ",")))

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", k.Singular(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := r.events().Append(ctx, tx, string(k)+".update", string(k), id, payload(fields)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.logger().Debug("row updated", zap.String("kind", string(k)), zap.String("id", id), zap.Strings("fields", cols))
	return nil
}

func (r Repo) Delete(ctx context.Context, k domain.Kind, id string) error {
	if err := checkKind(k); err != nil {
		return err
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, r.Dialect.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE id=?`, k)), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", k.Singular(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := r.events().Append(ctx, tx, string(k)+".delete", string(k), id, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.logger().Debug("row deleted", zap.String("kind", string(k)), zap.String("id", id))
	return nil
}

func payload(rec domain.Record) events.EventPayload {
	p := events.EventPayload{}
	for k, v := range rec {
		p[k] = v
	}
	return p
}
