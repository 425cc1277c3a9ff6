package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mnehpets/rpcgate/auth"
)

// CreateProject stores a new project with the hash of its API key.
func (s *DB) CreateProject(ctx context.Context, code, name, keyHash string) (*auth.Project, error) {
	if code == "" {
		return nil, errors.New("store: project code is required")
	}
	if name == "" {
		name = code
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE code = ?`, code).Scan(&n); err != nil {
		return nil, fmt.Errorf("failed to check project %q: %w", code, err)
	}
	if n > 0 {
		return nil, fmt.Errorf("project %q: %w", code, ErrExists)
	}

	p := &auth.Project{Code: code, Name: name, CreatedAt: time.Now().UTC()}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO projects(code, name, api_key_hash, created_at) VALUES (?, ?, ?, ?)`,
		p.Code, p.Name, keyHash, formatTime(p.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project %q: %w", code, err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// ProjectByKeyHash implements auth.ProjectStore.
func (s *DB) ProjectByKeyHash(ctx context.Context, hash string) (*auth.Project, error) {
	return s.project(ctx, `WHERE api_key_hash = ?`, hash)
}

// ProjectByCode implements auth.ProjectStore.
func (s *DB) ProjectByCode(ctx context.Context, code string) (*auth.Project, error) {
	return s.project(ctx, `WHERE code = ?`, code)
}

// Projects lists all projects ordered by code.
func (s *DB) Projects(ctx context.Context) ([]auth.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name, created_at FROM projects ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []auth.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *DB) project(ctx context.Context, where string, arg any) (*auth.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, code, name, created_at FROM projects `+where, arg)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %w", auth.ErrProjectNotFound, ErrNotFound)
	}
	return p, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*auth.Project, error) {
	var (
		p       auth.Project
		created string
	)
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &created); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("project %q: bad created_at: %w", p.Code, err)
	}
	p.CreatedAt = t
	return &p, nil
}

var _ auth.ProjectStore = (*DB)(nil)
