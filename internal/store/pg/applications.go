package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (s *Store) Create(ctx context.Context, name string) (*repository.Application, error) {
	const q = `
		INSERT INTO applications (id, name)
		VALUES ($1, $2)
		RETURNING id, name, created_at`

	var app repository.Application
	err := s.pool.QueryRow(ctx, q, uuid.NewString(), name).
		Scan(&app.ID, &app.Name, &app.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	app.Capabilities = []string{}
	return &app, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*repository.Application, error) {
	const q = `SELECT id, name, created_at FROM applications WHERE id = $1`
	return s.getApplication(ctx, q, id)
}

func (s *Store) GetByName(ctx context.Context, name string) (*repository.Application, error) {
	const q = `SELECT id, name, created_at FROM applications WHERE name = $1`
	return s.getApplication(ctx, q, name)
}

func (s *Store) getApplication(ctx context.Context, q, arg string) (*repository.Application, error) {
	var app repository.Application
	err := s.pool.QueryRow(ctx, q, arg).Scan(&app.ID, &app.Name, &app.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	caps, err := s.listCapabilities(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	app.Capabilities = caps
	return &app, nil
}

func (s *Store) List(ctx context.Context) ([]repository.Application, error) {
	const q = `SELECT id, name, created_at FROM applications ORDER BY name`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.Application{}
	for rows.Next() {
		var app repository.Application
		if err := rows.Scan(&app.ID, &app.Name, &app.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		caps, err := s.listCapabilities(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Capabilities = caps
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	// Capabilities and grants cascade via FK.
	const q = `DELETE FROM applications WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) AddCapability(ctx context.Context, id, capability string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	const q = `INSERT INTO capabilities (application_id, capability) VALUES ($1, $2)`
	if _, err := s.pool.Exec(ctx, q, id, capability); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) RemoveCapability(ctx context.Context, id, capability string) error {
	const q = `DELETE FROM capabilities WHERE application_id = $1 AND capability = $2`

	tag, err := s.pool.Exec(ctx, q, id, capability)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) listCapabilities(ctx context.Context, appID string) ([]string, error) {
	const q = `SELECT capability FROM capabilities WHERE application_id = $1 ORDER BY capability`

	rows, err := s.pool.Query(ctx, q, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
