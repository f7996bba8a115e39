package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/consentgate/internal/domain/repository"
)

// Grant upserts a consent grant. The tuple unique constraint makes the
// check-then-write atomic; the no-op DO UPDATE returns the surviving row so
// an idempotent re-grant keeps its original id and granted_at.
func (s *Store) Grant(ctx context.Context, t repository.ConsentTuple) (*repository.ConsentGrant, error) {
	const q = `
		INSERT INTO user_consents (id, user_id, requesting_app_id, destination_app_id, capability)
		SELECT $1, $2, ra.id, da.id, $5
		FROM applications ra, applications da
		WHERE ra.name = $3 AND da.name = $4
		ON CONFLICT (user_id, requesting_app_id, destination_app_id, capability)
		DO UPDATE SET capability = excluded.capability
		RETURNING id, granted_at`

	g := repository.ConsentGrant{
		UserID:             t.UserID,
		RequestingAppName:  t.RequestingAppName,
		DestinationAppName: t.DestinationAppName,
		Capability:         t.Capability,
	}
	err := s.pool.QueryRow(ctx, q,
		uuid.NewString(), t.UserID, t.RequestingAppName, t.DestinationAppName, t.Capability).
		Scan(&g.ID, &g.GrantedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The INSERT..SELECT matched no application rows.
			return nil, repository.ErrUnknownApplication
		}
		return nil, err
	}
	return &g, nil
}

func (s *Store) IsGranted(ctx context.Context, t repository.ConsentTuple) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM user_consents c
			JOIN applications ra ON ra.id = c.requesting_app_id
			JOIN applications da ON da.id = c.destination_app_id
			WHERE c.user_id = $1 AND ra.name = $2 AND da.name = $3 AND c.capability = $4
		)`

	var granted bool
	err := s.pool.QueryRow(ctx, q,
		t.UserID, t.RequestingAppName, t.DestinationAppName, t.Capability).Scan(&granted)
	if err != nil {
		return false, err
	}
	return granted, nil
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]repository.ConsentGrant, error) {
	const q = `
		SELECT c.id, c.user_id, ra.name, da.name, c.capability, c.granted_at
		FROM user_consents c
		JOIN applications ra ON ra.id = c.requesting_app_id
		JOIN applications da ON da.id = c.destination_app_id
		WHERE c.user_id = $1
		ORDER BY c.granted_at ASC, c.id ASC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.ConsentGrant{}
	for rows.Next() {
		var g repository.ConsentGrant
		if err := rows.Scan(&g.ID, &g.UserID, &g.RequestingAppName,
			&g.DestinationAppName, &g.Capability, &g.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) Revoke(ctx context.Context, t repository.ConsentTuple) error {
	const q = `
		DELETE FROM user_consents c
		USING applications ra, applications da
		WHERE ra.id = c.requesting_app_id AND da.id = c.destination_app_id
		  AND c.user_id = $1 AND ra.name = $2 AND da.name = $3 AND c.capability = $4`

	// Revoke is idempotent: zero rows affected is still success.
	_, err := s.pool.Exec(ctx, q,
		t.UserID, t.RequestingAppName, t.DestinationAppName, t.Capability)
	return err
}

func (s *Store) ClearUser(ctx context.Context, userID string) (int, error) {
	const q = `DELETE FROM user_consents WHERE user_id = $1`

	tag, err := s.pool.Exec(ctx, q, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ClearAll(ctx context.Context) (int, error) {
	const q = `DELETE FROM user_consents`

	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
