// README: Token store backed by the users table.
package notify

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"carpool/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) FCMTokens(ctx context.Context, users []types.ID) (map[types.ID]string, error) {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = string(u)
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, fcm_token FROM users
		WHERE id = ANY($1) AND fcm_token IS NOT NULL AND fcm_token <> ''`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ID]string, len(users))
	for rows.Next() {
		var id, token string
		if err := rows.Scan(&id, &token); err != nil {
			return nil, err
		}
		out[types.ID(id)] = token
	}
	return out, rows.Err()
}
