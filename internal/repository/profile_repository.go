package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/domain"
	relay_errors "chatrelay/pkg/errors"
)

const profileColumns = "id, username, display_name, avatar_url, bio, status, is_online, last_seen, created_at"

type PostgresProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) ProfileRepository {
	return &PostgresProfileRepository{db: db}
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.Username, &p.DisplayName, &p.AvatarURL, &p.Bio, &p.Status, &p.IsOnline, &p.LastSeen, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, relay_errors.ErrNotFound
		}
		return domain.Profile{}, err
	}
	return p, nil
}

func (r *PostgresProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Profile, error) {
	row := r.db.QueryRow(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id)
	return scanProfile(row)
}

func (r *PostgresProfileRepository) Update(ctx context.Context, id uuid.UUID, patch domain.ProfilePatch) (domain.Profile, error) {
	if patch.IsEmpty() {
		return domain.Profile{}, relay_errors.ErrInvalidInput
	}

	cols := make([]string, 0, 4)
	args := make([]interface{}, 0, 5)
	args = append(args, id)
	if patch.DisplayName != nil {
		cols = append(cols, "display_name")
		args = append(args, *patch.DisplayName)
	}
	if patch.AvatarURL != nil {
		cols = append(cols, "avatar_url")
		args = append(args, *patch.AvatarURL)
	}
	if patch.Bio != nil {
		cols = append(cols, "bio")
		args = append(args, *patch.Bio)
	}
	if patch.Status != nil {
		cols = append(cols, "status")
		args = append(args, *patch.Status)
	}

	set, args := buildSetClause(2, cols, args)
	row := r.db.QueryRow(ctx,
		"UPDATE profiles SET "+set+" WHERE id = $1 RETURNING "+profileColumns, args...)
	return scanProfile(row)
}

func (r *PostgresProfileRepository) SearchUsers(ctx context.Context, query string, excludeUserID uuid.UUID, limit int) ([]domain.Profile, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles
		 WHERE (username ILIKE $1 OR display_name ILIKE $1) AND id <> $2
		 ORDER BY username LIMIT $3`,
		pattern, excludeUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *PostgresProfileRepository) SetOnline(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "UPDATE profiles SET is_online = TRUE WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresProfileRepository) SetOffline(ctx context.Context, id uuid.UUID, lastSeen time.Time) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE profiles SET is_online = FALSE, last_seen = $2 WHERE id = $1", id, lastSeen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresProfileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM profiles WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}
