package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/domain"
	relay_errors "chatrelay/pkg/errors"
)

const roomColumns = "id, name, description, avatar_url, is_private, created_by, created_at"

type PostgresRoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) RoomRepository {
	return &PostgresRoomRepository{db: db}
}

func scanRoom(row pgx.Row) (domain.Room, error) {
	var r domain.Room
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.AvatarURL, &r.IsPrivate, &r.CreatedBy, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Room{}, relay_errors.ErrNotFound
		}
		return domain.Room{}, err
	}
	return r, nil
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO rooms (name, description, avatar_url, is_private, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+roomColumns,
		room.Name, room.Description, room.AvatarURL, room.IsPrivate, room.CreatedBy)
	created, err := scanRoom(row)
	if err != nil {
		return err
	}
	*room = created
	return nil
}

func (r *PostgresRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Room, error) {
	row := r.db.QueryRow(ctx, "SELECT "+roomColumns+" FROM rooms WHERE id = $1", id)
	return scanRoom(row)
}

func (r *PostgresRoomRepository) Update(ctx context.Context, id uuid.UUID, patch domain.RoomPatch) (domain.Room, error) {
	if patch.IsEmpty() {
		return domain.Room{}, relay_errors.ErrInvalidInput
	}

	cols := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	args = append(args, id)
	if patch.Name != nil {
		cols = append(cols, "name")
		args = append(args, *patch.Name)
	}
	if patch.Description != nil {
		cols = append(cols, "description")
		args = append(args, *patch.Description)
	}
	if patch.AvatarURL != nil {
		cols = append(cols, "avatar_url")
		args = append(args, *patch.AvatarURL)
	}

	set, args := buildSetClause(2, cols, args)
	row := r.db.QueryRow(ctx,
		"UPDATE rooms SET "+set+" WHERE id = $1 RETURNING "+roomColumns, args...)
	return scanRoom(row)
}

func (r *PostgresRoomRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM rooms WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresRoomRepository) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]domain.Room, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.name, r.description, r.avatar_url, r.is_private, r.created_by, r.created_at
		 FROM rooms r
		 JOIN room_members m ON m.room_id = r.id
		 WHERE m.user_id = $1
		 ORDER BY r.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRooms(rows)
}

func (r *PostgresRoomRepository) SearchPublic(ctx context.Context, query string, limit int) ([]domain.Room, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+roomColumns+` FROM rooms
		 WHERE is_private = FALSE AND name ILIKE $1
		 ORDER BY name LIMIT $2`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRooms(rows)
}

func collectRooms(rows pgx.Rows) ([]domain.Room, error) {
	var result []domain.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, room)
	}
	return result, rows.Err()
}

func (r *PostgresRoomRepository) AddMember(ctx context.Context, m *domain.RoomMembership) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO room_members (room_id, user_id, role)
		 VALUES ($1, $2, $3)
		 RETURNING joined_at`,
		m.RoomID, m.UserID, m.Role)
	if err := row.Scan(&m.JoinedAt); err != nil {
		if isUniqueViolation(err) {
			return relay_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresRoomRepository) UpsertMember(ctx context.Context, m *domain.RoomMembership) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO room_members (room_id, user_id, role)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (room_id, user_id) DO UPDATE SET role = EXCLUDED.role
		 RETURNING joined_at`,
		m.RoomID, m.UserID, m.Role)
	return row.Scan(&m.JoinedAt)
}

func (r *PostgresRoomRepository) RemoveMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx,
		"DELETE FROM room_members WHERE room_id = $1 AND user_id = $2", roomID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRoomRepository) GetMember(ctx context.Context, roomID, userID uuid.UUID) (domain.RoomMembership, error) {
	var m domain.RoomMembership
	err := r.db.QueryRow(ctx,
		`SELECT room_id, user_id, role, joined_at
		 FROM room_members WHERE room_id = $1 AND user_id = $2`,
		roomID, userID).Scan(&m.RoomID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoomMembership{}, relay_errors.ErrNotFound
		}
		return domain.RoomMembership{}, err
	}
	return m, nil
}

func (r *PostgresRoomRepository) ListMembers(ctx context.Context, roomID uuid.UUID) ([]domain.RoomMember, error) {
	rows, err := r.db.Query(ctx,
		`SELECT p.id, p.username, p.display_name, p.avatar_url, p.bio, p.status, p.is_online, p.last_seen, p.created_at,
		        m.role, m.joined_at
		 FROM room_members m
		 JOIN profiles p ON p.id = m.user_id
		 WHERE m.room_id = $1
		 ORDER BY m.joined_at`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.RoomMember
	for rows.Next() {
		var rm domain.RoomMember
		err := rows.Scan(&rm.ID, &rm.Username, &rm.DisplayName, &rm.AvatarURL, &rm.Bio, &rm.Status,
			&rm.IsOnline, &rm.LastSeen, &rm.CreatedAt, &rm.Role, &rm.JoinedAt)
		if err != nil {
			return nil, err
		}
		members = append(members, rm)
	}
	return members, rows.Err()
}

func (r *PostgresRoomRepository) DeleteRoomMessages(ctx context.Context, roomID uuid.UUID) error {
	_, err := r.db.Exec(ctx, "DELETE FROM messages WHERE room_id = $1", roomID)
	return err
}

func (r *PostgresRoomRepository) DeleteRoomMembers(ctx context.Context, roomID uuid.UUID) error {
	_, err := r.db.Exec(ctx, "DELETE FROM room_members WHERE room_id = $1", roomID)
	return err
}
