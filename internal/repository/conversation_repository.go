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

type PostgresConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	row := r.db.QueryRow(ctx,
		`INSERT INTO conversations (participant_1, participant_2)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		c.Participant1, c.Participant2)
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return relay_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.QueryRow(ctx,
		"SELECT id, participant_1, participant_2, created_at FROM conversations WHERE id = $1", id).
		Scan(&c.ID, &c.Participant1, &c.Participant2, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, relay_errors.ErrNotFound
		}
		return domain.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetByParticipants(ctx context.Context, p1, p2 uuid.UUID) (domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.QueryRow(ctx,
		`SELECT id, participant_1, participant_2, created_at
		 FROM conversations WHERE participant_1 = $1 AND participant_2 = $2`, p1, p2).
		Scan(&c.ID, &c.Participant1, &c.Participant2, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, relay_errors.ErrNotFound
		}
		return domain.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) ListUserConversations(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.participant_1, c.participant_2, c.created_at,
		        p.id, p.username, p.display_name, p.avatar_url, p.bio, p.status, p.is_online, p.last_seen, p.created_at
		 FROM conversations c
		 JOIN profiles p ON p.id = CASE WHEN c.participant_1 = $1 THEN c.participant_2 ELSE c.participant_1 END
		 WHERE c.participant_1 = $1 OR c.participant_2 = $1
		 ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		var other domain.Profile
		err := rows.Scan(&c.ID, &c.Participant1, &c.Participant2, &c.CreatedAt,
			&other.ID, &other.Username, &other.DisplayName, &other.AvatarURL, &other.Bio,
			&other.Status, &other.IsOnline, &other.LastSeen, &other.CreatedAt)
		if err != nil {
			return nil, err
		}
		c.OtherUser = &other
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (r *PostgresConversationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM conversations WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) DeleteConversationMessages(ctx context.Context, conversationID uuid.UUID) error {
	_, err := r.db.Exec(ctx, "DELETE FROM messages WHERE conversation_id = $1", conversationID)
	return err
}
