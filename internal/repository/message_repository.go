package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/domain"
)

type PostgresMessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

const messageSelect = `
	SELECT m.id, m.sender_id, m.room_id, m.conversation_id, m.content, m.message_type,
	       m.media_url, m.media_type, m.media_name, m.media_size, m.reply_to,
	       m.is_edited, m.is_deleted, m.created_at,
	       p.id, p.username, p.display_name, p.avatar_url, p.bio, p.status, p.is_online, p.last_seen, p.created_at
	FROM messages m
	LEFT JOIN profiles p ON p.id = m.sender_id`

func scanMessage(row pgx.Row) (domain.Message, error) {
	var m domain.Message
	var senderID *uuid.UUID
	var su *string
	var sdn, sav, sbio, sst *string
	var son *bool
	var sls, sca *time.Time
	err := row.Scan(&m.ID, &m.SenderID, &m.RoomID, &m.ConversationID, &m.Content, &m.MessageType,
		&m.MediaURL, &m.MediaType, &m.MediaName, &m.MediaSize, &m.ReplyTo,
		&m.IsEdited, &m.IsDeleted, &m.CreatedAt,
		&senderID, &su, &sdn, &sav, &sbio, &sst, &son, &sls, &sca)
	if err != nil {
		return domain.Message{}, err
	}
	if senderID != nil && su != nil {
		m.Sender = &domain.Profile{
			ID:          *senderID,
			Username:    *su,
			DisplayName: sdn,
			AvatarURL:   sav,
			Bio:         sbio,
			Status:      sst,
		}
		if son != nil {
			m.Sender.IsOnline = *son
		}
		if sls != nil {
			m.Sender.LastSeen = *sls
		}
		if sca != nil {
			m.Sender.CreatedAt = *sca
		}
	}
	return m, nil
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *domain.Message) error {
	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`INSERT INTO messages (sender_id, room_id, conversation_id, content, message_type,
		                       media_url, media_type, media_name, media_size, reply_to)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		m.SenderID, m.RoomID, m.ConversationID, m.Content, m.MessageType,
		m.MediaURL, m.MediaType, m.MediaName, m.MediaSize, m.ReplyTo).Scan(&id)
	if err != nil {
		return err
	}

	created, err := scanMessage(r.db.QueryRow(ctx, messageSelect+" WHERE m.id = $1", id))
	if err != nil {
		return err
	}
	*m = created
	return nil
}

func (r *PostgresMessageRepository) ListByChat(ctx context.Context, chat domain.ChatRef, limit int, before *time.Time) ([]domain.Message, error) {
	col := "m.room_id"
	if chat.Type == domain.ChatTypeConversation {
		col = "m.conversation_id"
	}

	query := messageSelect + " WHERE " + col + " = $1"
	args := []interface{}{chat.ID}
	if before != nil {
		query += " AND m.created_at < $2"
		args = append(args, *before)
	}
	query += fmt.Sprintf(" ORDER BY m.created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Store order is newest-first for pagination; callers render oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *PostgresMessageRepository) ClearAllFromSender(ctx context.Context, senderID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE messages
		 SET content = $2, is_deleted = TRUE,
		     media_url = NULL, media_type = NULL, media_name = NULL, media_size = NULL
		 WHERE sender_id = $1`,
		senderID, domain.DeletedContent)
	return err
}
