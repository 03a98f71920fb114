package repo

import (
	"context"

	"tailor/internal/domain"
	"tailor/internal/infra"
	"tailor/internal/sqlinline"
)

// MessageRepositoryPG implements domain.MessageRepository.
type MessageRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewMessageRepository(sql infra.SQLExecutor) *MessageRepositoryPG {
	return &MessageRepositoryPG{sql: sql}
}

func (r *MessageRepositoryPG) Create(ctx context.Context, m *domain.Message) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertMessage,
		m.ID, m.SessionID, string(m.Role), m.Content, m.ArtifactID, m.JobID)
	return err
}

func (r *MessageRepositoryPG) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListMessagesBySession, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.ArtifactID, &m.JobID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
