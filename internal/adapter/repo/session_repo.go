package repo

import (
	"context"
	"encoding/json"

	"tailor/internal/domain"
	"tailor/internal/infra"
	"tailor/internal/sqlinline"
)

// SessionRepositoryPG implements domain.SessionRepository. Design state
// writes are last-write-wins.
type SessionRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewSessionRepository(sql infra.SQLExecutor) *SessionRepositoryPG {
	return &SessionRepositoryPG{sql: sql}
}

func (r *SessionRepositoryPG) Create(ctx context.Context, s *domain.Session) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertSession, s.ID, s.Locale, nullableJSON(s.DesignState))
	return row.Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *SessionRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var (
		s     domain.Session
		state []byte
	)
	err := r.sql.QueryRow(ctx, sqlinline.QSelectSessionByID, id).Scan(
		&s.ID,
		&s.Locale,
		&state,
		&s.ProductID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	s.DesignState = state
	return &s, nil
}

func (r *SessionRepositoryPG) SaveDesignState(ctx context.Context, id string, state json.RawMessage) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateSessionDesignState, id, []byte(state))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SessionRepositoryPG) SetProductID(ctx context.Context, id string, productID int64) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateSessionProductID, id, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
