package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"tailor/internal/domain"
	"tailor/internal/infra"
	"tailor/internal/sqlinline"
)

// ArtifactRepositoryPG implements domain.ArtifactRepository.
type ArtifactRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewArtifactRepository(sql infra.SQLExecutor) *ArtifactRepositoryPG {
	return &ArtifactRepositoryPG{sql: sql}
}

func (r *ArtifactRepositoryPG) Create(ctx context.Context, a *domain.Artifact) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertArtifact,
		a.ID,
		a.SessionID,
		string(a.Kind),
		a.StorageKey,
		a.URL,
		a.MimeType,
		a.Width,
		a.Height,
		a.DPI,
		a.SourceArtifactID,
		nullableJSON(a.Properties),
	)
	return err
}

func (r *ArtifactRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Artifact, error) {
	a, err := scanArtifact(r.sql.QueryRow(ctx, sqlinline.QSelectArtifactByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *ArtifactRepositoryPG) ListBySession(ctx context.Context, sessionID string) ([]domain.Artifact, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListArtifactsBySession, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanArtifact(row pgx.Row) (*domain.Artifact, error) {
	var (
		a     domain.Artifact
		props []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.SessionID,
		&a.Kind,
		&a.StorageKey,
		&a.URL,
		&a.MimeType,
		&a.Width,
		&a.Height,
		&a.DPI,
		&a.SourceArtifactID,
		&props,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.Properties = props
	return &a, nil
}
