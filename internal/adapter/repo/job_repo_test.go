package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tailor/internal/domain"
)

type stubExecutor struct {
	tag     string
	execErr error
	row     pgx.Row
	queries []string
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.queries = append(s.queries, query)
	return pgconn.NewCommandTag(s.tag), s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queries = append(s.queries, query)
	if s.row == nil {
		return stubRow{err: pgx.ErrNoRows}
	}
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("dest count mismatch")
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *domain.JobType:
			*d = domain.JobType(v.(string))
		case *domain.JobStatus:
			*d = domain.JobStatus(v.(string))
		case *[]byte:
			if v != nil {
				*d = v.([]byte)
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("unsupported dest")
		}
	}
	return nil
}

func jobRow(status string) stubRow {
	now := time.Now()
	return stubRow{values: []any{
		"11111111-1111-1111-1111-111111111111",
		"22222222-2222-2222-2222-222222222222",
		"GENERATE_ARTWORK",
		status,
		[]byte(`{"prompt":"cat"}`),
		nil,
		"",
		now,
		now,
	}}
}

func TestJobRepositoryGetByID(t *testing.T) {
	repo := NewJobRepository(&stubExecutor{row: jobRow("PENDING")})
	job, err := repo.GetByID(context.Background(), "11111111-1111-1111-1111-111111111111")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if job.Status != domain.JobStatusPending || job.Type != domain.JobTypeGenerateArtwork {
		t.Fatalf("unexpected job %+v", job)
	}
	if string(job.Input) != `{"prompt":"cat"}` {
		t.Fatalf("input = %s", job.Input)
	}
}

func TestJobRepositoryGetByIDNotFound(t *testing.T) {
	repo := NewJobRepository(&stubExecutor{})
	if _, err := repo.GetByID(context.Background(), "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobRepositoryTransitionGuard(t *testing.T) {
	exec := &stubExecutor{tag: "UPDATE 0", row: jobRow("COMPLETED")}
	repo := NewJobRepository(exec)

	err := repo.Fail(context.Background(), "11111111-1111-1111-1111-111111111111", "boom")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if !strings.Contains(exec.queries[0], "status in ('PENDING', 'RUNNING')") {
		t.Fatalf("fail query must guard on status: %s", exec.queries[0])
	}

	exec.tag = "UPDATE 1"
	if err := repo.Complete(context.Background(), "11111111-1111-1111-1111-111111111111", []byte(`{}`)); err != nil {
		t.Fatalf("Complete error: %v", err)
	}
}

func TestJobRepositoryTransitionMissingJob(t *testing.T) {
	repo := NewJobRepository(&stubExecutor{tag: "UPDATE 0"})
	if err := repo.MarkRunning(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
