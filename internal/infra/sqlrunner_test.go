package infra

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type recordingExecutor struct {
	stmts []string
	err   error
}

func (e *recordingExecutor) Exec(_ context.Context, query string, _ ...any) (pgconn.CommandTag, error) {
	e.stmts = append(e.stmts, query)
	return pgconn.NewCommandTag("UPDATE 1"), e.err
}

func (e *recordingExecutor) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	e.stmts = append(e.stmts, query)
	return errorRow{err: pgx.ErrNoRows}
}

func (e *recordingExecutor) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	e.stmts = append(e.stmts, query)
	return nil, e.err
}

const markedUpdate = "--sql de6cd314-0a15-47d0-a8af-db740e40d785\nupdate jobs set status = 'COMPLETED' where id = $1;"

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		marker  string
		stmt    string
		wantErr bool
	}{
		{name: "marked", query: markedUpdate, marker: "de6cd314-0a15-47d0-a8af-db740e40d785", stmt: "update jobs set status = 'COMPLETED' where id = $1;"},
		{name: "leading whitespace", query: "\n  " + markedUpdate, marker: "de6cd314-0a15-47d0-a8af-db740e40d785", stmt: "update jobs set status = 'COMPLETED' where id = $1;"},
		{name: "no marker", query: "select 1", wantErr: true},
		{name: "bad uuid", query: "--sql nope\nselect 1", wantErr: true},
		{name: "empty", query: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker, stmt, err := extractMarker(tt.query)
			if tt.wantErr {
				if !errors.Is(err, errMissingMarker) {
					t.Fatalf("expected errMissingMarker, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractMarker error: %v", err)
			}
			if marker != tt.marker || stmt != tt.stmt {
				t.Fatalf("got %q / %q", marker, stmt)
			}
		})
	}
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	db := &recordingExecutor{}
	var buf bytes.Buffer
	runner := newSQLRunner(db, zerolog.New(&buf).Level(zerolog.DebugLevel))

	tag, err := runner.Exec(context.Background(), markedUpdate, "job-1")
	if err != nil {
		t.Fatalf("Exec error: %v", err)
	}
	if tag.RowsAffected() != 1 {
		t.Fatalf("rows = %d", tag.RowsAffected())
	}
	if len(db.stmts) != 1 || strings.Contains(db.stmts[0], "--sql") {
		t.Fatalf("statement sent = %q", db.stmts)
	}
	if !strings.Contains(buf.String(), `"sql":"de6cd314-0a15-47d0-a8af-db740e40d785"`) {
		t.Fatalf("log line missing marker: %s", buf.String())
	}

	if _, err := runner.Exec(context.Background(), "delete from jobs"); !errors.Is(err, errMissingMarker) {
		t.Fatalf("unmarked Exec error = %v", err)
	}
	if len(db.stmts) != 1 {
		t.Fatalf("unmarked statement reached the database")
	}
}

func TestSQLRunnerUsesRequestLogger(t *testing.T) {
	db := &recordingExecutor{err: errors.New("boom")}
	var base, scoped bytes.Buffer
	runner := newSQLRunner(db, zerolog.New(&base))
	reqLog := zerolog.New(&scoped).With().Str("request_id", "req-1").Logger()
	ctx := reqLog.WithContext(context.Background())

	if _, err := runner.Exec(ctx, markedUpdate); err == nil {
		t.Fatal("expected error")
	}
	if base.Len() != 0 {
		t.Fatalf("base logger used: %s", base.String())
	}
	if !strings.Contains(scoped.String(), `"request_id":"req-1"`) {
		t.Fatalf("scoped log = %s", scoped.String())
	}

	var id string
	if err := runner.QueryRow(ctx, "--sql f4894d99-b9e8-4384-85fd-27c821815060\nselect id from jobs").Scan(&id); !IsNoRows(err) {
		t.Fatalf("QueryRow error = %v", err)
	}
}
