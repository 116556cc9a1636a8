package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/page-ingest/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
)

func TestMapError(t *testing.T) {
	other := errors.New("some other error")
	otherPg := &pgconn.PgError{Code: "12345"}

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), errNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errDuplicate},
		{"other pg error", otherPg, otherPg},
		{"other error", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repository.MapError(tt.in, errNotFound, errDuplicate)
			if got != tt.want {
				t.Errorf("MapError(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

type result struct {
	rows int64
	err  error
}

func (r result) LastInsertId() (int64, error) { return 0, nil }
func (r result) RowsAffected() (int64, error) { return r.rows, r.err }

type executor struct {
	res  sql.Result
	err  error
	args []any
}

func (e *executor) ExecContext(_ context.Context, _ string, args ...any) (sql.Result, error) {
	e.args = args
	return e.res, e.err
}

func TestExecExpectOne(t *testing.T) {
	execErr := errors.New("connection reset")
	countErr := errors.New("rows affected unsupported")

	tests := []struct {
		name string
		exec *executor
		want error
	}{
		{"one row", &executor{res: result{rows: 1}}, nil},
		{"no rows", &executor{res: result{rows: 0}}, sql.ErrNoRows},
		{"exec error", &executor{err: execErr}, execErr},
		{"count error", &executor{res: result{err: countErr}}, countErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repository.ExecExpectOne(context.Background(), tt.exec, "UPDATE x SET y = $1", 7)
			if !errors.Is(err, tt.want) {
				t.Errorf("ExecExpectOne() error = %v, want %v", err, tt.want)
			}
			if len(tt.exec.args) != 1 || tt.exec.args[0] != 7 {
				t.Errorf("args = %v, want [7]", tt.exec.args)
			}
		})
	}
}
