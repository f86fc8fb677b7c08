package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgClass is how one SQLSTATE surfaces: its project code, whether the sink
// transaction is worth replaying and an operator hint
type pgClass struct {
	code  ErrorCode
	retry bool
	hint  string
}

// sqlStates lists the SQLSTATEs the results schema can produce; others map to ErrorCodeDB
var sqlStates = map[string]pgClass{
	// integrity: a reused run_id, a bad column value
	"23505": {code: ErrorCodeDuplicateKey},
	"23503": {code: ErrorCodeInvalidArgument},
	"23502": {code: ErrorCodeValidation},
	"23514": {code: ErrorCodeValidation},
	"22001": {code: ErrorCodeInvalidArgument},
	"22P02": {code: ErrorCodeInvalidArgument},

	// contention: serialization, deadlock, lock_not_available
	"40001": {code: ErrorCodeDB, retry: true},
	"40P01": {code: ErrorCodeDB, retry: true},
	"55P03": {code: ErrorCodeDB, retry: true},

	// server state: too_many_connections, cannot_connect_now, read_only, query_canceled
	"53300": {code: ErrorCodeUnavailable, retry: true},
	"57P03": {code: ErrorCodeUnavailable, retry: true},
	"25006": {code: ErrorCodeUnavailable},
	"57014": {code: ErrorCodeUnavailable, hint: "raise QMT_PIPELINE_STATEMENT_TIMEOUT"},

	// undefined_table
	"42P01": {code: ErrorCodeDB, hint: "run qmtrends migrate up"},
}

// contentionText matches driver errors that reach us without a SQLSTATE
var contentionText = []string{
	"commit unexpectedly resulted in rollback",
	"deadlock detected",
	"could not serialize access",
}

// PgError returns the *pgconn.PgError at the root of err
func PgError(err error) (*pgconn.PgError, bool) {
	var pe *pgconn.PgError
	if err != nil && stderrs.As(Root(err), &pe) {
		return pe, true
	}
	return nil, false
}

// SQLState is the SQLSTATE of err, empty when err is not a Postgres error
func SQLState(err error) string {
	if pe, ok := PgError(err); ok {
		return pe.Code
	}
	return ""
}

// IsDuplicateKey reports a unique violation anywhere in the chain
func IsDuplicateKey(err error) bool { return SQLState(err) == "23505" }

func classify(err error) (pgClass, bool) {
	pe, ok := PgError(err)
	if !ok {
		return pgClass{}, false
	}
	if c, ok := sqlStates[pe.Code]; ok {
		return c, true
	}
	return pgClass{code: ErrorCodeDB}, true
}

// FromPostgres wraps err with the code its SQLSTATE maps to; nil stays nil.
// Errors that are not from Postgres are wrapped as ErrorCodeDB
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	c, ok := classify(err)
	if !ok {
		return Wrap(err, ErrorCodeDB, msg)
	}
	if c.hint != "" {
		msg += " (" + c.hint + ")"
	}
	return Wrap(err, c.code, msg)
}

// FromPostgresf is FromPostgres with a formatted message
func FromPostgresf(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	return FromPostgres(err, fmt.Sprintf(format, a...))
}

// IsRetryable reports whether replaying the whole sink transaction may succeed.
// Local cancellation never is
func IsRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	if c, ok := classify(err); ok {
		return c.retry
	}
	s := strings.ToLower(Root(err).Error())
	for _, t := range contentionText {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
