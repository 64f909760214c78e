package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLExecutor is the query surface the credentials store depends on.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// ErrMissingMarker is returned for queries without a leading `--sql <uuid>` line.
var ErrMissingMarker = errors.New("sql marker missing or invalid")

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// SQLRunner strips the `--sql <uuid>` marker off each query before running it
// and logs the statement by marker with its latency, never by text or args.
// *pgxpool.Pool satisfies the Pool field.
type SQLRunner struct {
	Pool   SQLExecutor
	Logger Logger
}

func NewSQLRunner(pool SQLExecutor, logger Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, body, err := ExtractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.Pool.Exec(ctx, body, args...)
	if err != nil {
		r.Logger.Error().Err(err).Str("sql", marker).Dur("elapsed", time.Since(start)).Msg("exec failed")
		return tag, err
	}
	r.Logger.Debug().
		Str("sql", marker).
		Int64("rows", tag.RowsAffected()).
		Dur("elapsed", time.Since(start)).
		Msg("exec ok")
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, body, err := ExtractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return &loggingRow{
		row:    r.Pool.QueryRow(ctx, body, args...),
		logger: r.Logger,
		marker: marker,
		start:  time.Now(),
	}
}

// loggingRow defers logging to Scan, where pgx reports query errors.
type loggingRow struct {
	row    pgx.Row
	logger Logger
	marker string
	start  time.Time
}

func (l *loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	elapsed := time.Since(l.start)
	switch {
	case err == nil:
		l.logger.Debug().Str("sql", l.marker).Dur("elapsed", elapsed).Msg("query_row ok")
	case IsNoRows(err):
		l.logger.Debug().Str("sql", l.marker).Dur("elapsed", elapsed).Msg("query_row empty")
	default:
		l.logger.Error().Err(err).Str("sql", l.marker).Dur("elapsed", elapsed).Msg("scan failed")
	}
	return err
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(...any) error {
	return e.err
}

// IsNoRows reports whether err signals an empty result set.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ExtractMarker splits a query into its marker id and executable body.
func ExtractMarker(query string) (string, string, error) {
	marker, body, _ := strings.Cut(strings.TrimSpace(query), "\n")
	marker = strings.TrimSpace(marker)
	if !markerRegexp.MatchString(marker) {
		return "", "", ErrMissingMarker
	}
	return strings.TrimPrefix(marker, "--sql "), body, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
