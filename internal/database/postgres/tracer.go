package postgres

import (
	"context"
	"errors"

	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"

	log "github.com/joacominatel/minadb/internal/logging"
)

// queryCanceledCode is the SQLSTATE of a statement aborted by a cancel
// request.
const queryCanceledCode = "57014"

// configureLogger routes pgx's query tracing to the global zerolog logger.
// Info events are demoted to debug, as are the errors of statements the user
// cancelled.
func configureLogger(connConfig *pgx.ConnConfig) {
	l := zerologadapter.NewLogger(log.Logger, zerologadapter.WithoutPGXModule(), zerologadapter.WithSubDictionary("pgx"),
		zerologadapter.WithContextFunc(func(ctx context.Context, z zerolog.Context) zerolog.Context {
			if logger := log.Ctx(ctx); logger != nil {
				return logger.With()
			}
			return z
		}))

	demote := func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		if level == tracelog.LogLevelInfo || isCanceled(data["err"]) {
			level = tracelog.LogLevelDebug
		}
		l.Log(ctx, level, msg, data)
	}
	connConfig.Tracer = &tracelog.TraceLog{Logger: tracelog.LoggerFunc(demote), LogLevel: tracelog.LogLevelInfo}
}

func isCanceled(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == queryCanceledCode
}
