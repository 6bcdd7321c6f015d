package store

import (
	"context"
	"log/slog"

	sqldblogger "github.com/simukti/sqldb-logger"

	"github.com/loykin/sqlrun/internal/common"
)

// queryLogger forwards sqldb-logger events to the structured logger. Echoed
// statements are logged at info so DATABASE_ECHO works without --verbose.
type queryLogger struct {
	logger *common.Logger
}

func (q *queryLogger) Log(ctx context.Context, level sqldblogger.Level, msg string, data map[string]interface{}) {
	attrs := make([]any, 0, len(data)*2)
	for k, v := range data {
		attrs = append(attrs, k, v)
	}
	lvl := slog.LevelInfo
	if level == sqldblogger.LevelError {
		lvl = slog.LevelError
	}
	q.logger.Log(ctx, lvl, msg, attrs...)
}

var _ sqldblogger.Logger = (*queryLogger)(nil)

func echoOptions() []sqldblogger.Option {
	return []sqldblogger.Option{
		sqldblogger.WithSQLQueryAsMessage(true),
		sqldblogger.WithExecerLevel(sqldblogger.LevelInfo),
		sqldblogger.WithQueryerLevel(sqldblogger.LevelInfo),
		sqldblogger.WithPreparerLevel(sqldblogger.LevelDebug),
		sqldblogger.WithMinimumLevel(sqldblogger.LevelInfo),
	}
}
