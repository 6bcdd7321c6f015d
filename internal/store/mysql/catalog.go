package mysql

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/loykin/sqlrun/internal/session"
)

// Catalog helpers for migration operations registered in Go. They query
// information_schema of the current database through the step session, so
// they see changes made earlier in the same step.

func tableQuery(table string) sq.SelectBuilder {
	return sq.Select("COUNT(*)").
		From("information_schema.tables").
		Where("table_schema = DATABASE()").
		Where(sq.Eq{"table_name": table}).
		PlaceholderFormat(sq.Question)
}

func count(ctx context.Context, s session.Session, what string, b sq.SelectBuilder) (bool, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return false, fmt.Errorf("build %s query: %w", what, err)
	}
	var n int
	if err := s.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check %s: %w", what, err)
	}
	return n > 0, nil
}

// HasTable reports whether table exists.
func HasTable(ctx context.Context, s session.Session, table string) (bool, error) {
	return count(ctx, s, "table "+table, tableQuery(table))
}

// HasColumn reports whether table has column.
func HasColumn(ctx context.Context, s session.Session, table, column string) (bool, error) {
	return count(ctx, s, "column "+table+"."+column, sq.Select("COUNT(*)").
		From("information_schema.columns").
		Where("table_schema = DATABASE()").
		Where(sq.Eq{"table_name": table, "column_name": column}).
		PlaceholderFormat(sq.Question))
}

// HasIndex reports whether table has an index named index.
func HasIndex(ctx context.Context, s session.Session, table, index string) (bool, error) {
	return count(ctx, s, "index "+index, sq.Select("COUNT(*)").
		From("information_schema.statistics").
		Where("table_schema = DATABASE()").
		Where(sq.Eq{"table_name": table, "index_name": index}).
		PlaceholderFormat(sq.Question))
}

// HasConstraint reports whether table has a constraint named constraint.
func HasConstraint(ctx context.Context, s session.Session, table, constraint string) (bool, error) {
	return count(ctx, s, "constraint "+constraint, sq.Select("COUNT(*)").
		From("information_schema.table_constraints").
		Where("constraint_schema = DATABASE()").
		Where(sq.Eq{"table_name": table, "constraint_name": constraint}).
		PlaceholderFormat(sq.Question))
}
