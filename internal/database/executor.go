package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Query executes a SurrealQL statement and decodes the rows of its first
// result set into T.
//
// Example:
//
//	users, err := Query[userRecord](ctx, db, "SELECT * FROM chat_user WHERE state = $state", map[string]any{"state": 1})
func Query[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, query, params)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// QueryOne executes a query and returns its first row, or nil, nil when the
// query matched nothing. SELECT statements get a LIMIT 1 when they have none.
func QueryOne[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) (*T, error) {
	if isSelect(query) && !hasLimitClause(query) {
		query += " LIMIT 1"
	}

	rows, err := Query[T](ctx, db, query, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Execute runs a statement whose result is not needed.
func Execute(ctx context.Context, db *surrealdb.DB, query string, params map[string]any) error {
	if _, err := surrealdb.Query[any](ctx, db, query, params); err != nil {
		return fmt.Errorf("query execution failed: %w", err)
	}
	return nil
}

func isSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}

func hasLimitClause(query string) bool {
	return strings.Contains(" "+strings.ToUpper(query)+" ", " LIMIT ")
}
